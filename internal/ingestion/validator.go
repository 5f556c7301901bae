package ingestion

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/relvacode/iso8601"

	"github.com/quentinrf/geiger-monitor/internal/domain"
)

// requiredKeys must be present and non-null in every pushed payload.
var requiredKeys = []string{"cps", "cpm", "usv", "mode", "timestamp"}

var errMissingKey = errors.New("missing key")

// Payload is a validated push payload.
type Payload struct {
	Timestamp            time.Time
	CountsPerSecond      int64
	CountsPerMinute      int64
	MicrosievertsPerHour float64
	Mode                 domain.Mode
}

// ValidatePayload checks a pushed payload. It never panics; the error
// explains why the row was rejected.
func ValidatePayload(raw map[string]any) (Payload, error) {
	for _, key := range requiredKeys {
		if v, ok := raw[key]; !ok || v == nil {
			return Payload{}, fmt.Errorf("%w: %s", errMissingKey, key)
		}
	}

	modeStr, ok := raw["mode"].(string)
	if !ok {
		return Payload{}, fmt.Errorf("%w: mode must be a string", domain.ErrInvalidMode)
	}
	mode := domain.Mode(modeStr)
	if !mode.Valid() {
		return Payload{}, fmt.Errorf("%w: %q", domain.ErrInvalidMode, modeStr)
	}

	cps, err := wholeNumber(raw["cps"])
	if err != nil {
		return Payload{}, fmt.Errorf("cps: %w", err)
	}
	cpm, err := wholeNumber(raw["cpm"])
	if err != nil {
		return Payload{}, fmt.Errorf("cpm: %w", err)
	}
	usv, err := number(raw["usv"])
	if err != nil {
		return Payload{}, fmt.Errorf("usv: %w", err)
	}

	ts, err := NormalizeTimestamp(raw["timestamp"])
	if err != nil {
		return Payload{}, fmt.Errorf("timestamp: %w", err)
	}

	return Payload{
		Timestamp:            ts,
		CountsPerSecond:      cps,
		CountsPerMinute:      cpm,
		MicrosievertsPerHour: usv,
		Mode:                 mode,
	}, nil
}

// NormalizeTimestamp accepts an ISO 8601 string or a time.Time and returns
// it in UTC. Strings without an offset are taken as UTC.
func NormalizeTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, domain.ErrInvalidTimestamp
		}
		return t.UTC(), nil
	case string:
		parsed, err := iso8601.ParseString(t)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", domain.ErrInvalidTimestamp, err)
		}
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: unsupported type %T", domain.ErrInvalidTimestamp, v)
}

func number(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %v", f)
	}
	return f, nil
}

func wholeNumber(v any) (int64, error) {
	f, err := number(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not a whole number: %v", f)
	}
	return int64(f), nil
}
