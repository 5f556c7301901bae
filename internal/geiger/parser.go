// Package geiger parses the text lines emitted by hobbyist Geiger counters.
//
// Two shapes are understood. The MightyOhm kit prints
//
//	CPS, 1, CPM, 20, uSv/hr, 0.11, SLOW
//
// and several older firmwares print key/value pairs such as
//
//	CPS=15, CPM=900, uSv/h=0.18
package geiger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/quentinrf/geiger-monitor/internal/domain"
)

// DefaultThreshold is the CPS above which a key/value line is classified FAST.
const DefaultThreshold = 50

// ErrUnparsableLine is returned for empty or malformed device output.
var ErrUnparsableLine = errors.New("unparsable geiger line")

// Fields holds the values extracted from one line.
type Fields struct {
	Raw                  string
	CountsPerSecond      int64
	CountsPerMinute      int64
	MicrosievertsPerHour float64
	Mode                 domain.Mode
}

// Parser converts device lines into Fields.
type Parser struct {
	threshold int64
}

// NewParser creates a parser; threshold <= 0 selects DefaultThreshold.
func NewParser(threshold int64) *Parser {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Parser{threshold: threshold}
}

// ParseLine parses line with the default threshold.
func ParseLine(line string) (Fields, error) {
	return NewParser(DefaultThreshold).Parse(line)
}

// Parse tries the MightyOhm CSV shape first, then the key/value shape.
func (p *Parser) Parse(line string) (Fields, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Fields{}, ErrUnparsableLine
	}

	if strings.Contains(line, "=") {
		return p.parseKeyValue(line)
	}
	return parseMightyOhm(line)
}

func parseMightyOhm(line string) (Fields, error) {
	parts := splitTrim(line, ",")
	if len(parts) != 7 {
		return Fields{}, fmt.Errorf("%w: expected 7 fields, got %d", ErrUnparsableLine, len(parts))
	}
	if parts[0] != "CPS" || parts[2] != "CPM" {
		return Fields{}, fmt.Errorf("%w: missing CPS/CPM labels", ErrUnparsableLine)
	}
	// firmware revisions disagree on "uSv/hr" spacing and case
	if strings.ToLower(strings.ReplaceAll(parts[4], " ", "")) != "usv/hr" {
		return Fields{}, fmt.Errorf("%w: missing uSv/hr label", ErrUnparsableLine)
	}

	cps, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Fields{}, fmt.Errorf("%w: cps: %v", ErrUnparsableLine, err)
	}
	cpm, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Fields{}, fmt.Errorf("%w: cpm: %v", ErrUnparsableLine, err)
	}
	usv, err := strconv.ParseFloat(parts[5], 64)
	if err != nil {
		return Fields{}, fmt.Errorf("%w: usv: %v", ErrUnparsableLine, err)
	}
	if cps < 0 || cpm < 0 || usv < 0 {
		return Fields{}, fmt.Errorf("%w: negative value", ErrUnparsableLine)
	}

	mode, err := domain.ParseMode(parts[6])
	if err != nil {
		return Fields{}, fmt.Errorf("%w: %v", ErrUnparsableLine, err)
	}

	return Fields{
		Raw:                  line,
		CountsPerSecond:      cps,
		CountsPerMinute:      cpm,
		MicrosievertsPerHour: usv,
		Mode:                 mode,
	}, nil
}

func (p *Parser) parseKeyValue(line string) (Fields, error) {
	f := Fields{Raw: line}
	seen := false

	for _, pair := range splitTrim(line, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		var err error
		switch {
		case strings.HasPrefix(key, "CPS"):
			f.CountsPerSecond, err = strconv.ParseInt(value, 10, 64)
		case strings.HasPrefix(key, "CPM"):
			f.CountsPerMinute, err = strconv.ParseInt(value, 10, 64)
		case strings.Contains(key, "USV"):
			f.MicrosievertsPerHour, err = strconv.ParseFloat(value, 64)
		default:
			continue
		}
		if err != nil {
			return Fields{}, fmt.Errorf("%w: %s: %v", ErrUnparsableLine, key, err)
		}
		seen = true
	}

	if !seen {
		return Fields{}, ErrUnparsableLine
	}
	if f.CountsPerSecond < 0 || f.CountsPerMinute < 0 || f.MicrosievertsPerHour < 0 {
		return Fields{}, fmt.Errorf("%w: negative value", ErrUnparsableLine)
	}

	f.Mode = domain.ClassifyMode(f.CountsPerSecond, p.threshold)
	if f.Mode == domain.ModeInst {
		f.CountsPerMinute = f.CountsPerSecond * 60
	}
	return f, nil
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
