package grpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/quentinrf/geiger-monitor/internal/analytics"
	"github.com/quentinrf/geiger-monitor/internal/auth"
	"github.com/quentinrf/geiger-monitor/internal/domain"
	"github.com/quentinrf/geiger-monitor/internal/export"
	"github.com/quentinrf/geiger-monitor/internal/ingestion"
	"github.com/quentinrf/geiger-monitor/internal/observability/metrics"
	"github.com/quentinrf/geiger-monitor/internal/poller"
	"github.com/quentinrf/geiger-monitor/pkg/rpc"
)

// defaultHistory is the range GetHistory and ExportReadings use when the
// request gives no start.
const defaultHistory = 24 * time.Hour

// Deps are the collaborators of the handler. Poller, Runner and ListPorts
// may be nil; the matching methods then return FailedPrecondition.
type Deps struct {
	Repo    domain.ReadingRepository
	Ingest  *ingestion.Service
	Engine  *analytics.Engine
	Poller  *poller.Poller
	Runner  *poller.Runner
	Metrics *metrics.Metrics

	// RunnerContext bounds runners started over RPC. Default: context.Background().
	RunnerContext context.Context
	ListPorts     func() ([]string, error)
	Now           func() time.Time
}

// GeigerServiceHandler implements the gRPC GeigerService
type GeigerServiceHandler struct {
	rpc.UnimplementedGeigerServiceServer
	deps Deps
}

// NewGeigerServiceHandler creates a new gRPC handler
func NewGeigerServiceHandler(deps Deps) *GeigerServiceHandler {
	if deps.RunnerContext == nil {
		deps.RunnerContext = context.Background()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &GeigerServiceHandler{deps: deps}
}

// GetLatestReading returns the most recent reading
func (h *GeigerServiceHandler) GetLatestReading(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	log.Info().Msg("GetLatestReading called")

	reading, err := h.deps.Repo.GetLatestReading(ctx)
	if errors.Is(err, domain.ErrReadingNotFound) && h.deps.Poller != nil && h.deps.Poller.IsEnabled() {
		// No readings yet - poll the counter now
		log.Info().Msg("no readings in database, polling counter")
		h.deps.Poller.PollOnce(ctx)
		reading, err = h.deps.Repo.GetLatestReading(ctx)
	}
	if errors.Is(err, domain.ErrReadingNotFound) {
		return nil, status.Error(codes.NotFound, "no readings recorded yet")
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to get latest reading")
		return nil, status.Error(codes.Internal, "failed to get reading")
	}

	return structpb.NewStruct(readingFields(reading))
}

// GetHistory returns readings within time range with statistics
func (h *GeigerServiceHandler) GetHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start, end, err := h.timeRange(req)
	if err != nil {
		return nil, err
	}

	log.Info().
		Time("start", start).
		Time("end", end).
		Msg("GetHistory called")

	readings, err := h.deps.Repo.GetReadingsInRange(ctx, start, end)
	if err != nil {
		log.Error().Err(err).Msg("failed to get readings")
		return nil, status.Error(codes.Internal, "failed to get readings")
	}

	items := make([]any, len(readings))
	for i, r := range readings {
		items[i] = readingFields(r)
	}

	// Calculate statistics
	stats := calculateStatistics(readings)

	return structpb.NewStruct(map[string]any{
		"start":       start.Format(time.RFC3339Nano),
		"end":         end.Format(time.RFC3339Nano),
		"count":       len(readings),
		"readings":    items,
		"average_cps": stats.average,
		"min_cps":     stats.min,
		"max_cps":     stats.max,
	})
}

// IngestReadings stores pushed readings. Invalid rows are skipped.
func (h *GeigerServiceHandler) IngestReadings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	list := req.GetFields()["readings"].GetListValue()
	if list == nil {
		return nil, status.Error(codes.InvalidArgument, "readings must be a list")
	}

	payloads := make([]map[string]any, len(list.GetValues()))
	for i, v := range list.GetValues() {
		// non-object rows become empty payloads and are skipped by validation
		if s := v.GetStructValue(); s != nil {
			payloads[i] = s.AsMap()
		}
	}

	log.Info().Int("rows", len(payloads)).Str("caller", caller(ctx)).Msg("IngestReadings called")

	summary, err := h.deps.Ingest.IngestPayloads(ctx, payloads)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to store readings")
	}
	return toStruct(summary)
}

// GetAnalytics reports the live window, or a window of the requested size
// computed over stored readings.
func (h *GeigerServiceHandler) GetAnalytics(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	now := h.deps.Now()

	v, ok := req.GetFields()["window_minutes"]
	if !ok {
		h.deps.Engine.Prune(now)
		result, err := h.deps.Engine.ComputeMetrics(now)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		h.deps.Metrics.ObserveWindow(result.Count, result.Average)
		return toStruct(result.Payload())
	}

	minutes := v.GetNumberValue()
	if minutes <= 0 || minutes > float64(analytics.MaxWindowMinutes) || minutes != math.Trunc(minutes) {
		return nil, status.Errorf(codes.InvalidArgument, "window_minutes must be a positive integer, got %v", v.AsInterface())
	}
	window := time.Duration(minutes) * time.Minute

	// the repository range is half-open, the window includes now
	readings, err := h.deps.Repo.GetReadingsInRange(ctx, now.Add(-window), now.Add(time.Nanosecond))
	if err != nil {
		log.Error().Err(err).Msg("failed to get readings")
		return nil, status.Error(codes.Internal, "failed to get readings")
	}

	payload, err := analytics.Status(int(minutes), analytics.FromReadings(readings), now)
	if errors.Is(err, domain.ErrInvalidWindow) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(payload)
}

// GetPollerDiagnostics returns the poller counters
func (h *GeigerServiceHandler) GetPollerDiagnostics(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if h.deps.Poller == nil {
		return nil, status.Error(codes.FailedPrecondition, "poller not configured")
	}
	return toStruct(h.deps.Poller.Diagnostics())
}

// PollOnce runs one acquisition cycle and reports its outcome
func (h *GeigerServiceHandler) PollOnce(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if h.deps.Poller == nil {
		return nil, status.Error(codes.FailedPrecondition, "poller not configured")
	}

	result := h.deps.Poller.Poll(ctx)
	log.Info().
		Str("outcome", result.Outcome.String()).
		Str("caller", caller(ctx)).
		Msg("PollOnce called")

	fields := map[string]any{
		"outcome": result.Outcome.String(),
		"frame":   nil,
	}
	if result.Frame != nil {
		fields["frame"] = map[string]any(result.Frame)
	}
	if result.Err != nil {
		fields["error"] = result.Err.Error()
	}
	return toStruct(fields)
}

// StartPoller starts the background runner
func (h *GeigerServiceHandler) StartPoller(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if h.deps.Runner == nil {
		return nil, status.Error(codes.FailedPrecondition, "runner not configured")
	}

	// the runner must outlive this request
	if err := h.deps.Runner.Start(h.deps.RunnerContext); err != nil {
		if errors.Is(err, poller.ErrRunnerRunning) {
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	log.Info().Str("caller", caller(ctx)).Msg("background poller started")
	return toStruct(h.deps.Runner.Status())
}

// StopPoller stops the background runner and waits for it to exit
func (h *GeigerServiceHandler) StopPoller(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if h.deps.Runner == nil {
		return nil, status.Error(codes.FailedPrecondition, "runner not configured")
	}

	h.deps.Runner.Stop(ctx)
	log.Info().Str("caller", caller(ctx)).Msg("background poller stopped")
	return toStruct(h.deps.Runner.Status())
}

// caller names the token subject behind a call, empty when auth is off.
func caller(ctx context.Context) string {
	if c, ok := auth.ClaimsFromContext(ctx); ok {
		return c.Subject
	}
	return ""
}

// ExportReadings renders a range of readings as CSV, XLSX or PDF
func (h *GeigerServiceHandler) ExportReadings(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	format, err := export.ParseFormat(req.GetFields()["format"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	start, end, err := h.timeRange(req)
	if err != nil {
		return nil, err
	}

	readings, err := h.deps.Repo.GetReadingsInRange(ctx, start, end)
	if err != nil {
		log.Error().Err(err).Msg("failed to get readings")
		return nil, status.Error(codes.Internal, "failed to get readings")
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, readings); err != nil {
		log.Error().Err(err).Str("format", string(format)).Msg("failed to export readings")
		return nil, status.Error(codes.Internal, "failed to export readings")
	}

	log.Info().
		Str("format", string(format)).
		Int("rows", len(readings)).
		Msg("exported readings")
	return wrapperspb.Bytes(buf.Bytes()), nil
}

// ListSerialPorts lists serial devices on the host
func (h *GeigerServiceHandler) ListSerialPorts(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if h.deps.ListPorts == nil {
		return nil, status.Error(codes.FailedPrecondition, "serial enumeration not available")
	}

	ports, err := h.deps.ListPorts()
	if err != nil {
		log.Error().Err(err).Msg("failed to list serial ports")
		return nil, status.Error(codes.Internal, "failed to list serial ports")
	}

	items := make([]any, len(ports))
	for i, p := range ports {
		items[i] = p
	}
	return structpb.NewStruct(map[string]any{"ports": items})
}

// timeRange reads optional ISO 8601 "start" and "end" fields. End defaults
// to now, start to defaultHistory before end.
func (h *GeigerServiceHandler) timeRange(req *structpb.Struct) (time.Time, time.Time, error) {
	fields := req.GetFields()

	end := h.deps.Now()
	if v, ok := fields["end"]; ok {
		t, err := ingestion.NormalizeTimestamp(v.GetStringValue())
		if err != nil {
			return time.Time{}, time.Time{}, status.Errorf(codes.InvalidArgument, "end: %v", err)
		}
		end = t
	}

	start := end.Add(-defaultHistory)
	if v, ok := fields["start"]; ok {
		t, err := ingestion.NormalizeTimestamp(v.GetStringValue())
		if err != nil {
			return time.Time{}, time.Time{}, status.Errorf(codes.InvalidArgument, "start: %v", err)
		}
		start = t
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, status.Error(codes.InvalidArgument, "start must not be after end")
	}
	return start, end, nil
}

// readingFields converts domain model to a Struct-compatible map
func readingFields(r *domain.Reading) map[string]any {
	return map[string]any{
		"id":                     r.ID,
		"timestamp":              r.Timestamp.Format(time.RFC3339Nano),
		"counts_per_second":      r.CountsPerSecond,
		"counts_per_minute":      r.CountsPerMinute,
		"microsieverts_per_hour": r.MicrosievertsPerHour,
		"mode":                   string(r.Mode),
		"dose_category":          r.DoseCategory(),
		"elevated":               r.IsElevated(),
	}
}

// toStruct converts any JSON-encodable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}

// statistics holds calculated statistics
type statistics struct {
	average float64
	min     int64
	max     int64
}

// calculateStatistics computes CPS stats for a set of readings
func calculateStatistics(readings []*domain.Reading) statistics {
	if len(readings) == 0 {
		return statistics{}
	}

	var sum int64
	min := readings[0].CountsPerSecond
	max := readings[0].CountsPerSecond

	for _, r := range readings {
		sum += r.CountsPerSecond
		if r.CountsPerSecond < min {
			min = r.CountsPerSecond
		}
		if r.CountsPerSecond > max {
			max = r.CountsPerSecond
		}
	}

	return statistics{
		average: float64(sum) / float64(len(readings)),
		min:     min,
		max:     max,
	}
}
