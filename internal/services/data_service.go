package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/veloigp/internal/cache"
	"github.com/charlesng35/veloigp/internal/mockdata"
	"github.com/charlesng35/veloigp/internal/models"
	"github.com/charlesng35/veloigp/internal/monitoring"
	"github.com/charlesng35/veloigp/internal/pbx"
	apperrors "github.com/charlesng35/veloigp/pkg/errors"
	"github.com/charlesng35/veloigp/pkg/logger"
)

const (
	defaultOperatorCount = 12
	defaultCallCount     = 50
	maxReportRangeDays   = 366
)

// ReportFetcher retrieves the vendor report. Implemented by *pbx.Client.
type ReportFetcher interface {
	Configured() bool
	FetchReport(ctx context.Context, start, end time.Time) (models.Report, error)
}

// DataServiceConfig sizes the generated datasets and the cache window.
type DataServiceConfig struct {
	CacheTTL      time.Duration
	OperatorCount int
	CallCount     int
	Clock         func() time.Time
}

// DataService serves dashboard entities from a TTL cache, falling back to the
// generator whenever live data is unavailable.
type DataService struct {
	generator *mockdata.Generator
	reports   ReportFetcher
	cfg       DataServiceConfig
	log       *zap.Logger

	operators *cache.TTLCache[Result[[]models.Operator]]
	calls     *cache.TTLCache[Result[[]models.Call]]
	metrics   *cache.TTLCache[Result[models.Metrics]]
	queues    *cache.TTLCache[Result[[]models.Queue]]
	live      *cache.TTLCache[models.Report]
}

// NewDataService wires the facade. reports may be nil, in which case every
// report is served from the generator.
func NewDataService(generator *mockdata.Generator, reports ReportFetcher, cfg DataServiceConfig) (*DataService, error) {
	if generator == nil {
		return nil, errors.New("data service: generator is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.OperatorCount <= 0 {
		cfg.OperatorCount = defaultOperatorCount
	}
	if cfg.CallCount <= 0 {
		cfg.CallCount = defaultCallCount
	}

	var opts []cache.TTLOption
	if cfg.Clock != nil {
		opts = append(opts, cache.WithClock(cfg.Clock))
	}

	return &DataService{
		generator: generator,
		reports:   reports,
		cfg:       cfg,
		log:       logger.WithModule("data"),
		operators: cache.NewTTLCache[Result[[]models.Operator]](cfg.CacheTTL, opts...),
		calls:     cache.NewTTLCache[Result[[]models.Call]](cfg.CacheTTL, opts...),
		metrics:   cache.NewTTLCache[Result[models.Metrics]](cfg.CacheTTL, opts...),
		queues:    cache.NewTTLCache[Result[[]models.Queue]](cfg.CacheTTL, opts...),
		live:      cache.NewTTLCache[models.Report](cfg.CacheTTL, opts...),
	}, nil
}

func cached[T any](c *cache.TTLCache[Result[T]], entity string, produce func() Result[T]) Result[T] {
	if hit, ok := c.Get(entity); ok {
		monitoring.RecordCacheLookup(entity, true)
		return hit
	}
	monitoring.RecordCacheLookup(entity, false)

	result := produce()
	c.Set(entity, result)
	monitoring.RecordDataSource(entity, string(result.Source), string(result.Reason))
	return result
}

// Operators returns the agent roster.
func (s *DataService) Operators(ctx context.Context) Result[[]models.Operator] {
	return cached(s.operators, "operators", func() Result[[]models.Operator] {
		return Fallback(s.generator.Operators(s.cfg.OperatorCount), ReasonSimulated)
	})
}

// Calls returns recent calls, assigned to the current operator roster.
func (s *DataService) Calls(ctx context.Context) Result[[]models.Call] {
	return cached(s.calls, "calls", func() Result[[]models.Call] {
		operators := s.Operators(ctx).Data
		ids := make([]string, 0, len(operators))
		for _, op := range operators {
			ids = append(ids, op.ID)
		}
		return Fallback(s.generator.Calls(s.cfg.CallCount, ids), ReasonSimulated)
	})
}

// Metrics returns the KPI snapshot.
func (s *DataService) Metrics(ctx context.Context) Result[models.Metrics] {
	return cached(s.metrics, "metrics", func() Result[models.Metrics] {
		return Fallback(s.generator.Metrics(), ReasonSimulated)
	})
}

// Queues returns the queue board.
func (s *DataService) Queues(ctx context.Context) Result[[]models.Queue] {
	return cached(s.queues, "queues", func() Result[[]models.Queue] {
		return Fallback(s.generator.Queues(), ReasonSimulated)
	})
}

// Report returns the PBX report for [start, end]. Vendor failures never reach
// the caller: they are logged and answered with generated data. Only live
// reports are cached.
func (s *DataService) Report(ctx context.Context, start, end time.Time) (Result[models.Report], error) {
	ctx = ensureContext(ctx)
	if err := validateRange(start, end); err != nil {
		return Result[models.Report]{}, err
	}

	key := reportKey(start, end)
	if report, ok := s.live.Get(key); ok {
		monitoring.RecordCacheLookup("report", true)
		return Live(report), nil
	}
	monitoring.RecordCacheLookup("report", false)

	if s.reports == nil || !s.reports.Configured() {
		s.log.Warn("pbx api token missing, serving generated report")
		return s.fallbackReport(start, end, ReasonConfiguration)
	}

	started := time.Now()
	report, err := s.reports.FetchReport(ctx, start, end)
	if err != nil {
		reason := classifyFetchError(err)
		monitoring.RecordPBXRequest(string(reason), time.Since(started))
		s.log.Warn("pbx report unavailable, serving generated report",
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		return s.fallbackReport(start, end, reason)
	}
	monitoring.RecordPBXRequest("success", time.Since(started))

	s.live.Set(key, report)
	monitoring.RecordDataSource("report", string(SourceLive), "")
	return Live(report), nil
}

func (s *DataService) fallbackReport(start, end time.Time, reason FallbackReason) (Result[models.Report], error) {
	report, err := s.generator.Report(start, end)
	if err != nil {
		return Result[models.Report]{}, apperrors.ErrInternalServer.WithInternal(err)
	}
	monitoring.RecordDataSource("report", string(SourceFallback), string(reason))
	return Fallback(report, reason), nil
}

// ClearCache drops every cached entity so the next read regenerates or refetches.
func (s *DataService) ClearCache() {
	s.operators.Clear()
	s.calls.Clear()
	s.metrics.Clear()
	s.queues.Clear()
	s.live.Clear()
	s.log.Info("dashboard cache cleared")
}

// CacheStats reports the combined entry count and hit/miss counters.
func (s *DataService) CacheStats() (entries int, hits, misses uint64) {
	type stats interface {
		Len() int
		Stats() (uint64, uint64)
	}
	for _, c := range []stats{s.operators, s.calls, s.metrics, s.queues, s.live} {
		h, m := c.Stats()
		entries += c.Len()
		hits += h
		misses += m
	}
	return entries, hits, misses
}

func classifyFetchError(err error) FallbackReason {
	switch {
	case errors.Is(err, pbx.ErrNotConfigured):
		return ReasonConfiguration
	case errors.Is(err, pbx.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	default:
		return ReasonNetwork
	}
}

func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperrors.NewBadRequest("start and end dates are required")
	}
	if end.Before(start) {
		return apperrors.NewBadRequest("end date must not be before start date")
	}
	if end.Sub(start) > maxReportRangeDays*24*time.Hour {
		return apperrors.NewBadRequest(fmt.Sprintf("date range must not exceed %d days", maxReportRangeDays))
	}
	return nil
}

func reportKey(start, end time.Time) string {
	return "report:" + start.Format(time.DateOnly) + ":" + end.Format(time.DateOnly)
}
