package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
	"github.com/ksfraser/ksf-reports/internal/accounting/reports"
	jobmetrics "github.com/ksfraser/ksf-reports/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReportRunner executes a named report, filling the result cache.
type ReportRunner interface {
	Run(ctx context.Context, name string, req reports.Request) (reports.Result, error)
}

// CacheBumper invalidates every cached report.
type CacheBumper interface {
	Bump(ctx context.Context) (int64, error)
}

// ReportsWarmupJob pre-computes the fiscal year-to-date presets so the first
// request of the day is served from cache.
type ReportsWarmupJob struct {
	Runner      ReportRunner
	Cache       CacheBumper
	FiscalStart time.Month
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	clock       func() time.Time
}

// NewReportsWarmupJob wires dependencies for the warmup handler. cache may be nil.
func NewReportsWarmupJob(runner ReportRunner, cache CacheBumper, fiscalStart time.Month, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{
		Runner:      runner,
		Cache:       cache,
		FiscalStart: fiscalStart,
		Logger:      logger,
		Metrics:     metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskReportsWarmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Runner == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload ReportsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf, err := parseDay(payload.AsOf, periods.Day(j.now()))
	if err != nil {
		return fmt.Errorf("reports warmup: as_of: %v: %w", err, asynq.SkipRetry)
	}
	names, err := warmupTargets(payload.Reports)
	if err != nil {
		return fmt.Errorf("reports warmup: %v: %w", err, asynq.SkipRetry)
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskReportsWarmup)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.String("as_of", asOf.Format(time.DateOnly)))
	if payload.Invalidate && j.Cache != nil {
		ver, err := j.Cache.Bump(ctx)
		if err != nil {
			logger.Error("bump report cache", slog.Any("error", err))
			return err
		}
		logger.Info("report cache invalidated", slog.Int64("version", ver))
	}

	started := time.Now()
	req := reports.Request{
		From: periods.FiscalYearBegin(asOf, j.FiscalStart),
		To:   asOf,
	}
	metrics := metricsOrDefault(j.Metrics)
	for _, name := range names {
		// Bound each report so one slow statement cannot stall the batch.
		runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		_, err := j.Runner.Run(runCtx, name, req)
		cancel()
		if err != nil {
			logger.Error("warm report", slog.String("report", name), slog.Any("error", err))
			return err
		}
		metrics.AddWarmed(name, 1)
	}

	logger.Info("completed reports warmup", slog.Int("reports", len(names)), slog.Duration("duration", time.Since(started)))
	return nil
}

// warmupTargets resolves the requested names, defaulting to every preset
// that does not need an account.
func warmupTargets(requested []string) ([]string, error) {
	if len(requested) == 0 {
		var names []string
		for _, cfg := range reports.Presets() {
			if cfg.Layout == reports.LayoutAging && cfg.AccountCode == "" {
				continue
			}
			names = append(names, cfg.Name)
		}
		return names, nil
	}
	known := reports.Names()
	out := make([]string, 0, len(requested))
	for _, name := range requested {
		if !slices.Contains(known, name) {
			return nil, fmt.Errorf("unknown report %q", name)
		}
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportsWarmup))
}

func (j *ReportsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}
