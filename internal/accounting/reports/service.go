package reports

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ksfraser/ksf-reports/internal/accounting"
)

// Recorder receives report instrumentation.
type Recorder interface {
	ObserveReport(report string, err error, elapsed time.Duration, queries int64)
	ObserveCache(report string, hit bool)
}

// sharedRunTimeout bounds a de-duplicated run. It is detached from the
// callers, so one caller giving up does not fail the others.
var sharedRunTimeout = 2 * time.Minute

type noopRecorder struct{}

func (noopRecorder) ObserveReport(string, error, time.Duration, int64) {}
func (noopRecorder) ObserveCache(string, bool)                         {}

// Service runs preset reports with caching and request de-duplication.
type Service struct {
	backend accounting.Backend
	cache   *Cache
	metrics Recorder
	opts    AssemblerOptions
	group   singleflight.Group
}

// NewService wires the service. cache and metrics may be nil.
func NewService(backend accounting.Backend, cache *Cache, metrics Recorder, opts AssemblerOptions) *Service {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{backend: backend, cache: cache, metrics: metrics, opts: opts}
}

// Cache exposes the result cache for invalidation.
func (s *Service) Cache() *Cache {
	return s.cache
}

// Run executes the preset registered under name.
func (s *Service) Run(ctx context.Context, name string, req Request) (Result, error) {
	cfg, err := Lookup(name)
	if err != nil {
		return Result{}, err
	}

	key, err := s.cache.BuildKey(ctx, cacheKeyParts(cfg.Name, req)...)
	if err != nil {
		s.opts.Logger.Warn("report cache unavailable", slog.String("report", name), slog.Any("error", err))
		key = strings.Join(cacheKeyParts(cfg.Name, req), ":")
	} else {
		var cached Result
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.opts.Logger.Warn("report cache read failed", slog.String("report", name), slog.Any("error", err))
		}
		if hit {
			s.metrics.ObserveCache(name, true)
			return cached, nil
		}
	}
	s.metrics.ObserveCache(name, false)

	resultCh := s.group.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedRunTimeout)
		defer cancel()
		result, err := s.Assemble(runCtx, cfg, req)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(runCtx, key, result); err != nil {
			s.opts.Logger.Warn("report cache write failed", slog.String("report", name), slog.Any("error", err))
		}
		return result, nil
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	}
}

// Assemble runs cfg without caching. Sequential runs read inside a single
// snapshot when the backend supports one.
func (s *Service) Assemble(ctx context.Context, cfg Config, req Request) (Result, error) {
	started := time.Now()
	parallelism := cfg.Parallelism
	if parallelism == 0 {
		parallelism = s.opts.Parallelism
	}

	var result Result
	run := func(ctx context.Context, backend accounting.Backend) error {
		var err error
		result, err = NewAssembler(backend, backend, s.opts).Assemble(ctx, cfg, req)
		return err
	}

	var err error
	if snap, ok := s.backend.(accounting.Snapshotter); ok && parallelism <= 1 {
		err = snap.Snapshot(ctx, run)
	} else {
		err = run(ctx, s.backend)
	}
	s.metrics.ObserveReport(cfg.Name, err, time.Since(started), result.Queries)
	if err != nil {
		s.opts.Logger.Error("report failed", slog.String("report", cfg.Name), slog.Any("error", err))
		return Result{}, err
	}
	return result, nil
}
