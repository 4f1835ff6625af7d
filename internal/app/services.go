package app

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ksfraser/ksf-reports/internal/accounting"
	"github.com/ksfraser/ksf-reports/internal/accounting/reports"
	"github.com/ksfraser/ksf-reports/internal/observability"
	"github.com/ksfraser/ksf-reports/internal/platform/cache"
	"github.com/ksfraser/ksf-reports/internal/platform/db"
)

// Services bundles the long-lived dependencies shared by the HTTP server,
// the worker and the command line.
type Services struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Backend accounting.Backend
	Reports *reports.Service
	Metrics *observability.Metrics
}

// OpenServices connects to Postgres and, when caching is enabled, Redis. An
// unreachable Redis disables the cache instead of failing startup.
func OpenServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, AppName: "ksf-reports"})
	if err != nil {
		return nil, err
	}
	client := OpenRedis(ctx, cfg, logger)
	svc := NewServices(accounting.NewRepository(pool), client, cfg, logger)
	svc.Pool = pool
	return svc, nil
}

// OpenRedis returns a connected client, or nil when caching is disabled or
// Redis cannot be reached.
func OpenRedis(ctx context.Context, cfg *Config, logger *slog.Logger) *redis.Client {
	if !cfg.CacheEnabled {
		return nil
	}
	client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("report cache disabled", slog.Any("error", err))
		return nil
	}
	return client
}

// NewServices wires the report service over an existing backend. client may be nil.
func NewServices(backend accounting.Backend, client *redis.Client, cfg *Config, logger *slog.Logger) *Services {
	metrics := observability.NewMetrics()
	service := reports.NewService(backend, reports.NewCache(client, cfg.ReportCacheTTL), metrics, reports.AssemblerOptions{
		Logger:           logger,
		FiscalStartMonth: cfg.FiscalStart(),
		Materiality:      cfg.Materiality(),
		Parallelism:      cfg.ReportParallelism,
	})
	return &Services{Redis: client, Backend: backend, Reports: service, Metrics: metrics}
}

// Ping checks the database; services without a pool are always ready.
func (s *Services) Ping(ctx context.Context) error {
	if s == nil || s.Pool == nil {
		return nil
	}
	return s.Pool.Ping(ctx)
}

// Close releases the pool and the Redis client.
func (s *Services) Close(logger *slog.Logger) {
	if s == nil {
		return
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
