package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/ksfraser/ksf-reports/internal/accounting/reports"
	"github.com/ksfraser/ksf-reports/internal/app"
	"github.com/ksfraser/ksf-reports/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the helpers against the configured Redis.
func NewJobsCLI(cfg *app.Config) *JobsCLI {
	opts := redisOpts(cfg)
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

func redisOpts(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

func warmupPayload(names []string, asOf string, invalidate bool) (jobs.ReportsWarmupPayload, error) {
	known := reports.Names()
	for _, name := range names {
		if !slices.Contains(known, name) {
			return jobs.ReportsWarmupPayload{}, fmt.Errorf("unknown report %q", name)
		}
	}
	if _, err := parseDate("as-of", asOf); err != nil {
		return jobs.ReportsWarmupPayload{}, err
	}
	return jobs.ReportsWarmupPayload{Reports: names, AsOf: asOf, Invalidate: invalidate}, nil
}

func integrityPayload(from, to string, types []int) (jobs.GLIntegrityPayload, error) {
	start, err := parseDate("from", from)
	if err != nil {
		return jobs.GLIntegrityPayload{}, err
	}
	end, err := parseDate("to", to)
	if err != nil {
		return jobs.GLIntegrityPayload{}, err
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return jobs.GLIntegrityPayload{}, errors.New("--from is after --to")
	}
	return jobs.GLIntegrityPayload{From: from, To: to, Types: types}, nil
}

func newEnqueueCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Submit a background job to the worker queue",
	}

	var (
		names      []string
		asOf       string
		invalidate bool
	)
	warmup := &cobra.Command{
		Use:   "warmup",
		Short: "Pre-compute preset reports into the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := warmupPayload(names, asOf, invalidate)
			if err != nil {
				return err
			}
			c := NewJobsCLI(g.cfg)
			defer c.Close()
			info, err := c.client.EnqueueWarmup(cmd.Context(), payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	warmup.Flags().StringSliceVar(&names, "reports", nil, "reports to warm, every preset without an account by default")
	warmup.Flags().StringVar(&asOf, "as-of", "", "last day of the warmed period (YYYY-MM-DD)")
	warmup.Flags().BoolVar(&invalidate, "invalidate", false, "bump the cache version first")

	var (
		from, to string
		types    []int
	)
	integrity := &cobra.Command{
		Use:   "integrity",
		Short: "Scan the general ledger for unbalanced transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := integrityPayload(from, to, types)
			if err != nil {
				return err
			}
			c := NewJobsCLI(g.cfg)
			defer c.Close()
			info, err := c.client.EnqueueIntegrity(cmd.Context(), payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	integrity.Flags().StringVar(&from, "from", "", "first day to scan (YYYY-MM-DD)")
	integrity.Flags().StringVar(&to, "to", "", "last day to scan (YYYY-MM-DD)")
	integrity.Flags().IntSliceVar(&types, "types", nil, "restrict to transaction types")

	cmd.AddCommand(warmup, integrity)
	return cmd
}

func newQueueCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show the state of the job queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := NewJobsCLI(g.cfg)
			defer c.Close()
			stats, err := c.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
			return nil
		},
	}
}
