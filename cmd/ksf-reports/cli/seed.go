package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/ksfraser/ksf-reports/internal/accounting/seed"
	"github.com/ksfraser/ksf-reports/internal/platform/db"
)

type seedOptions struct {
	ledgerFlags
	truncate bool
}

func newSeedCommand(g *globals) *cobra.Command {
	opts := &seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo company or a fixture into Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !opts.inMemory() {
				return errors.New("seed: pass --demo or --fixture")
			}
			book, err := opts.book()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.New(ctx, g.cfg.PGDSN, db.Options{MaxConns: 2, AppName: "ksf-reports-seed"})
			if err != nil {
				return err
			}
			defer pool.Close()

			var stats seed.Stats
			err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
				var err error
				stats, err = seed.Load(ctx, tx, book.Contents(), seed.Options{Truncate: opts.truncate})
				return err
			})
			if err != nil {
				return err
			}
			g.logger.Info("ledger seeded",
				slog.Int64("accounts", stats.Accounts),
				slog.Int64("entries", stats.Entries))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "classes: %d\n", stats.Classes)
			fmt.Fprintf(out, "types: %d\n", stats.Types)
			fmt.Fprintf(out, "accounts: %d\n", stats.Accounts)
			fmt.Fprintf(out, "gl_trans: %d\n", stats.Entries)
			fmt.Fprintf(out, "budget_trans: %d\n", stats.Budget)
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.truncate, "truncate", false, "empty the ledger tables first")
	return cmd
}
