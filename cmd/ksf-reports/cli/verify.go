package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ksfraser/ksf-reports/internal/accounting"
	"github.com/ksfraser/ksf-reports/jobs"
)

var errUnbalanced = errors.New("ledger has unbalanced transactions")

type verifyOptions struct {
	ledgerFlags
	from  string
	to    string
	types []int
}

func newVerifyCommand(g *globals) *cobra.Command {
	opts := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that every transaction in a range balances",
		Long: "Groups the general ledger into transactions and lists those whose debits and credits differ.\n" +
			"Without --from the scan starts on 1 January of the --to year; --to defaults to today.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			to, err := parseDate("to", opts.to)
			if err != nil {
				return err
			}
			if to.IsZero() {
				to = time.Now().UTC()
			}
			from, err := parseDate("from", opts.from)
			if err != nil {
				return err
			}
			if from.IsZero() {
				from = time.Date(to.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
			}

			ctx := cmd.Context()
			svc, err := opts.open(ctx, g)
			if err != nil {
				return err
			}
			defer svc.Close(g.logger)

			report, err := jobs.RunGLIntegrityCheck(ctx, svc.Backend, from, to, accounting.RowFilter{Types: opts.types}, g.logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "range: %s to %s\n", report.From.Format(time.DateOnly), report.To.Format(time.DateOnly))
			fmt.Fprintf(out, "transactions: %d\n", report.Transactions)
			fmt.Fprintf(out, "debit: %s credit: %s\n", report.TotalDebit.StringFixed(2), report.TotalCredit.StringFixed(2))
			for _, tx := range report.Unbalanced {
				fmt.Fprintf(out, "unbalanced: type=%d seq=%d date=%s difference=%s\n",
					tx.Type, tx.SequenceNo, tx.Date.Format(time.DateOnly), tx.Difference().StringFixed(2))
			}
			if !report.Balanced() {
				return fmt.Errorf("%w: %d", errUnbalanced, len(report.Unbalanced))
			}
			fmt.Fprintln(out, "status: balanced")
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.from, "from", "", "first day to scan (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.to, "to", "", "last day to scan (YYYY-MM-DD)")
	cmd.Flags().IntSliceVar(&opts.types, "types", nil, "restrict to transaction types")
	return cmd
}
