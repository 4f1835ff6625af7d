package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ksfraser/ksf-reports/internal/accounting/ledger"
	"github.com/ksfraser/ksf-reports/internal/app"
)

// ledgerFlags selects where a command reads the general ledger from.
type ledgerFlags struct {
	demo    bool
	fixture string
}

func (f *ledgerFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.demo, "demo", false, "use the built-in demo company instead of Postgres")
	cmd.Flags().StringVar(&f.fixture, "fixture", "", "read the ledger from a JSON fixture file")
	cmd.MarkFlagsMutuallyExclusive("demo", "fixture")
}

// open returns services over the selected ledger. In-memory ledgers run
// without a cache.
func (f *ledgerFlags) open(ctx context.Context, g *globals) (*app.Services, error) {
	if !f.inMemory() {
		return app.OpenServices(ctx, g.cfg, g.logger)
	}
	book, err := f.book()
	if err != nil {
		return nil, err
	}
	return app.NewServices(book, nil, g.cfg, g.logger), nil
}

func (f *ledgerFlags) inMemory() bool {
	return f.demo || f.fixture != ""
}

func (f *ledgerFlags) book() (*ledger.Book, error) {
	if f.demo {
		return ledger.Demo(), nil
	}
	file, err := os.Open(f.fixture)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	book, err := ledger.LoadBook(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.fixture, err)
	}
	return book, nil
}

func parseDate(flag, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", flag, raw)
	}
	return t, nil
}
