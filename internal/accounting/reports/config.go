package reports

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting"
	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
	"github.com/ksfraser/ksf-reports/internal/accounting/shared"
)

// Layout selects which engine produces a report body.
type Layout string

const (
	// LayoutTree walks the chart of accounts into a hierarchical statement.
	LayoutTree Layout = "tree"
	// LayoutJournal groups ledger rows into balanced transactions.
	LayoutJournal Layout = "journal"
	// LayoutAging buckets the rows of one account by age.
	LayoutAging Layout = "aging"
)

// Comparison names the two windows a percentage is computed from.
type Comparison struct {
	Period     string
	Comparison string
}

// WorkingCapitalNodes identifies the tree nodes feeding working capital ratios.
// Balances are read from the closing window, flows from the current window.
type WorkingCapitalNodes struct {
	Receivables []string
	Inventory   []string
	Payables    []string
	Revenue     []string
	CostOfSales []string
}

// Config is the complete description of a report; there is no report
// specific code path outside of it.
type Config struct {
	Name  string
	Title string

	Layout         Layout
	Mode           periods.Mode
	BroughtForward bool
	Closing        bool

	Classes      []accounting.ClassKind
	Sign         accounting.SignConvention
	SuppressZero bool
	Dimensions   accounting.Dimensions
	Materiality  decimal.Decimal

	// Achievement adds achieved % per node and in the summary.
	Achievement *Comparison
	// Variance adds variance % per node and per-account variance rows.
	Variance          *Comparison
	VarianceThreshold *decimal.Decimal
	// ResultLine adds the credit-positive net result to the summary.
	ResultLine     bool
	WorkingCapital *WorkingCapitalNodes

	// Types and AccountCode filter journal and aging rows.
	Types        []int
	AccountCode  string
	AgingBuckets []periods.AgingBucket

	Parallelism int
}

// Request carries the run-time parameters of a report.
type Request struct {
	From time.Time
	To   time.Time

	FiscalYearBegin time.Time
	YearEnd         int
	YearEndMonth    time.Month

	Dimensions  accounting.Dimensions
	AccountCode string
	Types       []int
}

var (
	// ErrInvalidConfig indicates a report configuration that cannot run.
	ErrInvalidConfig = errors.New("reports: invalid configuration")
	// ErrAccountRequired indicates an aging report without an account.
	ErrAccountRequired = errors.New("reports: account code required")
)

// Validate checks the static parts of a configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidConfig)
	}
	switch c.Layout {
	case LayoutTree, LayoutJournal, LayoutAging:
	default:
		return fmt.Errorf("%w: unknown layout %q", ErrInvalidConfig, c.Layout)
	}
	switch c.Sign {
	case "", accounting.SignNatural, accounting.SignRaw:
	default:
		return fmt.Errorf("%w: unknown sign convention %q", ErrInvalidConfig, c.Sign)
	}
	if c.Materiality.IsNegative() {
		return fmt.Errorf("%w: negative materiality", ErrInvalidConfig)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("%w: negative parallelism", ErrInvalidConfig)
	}
	return nil
}

// checkWindows verifies every window referenced by the config is computed.
func (c Config) checkWindows(windows []periods.Window) error {
	names := periods.Names(windows)
	var refs []string
	if c.Achievement != nil {
		refs = append(refs, c.Achievement.Period, c.Achievement.Comparison)
	}
	if c.Variance != nil {
		refs = append(refs, c.Variance.Period, c.Variance.Comparison)
	}
	if c.WorkingCapital != nil {
		refs = append(refs, periods.WindowCurrent, periods.WindowClosing)
	}
	for _, ref := range refs {
		if !slices.Contains(names, ref) {
			return fmt.Errorf("%w: %q not in %v", shared.ErrUnknownWindow, ref, names)
		}
	}
	return nil
}

// merge overlays request filters on the configured ones.
func (c Config) merge(req Request) Config {
	if req.Dimensions.Dimension1 != 0 {
		c.Dimensions.Dimension1 = req.Dimensions.Dimension1
	}
	if req.Dimensions.Dimension2 != 0 {
		c.Dimensions.Dimension2 = req.Dimensions.Dimension2
	}
	if req.AccountCode != "" {
		c.AccountCode = req.AccountCode
	}
	if len(req.Types) > 0 {
		c.Types = req.Types
	}
	return c
}
