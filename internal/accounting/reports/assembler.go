package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting"
	"github.com/ksfraser/ksf-reports/internal/accounting/hierarchy"
	"github.com/ksfraser/ksf-reports/internal/accounting/journals"
	"github.com/ksfraser/ksf-reports/internal/accounting/ledger"
	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
	"github.com/ksfraser/ksf-reports/internal/variance"
)

// earliestLedgerDate bounds open-ended row queries.
var earliestLedgerDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// AssemblerOptions carries installation-wide defaults.
type AssemblerOptions struct {
	Logger           *slog.Logger
	FiscalStartMonth time.Month
	// Materiality applies when a config leaves it zero.
	Materiality decimal.Decimal
	// Parallelism applies when a config leaves it zero.
	Parallelism int
	Now         func() time.Time
}

// Assembler turns a Config and Request into a Result.
type Assembler struct {
	catalog accounting.Catalog
	source  accounting.LedgerSource
	opts    AssemblerOptions
}

// NewAssembler wires the catalog and ledger source used by every run.
func NewAssembler(catalog accounting.Catalog, source accounting.LedgerSource, opts AssemblerOptions) *Assembler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Materiality.IsZero() {
		opts.Materiality = hierarchy.DefaultMateriality
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assembler{catalog: catalog, source: source, opts: opts}
}

// Assemble runs one report. Data-source errors are returned unchanged.
func (a *Assembler) Assemble(ctx context.Context, cfg Config, req Request) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	cfg = cfg.merge(req)
	if cfg.Materiality.IsZero() {
		cfg.Materiality = a.opts.Materiality
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = a.opts.Parallelism
	}
	if cfg.Sign == "" {
		cfg.Sign = accounting.SignNatural
	}

	started := time.Now()
	agg := ledger.NewAggregator(a.source)
	result := Result{
		RunID:       uuid.NewString(),
		Report:      cfg.Name,
		Title:       cfg.Title,
		Layout:      cfg.Layout,
		GeneratedAt: a.opts.Now().UTC(),
	}

	var (
		windows []periods.Window
		err     error
	)
	switch cfg.Layout {
	case LayoutTree:
		windows, err = a.assembleTree(ctx, agg, cfg, req, &result)
	case LayoutJournal:
		windows, err = a.assembleJournal(ctx, agg, cfg, req, &result)
	case LayoutAging:
		windows, err = a.assembleAging(ctx, agg, cfg, req, &result)
	}
	if err != nil {
		return Result{}, err
	}

	result.Windows = windowViews(windows)
	result.From, result.To = span(windows)
	result.Queries = agg.Queries()

	a.opts.Logger.Info("report assembled",
		slog.String("report", cfg.Name),
		slog.String("run_id", result.RunID),
		slog.Int64("queries", result.Queries),
		slog.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (a *Assembler) assembleTree(ctx context.Context, agg *ledger.Aggregator, cfg Config, req Request, result *Result) ([]periods.Window, error) {
	windows, err := periods.Calculate(periods.Request{
		From:             req.From,
		To:               req.To,
		Mode:             cfg.Mode,
		FiscalYearBegin:  req.FiscalYearBegin,
		FiscalStartMonth: a.opts.FiscalStartMonth,
		YearEnd:          req.YearEnd,
		YearEndMonth:     req.YearEndMonth,
		BroughtForward:   cfg.BroughtForward,
		Closing:          cfg.Closing,
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.checkWindows(windows); err != nil {
		return nil, err
	}

	walker := hierarchy.NewWalker(a.catalog, agg, a.opts.Logger)
	root, err := walker.Walk(ctx, hierarchy.Options{
		Windows:     windows,
		Dimensions:  cfg.Dimensions,
		Classes:     cfg.Classes,
		Sign:        cfg.Sign,
		Materiality: cfg.Materiality,
		Parallelism: cfg.Parallelism,
	})
	if err != nil {
		return nil, err
	}
	visible := root
	if cfg.SuppressZero {
		visible = root.Prune()
	}

	tree := treeView(visible, cfg)
	result.Tree = &tree
	result.Summary = summarize(root, visible, windows, cfg)
	if cfg.Variance != nil {
		result.Variances = varianceRows(visible, cfg)
	}
	if cfg.WorkingCapital != nil {
		result.WorkingCapital = workingCapital(root, windows, cfg)
	}
	return windows, nil
}

func (a *Assembler) assembleJournal(ctx context.Context, agg *ledger.Aggregator, cfg Config, req Request, result *Result) ([]periods.Window, error) {
	windows, err := periods.Calculate(periods.Request{From: req.From, To: req.To})
	if err != nil {
		return nil, err
	}
	rows, err := agg.Rows(ctx, windows[0], accounting.RowFilter{
		Dimensions:  cfg.Dimensions,
		Types:       cfg.Types,
		AccountCode: cfg.AccountCode,
	})
	if err != nil {
		return nil, err
	}
	result.Transactions = transactionsView(journals.Group(rows))
	return windows, nil
}

func (a *Assembler) assembleAging(ctx context.Context, agg *ledger.Aggregator, cfg Config, req Request, result *Result) ([]periods.Window, error) {
	if cfg.AccountCode == "" {
		return nil, ErrAccountRequired
	}
	from := req.From
	if from.IsZero() {
		from = earliestLedgerDate
	}
	windows, err := periods.Calculate(periods.Request{From: from, To: req.To})
	if err != nil {
		return nil, err
	}
	asOf := windows[0].To
	rows, err := agg.Rows(ctx, windows[0], accounting.RowFilter{Dimensions: cfg.Dimensions, AccountCode: cfg.AccountCode})
	if err != nil {
		return nil, err
	}

	buckets := cfg.AgingBuckets
	if len(buckets) == 0 {
		buckets = periods.DefaultAgingBuckets
	}
	totals := make(map[string]decimal.Decimal, len(buckets))
	counts := make(map[string]int, len(buckets))
	total := decimal.Zero
	for _, row := range rows {
		label, err := periods.ClassifyAge(asOf, row.Date, buckets)
		if err != nil {
			return nil, fmt.Errorf("reports: age row %d: %w", row.Counter, err)
		}
		totals[label] = totals[label].Add(row.Amount)
		counts[label]++
		total = total.Add(row.Amount)
	}
	view := &AgingView{Account: cfg.AccountCode, AsOf: asOf.Format(time.DateOnly), Total: variance.Round2(total)}
	for _, b := range buckets {
		view.Buckets = append(view.Buckets, AgingBucketRow{Label: b.Label, Amount: variance.Round2(totals[b.Label]), Count: counts[b.Label]})
	}
	result.Aging = view
	return windows, nil
}

// summarize computes report totals from the full tree; only the account
// count depends on what is visible.
func summarize(root, visible *hierarchy.Node, windows []periods.Window, cfg Config) *Summary {
	names := periods.Names(windows)
	raw := make(map[string]decimal.Decimal, len(names))
	income := make(map[string]decimal.Decimal, len(names))
	hasIncome := false
	for _, class := range root.Children {
		if class.Class == accounting.ClassIncome {
			hasIncome = true
		}
		for _, w := range names {
			r := accounting.Denormalize(class.Amount(w), class.Class, cfg.Sign)
			raw[w] = raw[w].Add(r)
			if class.Class == accounting.ClassIncome {
				income[w] = income[w].Sub(r)
			}
		}
	}

	s := &Summary{
		Amounts:      roundAmounts(root.Amounts),
		IsBalanced:   true,
		AccountCount: len(visible.Accounts()),
	}
	net := make(map[string]decimal.Decimal, len(names))
	for _, w := range names {
		if raw[w].Abs().GreaterThanOrEqual(cfg.Materiality) {
			s.IsBalanced = false
		}
		net[w] = raw[w].Neg()
	}
	if cfg.ResultLine {
		s.Result = roundAmounts(net)
	}
	if a := cfg.Achievement; a != nil {
		base := root.Amounts
		if cfg.ResultLine {
			base = net
		}
		s.AchievedPercent = roundPtr(variance.Achievement(base[a.Period], base[a.Comparison]))
	}
	if cfg.ResultLine && hasIncome {
		primary := primaryWindow(names, cfg)
		s.MarginPercent = roundPtr(variance.Margin(net[primary], income[primary]))
	}
	return s
}

func primaryWindow(names []string, cfg Config) string {
	if cfg.Achievement != nil {
		return cfg.Achievement.Period
	}
	for _, n := range names {
		if n == periods.WindowCurrent {
			return n
		}
	}
	return names[len(names)-1]
}

func varianceRows(tree *hierarchy.Node, cfg Config) []variance.VarianceRow {
	base := make(map[string]variance.AccountBalance)
	compare := make(map[string]variance.AccountBalance)
	for _, leaf := range tree.Accounts() {
		base[leaf.Code] = variance.AccountBalance{Name: leaf.Label, Amount: leaf.Amount(cfg.Variance.Period)}
		compare[leaf.Code] = variance.AccountBalance{Name: leaf.Label, Amount: leaf.Amount(cfg.Variance.Comparison)}
	}
	return variance.ComputeVariance(base, compare, variance.Threshold{Amount: cfg.VarianceThreshold})
}

func workingCapital(root *hierarchy.Node, windows []periods.Window, cfg Config) *WorkingCapitalView {
	current, _ := periods.Find(windows, periods.WindowCurrent)
	days := periods.DaysBetween(current.From, current.To) + 1
	nodes := cfg.WorkingCapital
	sum := func(ids []string, window string) decimal.Decimal {
		total := decimal.Zero
		for _, id := range ids {
			n := root.Find(id)
			if n == nil {
				continue
			}
			raw := accounting.Denormalize(n.Amount(window), n.Class, cfg.Sign)
			total = total.Add(accounting.Normalize(raw, n.Class, accounting.SignNatural))
		}
		return total
	}
	wc := variance.ComputeWorkingCapital(variance.WorkingCapitalInput{
		Receivables: sum(nodes.Receivables, periods.WindowClosing),
		Inventory:   sum(nodes.Inventory, periods.WindowClosing),
		Payables:    sum(nodes.Payables, periods.WindowClosing),
		Revenue:     sum(nodes.Revenue, periods.WindowCurrent),
		CostOfSales: sum(nodes.CostOfSales, periods.WindowCurrent),
		Days:        days,
	})
	return &WorkingCapitalView{
		Days: days,
		DSO:  variance.Round2(wc.DSO),
		DIO:  variance.Round2(wc.DIO),
		DPO:  variance.Round2(wc.DPO),
		CCC:  variance.Round2(wc.CCC),
	}
}

// span returns the bounds of the current window, or of the rolling total.
func span(windows []periods.Window) (string, string) {
	for _, name := range []string{periods.WindowCurrent, periods.WindowTotal} {
		if w, ok := periods.Find(windows, name); ok {
			return w.From.Format(time.DateOnly), w.To.Format(time.DateOnly)
		}
	}
	return "", ""
}
