package reports

import (
	"fmt"
	"sort"

	"github.com/ksfraser/ksf-reports/internal/accounting"
	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
	"github.com/ksfraser/ksf-reports/internal/accounting/shared"
)

// Preset report names.
const (
	TrialBalance           = "trial-balance"
	ProfitAndLoss          = "profit-and-loss"
	ProfitAndLossPrior     = "profit-and-loss-prior"
	ProfitAndLossBudget    = "profit-and-loss-budget"
	BalanceSheet           = "balance-sheet"
	AnnualExpenseBreakdown = "annual-expense-breakdown"
	Journal                = "journal"
	AuditTrail             = "audit-trail"
	AgedBalances           = "aged-balances"
	WorkingCapitalRatios   = "working-capital"
)

// journalEntryType is the ledger transaction type of manual journal entries.
const journalEntryType = 0

var (
	incomeStatement = []accounting.ClassKind{accounting.ClassIncome, accounting.ClassExpense}
	balanceSheet    = []accounting.ClassKind{accounting.ClassAsset, accounting.ClassLiability, accounting.ClassEquity}
)

var presets = map[string]Config{
	TrialBalance: {
		Name:           TrialBalance,
		Title:          "Trial Balance",
		Layout:         LayoutTree,
		Mode:           periods.ModeCurrent,
		BroughtForward: true,
		Closing:        true,
		Sign:           accounting.SignRaw,
		SuppressZero:   true,
	},
	ProfitAndLoss: {
		Name:         ProfitAndLoss,
		Title:        "Profit and Loss Statement",
		Layout:       LayoutTree,
		Mode:         periods.ModeAccumulated,
		Classes:      incomeStatement,
		Sign:         accounting.SignNatural,
		SuppressZero: true,
		Achievement:  &Comparison{Period: periods.WindowCurrent, Comparison: periods.WindowAccumulated},
		ResultLine:   true,
	},
	ProfitAndLossPrior: {
		Name:         ProfitAndLossPrior,
		Title:        "Profit and Loss Statement, Prior Year",
		Layout:       LayoutTree,
		Mode:         periods.ModePriorYear,
		Classes:      incomeStatement,
		Sign:         accounting.SignNatural,
		SuppressZero: true,
		Achievement:  &Comparison{Period: periods.WindowCurrent, Comparison: periods.WindowPrior},
		Variance:     &Comparison{Period: periods.WindowCurrent, Comparison: periods.WindowPrior},
		ResultLine:   true,
	},
	ProfitAndLossBudget: {
		Name:         ProfitAndLossBudget,
		Title:        "Profit and Loss Statement, Budget",
		Layout:       LayoutTree,
		Mode:         periods.ModeBudget,
		Classes:      incomeStatement,
		Sign:         accounting.SignNatural,
		SuppressZero: true,
		Achievement:  &Comparison{Period: periods.WindowCurrent, Comparison: periods.WindowBudget},
		Variance:     &Comparison{Period: periods.WindowCurrent, Comparison: periods.WindowBudget},
		ResultLine:   true,
	},
	BalanceSheet: {
		Name:           BalanceSheet,
		Title:          "Balance Sheet",
		Layout:         LayoutTree,
		Mode:           periods.ModeCurrent,
		BroughtForward: true,
		Closing:        true,
		Classes:        balanceSheet,
		Sign:           accounting.SignNatural,
		SuppressZero:   true,
		ResultLine:     true,
	},
	AnnualExpenseBreakdown: {
		Name:         AnnualExpenseBreakdown,
		Title:        "Annual Expense Breakdown",
		Layout:       LayoutTree,
		Mode:         periods.ModeRolling12,
		Classes:      []accounting.ClassKind{accounting.ClassExpense},
		Sign:         accounting.SignNatural,
		SuppressZero: true,
	},
	WorkingCapitalRatios: {
		Name:         WorkingCapitalRatios,
		Title:        "Working Capital Ratios",
		Layout:       LayoutTree,
		Mode:         periods.ModeCurrent,
		Closing:      true,
		Sign:         accounting.SignNatural,
		SuppressZero: true,
		WorkingCapital: &WorkingCapitalNodes{
			Receivables: []string{"account:1200"},
			Inventory:   []string{"account:1510"},
			Payables:    []string{"account:2100"},
			Revenue:     []string{"class:4"},
			CostOfSales: []string{"class:5"},
		},
	},
	Journal: {
		Name:   Journal,
		Title:  "Journal Entries",
		Layout: LayoutJournal,
		Types:  []int{journalEntryType},
	},
	AuditTrail: {
		Name:   AuditTrail,
		Title:  "Audit Trail",
		Layout: LayoutJournal,
	},
	AgedBalances: {
		Name:         AgedBalances,
		Title:        "Aged Balances",
		Layout:       LayoutAging,
		AgingBuckets: periods.DefaultAgingBuckets,
	},
}

// Lookup returns a copy of the preset configuration registered under name.
func Lookup(name string) (Config, error) {
	cfg, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", shared.ErrUnknownReport, name)
	}
	return cfg.clone(), nil
}

// Names lists the registered report names in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Presets returns copies of every registered configuration ordered by name.
func Presets() []Config {
	out := make([]Config, 0, len(presets))
	for _, name := range Names() {
		out = append(out, presets[name].clone())
	}
	return out
}

func (c Config) clone() Config {
	cp := c
	cp.Classes = append([]accounting.ClassKind(nil), c.Classes...)
	cp.Types = append([]int(nil), c.Types...)
	cp.AgingBuckets = append([]periods.AgingBucket(nil), c.AgingBuckets...)
	if c.Achievement != nil {
		a := *c.Achievement
		cp.Achievement = &a
	}
	if c.Variance != nil {
		v := *c.Variance
		cp.Variance = &v
	}
	if c.WorkingCapital != nil {
		w := *c.WorkingCapital
		cp.WorkingCapital = &w
	}
	return cp
}
