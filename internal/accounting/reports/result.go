package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting/hierarchy"
	"github.com/ksfraser/ksf-reports/internal/accounting/journals"
	"github.com/ksfraser/ksf-reports/internal/accounting/periods"
	"github.com/ksfraser/ksf-reports/internal/variance"
)

// Result is the output contract of a report run. Amounts are rounded to two
// decimals.
type Result struct {
	RunID          string                 `json:"runId"`
	Report         string                 `json:"report"`
	Title          string                 `json:"title"`
	Layout         Layout                 `json:"layout"`
	From           string                 `json:"from"`
	To             string                 `json:"to"`
	GeneratedAt    time.Time              `json:"generatedAt"`
	Windows        []WindowView           `json:"windows,omitempty"`
	Tree           *TreeNode              `json:"tree,omitempty"`
	Summary        *Summary               `json:"summary,omitempty"`
	Variances      []variance.VarianceRow `json:"variances,omitempty"`
	WorkingCapital *WorkingCapitalView    `json:"workingCapital,omitempty"`
	Transactions   *TransactionsView      `json:"transactions,omitempty"`
	Aging          *AgingView             `json:"aging,omitempty"`
	Queries        int64                  `json:"queries"`
}

// WindowView describes a computed window.
type WindowView struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

// TreeNode is one rendered line of a hierarchical report.
type TreeNode struct {
	ID              string             `json:"id"`
	Label           string             `json:"label"`
	Kind            string             `json:"kind"`
	Code            string             `json:"code,omitempty"`
	Amounts         map[string]float64 `json:"amounts"`
	AchievedPercent *float64           `json:"achievedPercent,omitempty"`
	VariancePercent *float64           `json:"variancePercent,omitempty"`
	Children        []TreeNode         `json:"children,omitempty"`
}

// Summary holds report-wide totals.
type Summary struct {
	Amounts         map[string]float64 `json:"amounts"`
	Result          map[string]float64 `json:"result,omitempty"`
	AchievedPercent *float64           `json:"achievedPercent,omitempty"`
	MarginPercent   *float64           `json:"marginPercent,omitempty"`
	IsBalanced      bool               `json:"isBalanced"`
	AccountCount    int                `json:"accountCount"`
}

// WorkingCapitalView holds working capital ratios in days.
type WorkingCapitalView struct {
	Days int     `json:"days"`
	DSO  float64 `json:"dso"`
	DIO  float64 `json:"dio"`
	DPO  float64 `json:"dpo"`
	CCC  float64 `json:"ccc"`
}

// TransactionsView is the rendered journal.
type TransactionsView struct {
	Items            []TransactionView `json:"items"`
	TotalDebit       float64           `json:"totalDebit"`
	TotalCredit      float64           `json:"totalCredit"`
	TransactionCount int               `json:"transactionCount"`
	UnbalancedCount  int               `json:"unbalancedCount"`
	IsBalanced       bool              `json:"isBalanced"`
}

// TransactionView is one rendered transaction.
type TransactionView struct {
	Type        int        `json:"type"`
	SequenceNo  int64      `json:"sequenceNo"`
	Date        string     `json:"date"`
	Lines       []LineView `json:"lines"`
	TotalDebit  float64    `json:"totalDebit"`
	TotalCredit float64    `json:"totalCredit"`
	IsBalanced  bool       `json:"isBalanced"`
}

// LineView is one rendered transaction line.
type LineView struct {
	Account     string  `json:"account"`
	AccountName string  `json:"accountName"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Memo        string  `json:"memo,omitempty"`
}

// AgingView is the rendered aged balance of one account.
type AgingView struct {
	Account string           `json:"account"`
	AsOf    string           `json:"asOf"`
	Buckets []AgingBucketRow `json:"buckets"`
	Total   float64          `json:"total"`
}

// AgingBucketRow is the total of one aging bucket.
type AgingBucketRow struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

func windowViews(windows []periods.Window) []WindowView {
	out := make([]WindowView, 0, len(windows))
	for _, w := range windows {
		v := WindowView{Name: w.Name, Kind: string(w.Kind), To: w.To.Format(time.DateOnly)}
		if !w.From.IsZero() {
			v.From = w.From.Format(time.DateOnly)
		}
		out = append(out, v)
	}
	return out
}

func roundAmounts(amounts map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(amounts))
	for w, v := range amounts {
		out[w] = variance.Round2(v)
	}
	return out
}

func roundPtr(v decimal.Decimal) *float64 {
	f := variance.Round2(v)
	return &f
}

// treeView renders n, adding per-node percentages when configured.
func treeView(n *hierarchy.Node, cfg Config) TreeNode {
	view := TreeNode{
		ID:      n.ID,
		Label:   n.Label,
		Kind:    string(n.Kind),
		Code:    n.Code,
		Amounts: roundAmounts(n.Amounts),
	}
	if a := cfg.Achievement; a != nil {
		view.AchievedPercent = roundPtr(variance.Achievement(n.Amount(a.Period), n.Amount(a.Comparison)))
	}
	if v := cfg.Variance; v != nil {
		view.VariancePercent = roundPtr(variance.Percent(n.Amount(v.Period), n.Amount(v.Comparison)))
	}
	for _, c := range n.Children {
		view.Children = append(view.Children, treeView(c, cfg))
	}
	return view
}

func transactionsView(j journals.Journal) *TransactionsView {
	view := &TransactionsView{
		Items:            make([]TransactionView, 0, len(j.Transactions)),
		TotalDebit:       variance.Round2(j.TotalDebit),
		TotalCredit:      variance.Round2(j.TotalCredit),
		TransactionCount: j.TransactionCount,
		UnbalancedCount:  j.UnbalancedCount,
		IsBalanced:       j.Balanced,
	}
	for _, tx := range j.Transactions {
		item := TransactionView{
			Type:        tx.Type,
			SequenceNo:  tx.SequenceNo,
			Date:        tx.Date.Format(time.DateOnly),
			Lines:       make([]LineView, 0, len(tx.Lines)),
			TotalDebit:  variance.Round2(tx.TotalDebit),
			TotalCredit: variance.Round2(tx.TotalCredit),
			IsBalanced:  tx.Balanced,
		}
		for _, l := range tx.Lines {
			item.Lines = append(item.Lines, LineView{
				Account:     l.AccountCode,
				AccountName: l.AccountName,
				Debit:       variance.Round2(l.Debit),
				Credit:      variance.Round2(l.Credit),
				Memo:        l.Memo,
			})
		}
		view.Items = append(view.Items, item)
	}
	return view
}
