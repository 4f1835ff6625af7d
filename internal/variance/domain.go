package variance

import "github.com/shopspring/decimal"

// AchievementCap is reported when a comparison amount is zero and caps
// achievement percentages above.
var AchievementCap = decimal.NewFromInt(999)

var hundred = decimal.NewFromInt(100)

// AccountBalance wraps aggregated values for an account.
type AccountBalance struct {
	Name   string
	Amount decimal.Decimal
}

// Threshold flags variance rows; nil limits are ignored.
type Threshold struct {
	Amount  *decimal.Decimal
	Percent *decimal.Decimal
}

// VarianceRow describes one account of a period comparison, rounded for output.
type VarianceRow struct {
	AccountCode   string  `json:"accountCode"`
	AccountName   string  `json:"accountName"`
	BaseAmount    float64 `json:"baseAmount"`
	CompareAmount float64 `json:"compareAmount"`
	Variance      float64 `json:"variance"`
	VariancePct   float64 `json:"variancePct"`
	Flagged       bool    `json:"flagged"`
}

// WorkingCapitalInput holds period balances and flows for working capital ratios.
type WorkingCapitalInput struct {
	Receivables decimal.Decimal
	Inventory   decimal.Decimal
	Payables    decimal.Decimal
	Revenue     decimal.Decimal
	CostOfSales decimal.Decimal
	Days        int
}

// WorkingCapital holds days sales outstanding, days inventory outstanding,
// days payables outstanding and the cash conversion cycle.
type WorkingCapital struct {
	DSO decimal.Decimal
	DIO decimal.Decimal
	DPO decimal.Decimal
	CCC decimal.Decimal
}
