package variance

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ComputeVariance merges base & compare balances and applies threshold flags.
// Rows are ordered by absolute variance, largest first.
func ComputeVariance(base, compare map[string]AccountBalance, threshold Threshold) []VarianceRow {
	type pair struct {
		name          string
		base, compare decimal.Decimal
	}
	lookup := make(map[string]*pair)
	for code, bal := range base {
		lookup[code] = &pair{name: bal.Name, base: bal.Amount}
	}
	for code, bal := range compare {
		p, ok := lookup[code]
		if !ok {
			p = &pair{}
			lookup[code] = p
		}
		if p.name == "" {
			p.name = bal.Name
		}
		p.compare = bal.Amount
	}

	type scored struct {
		row VarianceRow
		abs decimal.Decimal
	}
	out := make([]scored, 0, len(lookup))
	for code, p := range lookup {
		diff := p.base.Sub(p.compare)
		pct := Percent(p.base, p.compare)
		out = append(out, scored{
			row: VarianceRow{
				AccountCode:   code,
				AccountName:   p.name,
				BaseAmount:    Round2(p.base),
				CompareAmount: Round2(p.compare),
				Variance:      Round2(diff),
				VariancePct:   Round2(pct),
				Flagged:       exceedsThreshold(diff, pct, threshold),
			},
			abs: diff.Abs(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].abs.Cmp(out[j].abs); c != 0 {
			return c > 0
		}
		return out[i].row.AccountCode < out[j].row.AccountCode
	})
	rows := make([]VarianceRow, len(out))
	for i, s := range out {
		rows[i] = s.row
	}
	return rows
}

func exceedsThreshold(diff, pct decimal.Decimal, t Threshold) bool {
	if t.Amount != nil && diff.Abs().GreaterThanOrEqual(*t.Amount) {
		return true
	}
	if t.Percent != nil && pct.Abs().GreaterThanOrEqual(*t.Percent) {
		return true
	}
	return false
}

// Round2 converts an amount to a float rounded half away from zero to cents.
func Round2(v decimal.Decimal) float64 {
	f, _ := v.Round(2).Float64()
	return f
}
