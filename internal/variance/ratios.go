package variance

import "github.com/shopspring/decimal"

// Achievement expresses period as a percentage of comparison. Both zero
// yields 0, a zero comparison yields AchievementCap, and results above the
// cap are clamped to it. Negative results are not clamped.
func Achievement(period, comparison decimal.Decimal) decimal.Decimal {
	if comparison.IsZero() {
		if period.IsZero() {
			return decimal.Zero
		}
		return AchievementCap
	}
	pct := period.Mul(hundred).Div(comparison)
	if pct.GreaterThan(AchievementCap) {
		return AchievementCap
	}
	return pct
}

// Percent is the change from prior to current relative to |prior|; 0 when prior is zero.
func Percent(current, prior decimal.Decimal) decimal.Decimal {
	if prior.IsZero() {
		return decimal.Zero
	}
	return current.Sub(prior).Mul(hundred).Div(prior.Abs())
}

// Margin is part as a percentage of whole; 0 when whole is zero.
func Margin(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole)
}

// ComputeWorkingCapital derives DSO, DIO, DPO and the cash conversion cycle.
// A ratio with a zero denominator is 0.
func ComputeWorkingCapital(in WorkingCapitalInput) WorkingCapital {
	days := decimal.NewFromInt(int64(in.Days))
	dso := turnoverDays(in.Receivables, in.Revenue, days)
	dio := turnoverDays(in.Inventory, in.CostOfSales, days)
	dpo := turnoverDays(in.Payables, in.CostOfSales, days)
	return WorkingCapital{
		DSO: dso,
		DIO: dio,
		DPO: dpo,
		CCC: dso.Add(dio).Sub(dpo),
	}
}

func turnoverDays(balance, flow, days decimal.Decimal) decimal.Decimal {
	if flow.IsZero() {
		return decimal.Zero
	}
	return balance.Mul(days).Div(flow.Abs())
}
