package periods

import (
	"fmt"
	"time"

	"github.com/ksfraser/ksf-reports/internal/accounting/shared"
)

// Mode selects the comparison windows produced next to the current period.
type Mode string

const (
	// ModeCurrent produces the current window only.
	ModeCurrent Mode = "current"
	// ModeAccumulated adds a fiscal-year-to-date window.
	ModeAccumulated Mode = "accumulated"
	// ModePriorYear adds the same range shifted back twelve months.
	ModePriorYear Mode = "prior-year"
	// ModeBudget adds a budget window over the current range.
	ModeBudget Mode = "budget"
	// ModeRolling12 produces twelve monthly windows plus a total.
	ModeRolling12 Mode = "rolling-12-month"
)

const (
	minYear = 1900
	maxYear = 9999
)

// Request describes the date range and comparison mode of a report run.
type Request struct {
	From time.Time
	To   time.Time
	Mode Mode

	// FiscalYearBegin overrides the derived fiscal year start for ModeAccumulated.
	FiscalYearBegin time.Time
	// FiscalStartMonth is the first month of the fiscal year, January when zero.
	FiscalStartMonth time.Month

	// YearEnd and YearEndMonth anchor ModeRolling12; derived from To when zero.
	YearEnd      int
	YearEndMonth time.Month

	// BroughtForward prepends a window of all entries before From.
	BroughtForward bool
	// Closing appends a window of all entries up to and including To.
	Closing bool
}

// Calculate converts a report request into its ordered set of windows.
func Calculate(req Request) ([]Window, error) {
	if req.Mode == ModeRolling12 {
		year, month := req.YearEnd, req.YearEndMonth
		if year == 0 && month == 0 {
			if req.To.IsZero() {
				return nil, fmt.Errorf("%w: rolling year end required", shared.ErrInvalidRange)
			}
			year, month = req.To.Year(), req.To.Month()
		}
		return Rolling12(year, month)
	}

	from, to, err := validRange(req.From, req.To)
	if err != nil {
		return nil, err
	}

	windows := make([]Window, 0, 4)
	if req.BroughtForward {
		windows = append(windows, Window{Name: WindowBroughtForward, Kind: KindBroughtForward, To: from})
	}
	current := Window{Name: WindowCurrent, Kind: KindPeriod, From: from, To: to}
	windows = append(windows, current)

	switch req.Mode {
	case "", ModeCurrent:
	case ModeAccumulated:
		begin := Day(req.FiscalYearBegin)
		if req.FiscalYearBegin.IsZero() {
			begin = FiscalYearBegin(to, req.FiscalStartMonth)
		}
		if begin.After(to) {
			return nil, fmt.Errorf("%w: fiscal year begins %s after %s", shared.ErrInvalidRange, begin.Format(time.DateOnly), to.Format(time.DateOnly))
		}
		windows = append(windows, Window{Name: WindowAccumulated, Kind: KindPeriod, From: begin, To: to})
	case ModePriorYear:
		windows = append(windows, PriorYear(current))
	case ModeBudget:
		windows = append(windows, Window{Name: WindowBudget, Kind: KindBudget, From: from, To: to})
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", shared.ErrInvalidRange, req.Mode)
	}

	if req.Closing {
		windows = append(windows, Window{Name: WindowClosing, Kind: KindBroughtForward, To: to.AddDate(0, 0, 1)})
	}
	return windows, nil
}

// PriorYear shifts both bounds of w back twelve months and renames it "prior".
// An end date on the last day of its month snaps to the last day of the
// shifted month.
func PriorYear(w Window) Window {
	return Window{
		Name: WindowPrior,
		Kind: w.Kind,
		From: ShiftMonths(w.From, -12, false),
		To:   ShiftMonths(w.To, -12, true),
	}
}

// ShiftMonths moves t by the given number of months, clamping the day to the
// length of the target month. With snapEnd a month-end date stays a month-end date.
func ShiftMonths(t time.Time, months int, snapEnd bool) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := LastDayOfMonth(first).Day()
	if d > last || (snapEnd && IsLastDayOfMonth(t)) {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// FiscalYearBegin returns the start of the fiscal year containing date.
func FiscalYearBegin(date time.Time, startMonth time.Month) time.Time {
	if startMonth < time.January || startMonth > time.December {
		startMonth = time.January
	}
	begin := time.Date(date.Year(), startMonth, 1, 0, 0, 0, 0, time.UTC)
	if begin.After(Day(date)) {
		begin = begin.AddDate(-1, 0, 0)
	}
	return begin
}

// RollingBoundaries returns the 13 month boundaries spanning the twelve
// months that end with the given year and month.
func RollingBoundaries(year int, month time.Month) ([]time.Time, error) {
	if year < minYear || year > maxYear {
		return nil, fmt.Errorf("%w: year %d out of bounds", shared.ErrInvalidRange, year)
	}
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: month %d out of bounds", shared.ErrInvalidRange, month)
	}
	start := time.Date(year, month-11, 1, 0, 0, 0, 0, time.UTC)
	bounds := make([]time.Time, 13)
	for i := range bounds {
		bounds[i] = start.AddDate(0, i, 0)
	}
	return bounds, nil
}

// Rolling12 yields one window per month of the year ending in year/month,
// followed by a "total" window covering all twelve.
func Rolling12(year int, month time.Month) ([]Window, error) {
	bounds, err := RollingBoundaries(year, month)
	if err != nil {
		return nil, err
	}
	windows := make([]Window, 0, 13)
	for i := 0; i < 12; i++ {
		windows = append(windows, Window{
			Name: bounds[i].Format("2006-01"),
			Kind: KindPeriod,
			From: bounds[i],
			To:   bounds[i+1].AddDate(0, 0, -1),
		})
	}
	windows = append(windows, Window{
		Name: WindowTotal,
		Kind: KindPeriod,
		From: bounds[0],
		To:   bounds[12].AddDate(0, 0, -1),
	})
	return windows, nil
}

func validRange(from, to time.Time) (time.Time, time.Time, error) {
	if from.IsZero() || to.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from and to required", shared.ErrInvalidRange)
	}
	from, to = Day(from), Day(to)
	for _, d := range []time.Time{from, to} {
		if d.Year() < minYear || d.Year() > maxYear {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: year %d out of bounds", shared.ErrInvalidRange, d.Year())
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s before %s", shared.ErrInvalidRange, to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	return from, to, nil
}
