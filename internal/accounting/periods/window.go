package periods

import "time"

// Kind determines how a window's bounds are applied to ledger dates.
type Kind string

const (
	// KindBroughtForward covers every entry strictly before To.
	KindBroughtForward Kind = "brought_forward"
	// KindPeriod covers entries with From <= date <= To.
	KindPeriod Kind = "period"
	// KindBudget uses the period bounds against budget entries instead of actuals.
	KindBudget Kind = "budget"
)

// Well-known window names.
const (
	WindowBroughtForward = "brought_forward"
	WindowCurrent        = "current"
	WindowAccumulated    = "accumulated"
	WindowPrior          = "prior"
	WindowBudget         = "budget"
	WindowClosing        = "closing"
	WindowTotal          = "total"
)

// Window is a named date range used to bucket ledger entries.
type Window struct {
	Name string
	Kind Kind
	From time.Time
	To   time.Time
}

// Contains reports whether a ledger date falls inside the window.
func (w Window) Contains(date time.Time) bool {
	d := Day(date)
	switch w.Kind {
	case KindBroughtForward:
		return d.Before(Day(w.To))
	default:
		return !d.Before(Day(w.From)) && !d.After(Day(w.To))
	}
}

// Budget reports whether the window reads budget rather than actual entries.
func (w Window) Budget() bool {
	return w.Kind == KindBudget
}

// Names returns the window names in order.
func Names(windows []Window) []string {
	names := make([]string, 0, len(windows))
	for _, w := range windows {
		names = append(names, w.Name)
	}
	return names
}

// Find returns the window with the given name.
func Find(windows []Window, name string) (Window, bool) {
	for _, w := range windows {
		if w.Name == name {
			return w, true
		}
	}
	return Window{}, false
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LastDayOfMonth returns the last calendar day of the month containing t.
func LastDayOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
}

// IsLastDayOfMonth reports whether t is the final day of its month.
func IsLastDayOfMonth(t time.Time) bool {
	return t.Day() == LastDayOfMonth(t).Day()
}
