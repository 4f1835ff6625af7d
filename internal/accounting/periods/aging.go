package periods

import (
	"fmt"
	"time"
)

// AgingBucket is an inclusive range of days past a reference date.
// MaxDays < 0 leaves the bucket open ended.
type AgingBucket struct {
	Label   string
	MinDays int
	MaxDays int
}

// DefaultAgingBuckets mirrors the usual receivables aging columns.
var DefaultAgingBuckets = []AgingBucket{
	{Label: "current", MinDays: 0, MaxDays: 0},
	{Label: "1-30", MinDays: 1, MaxDays: 30},
	{Label: "31-60", MinDays: 31, MaxDays: 60},
	{Label: "61-90", MinDays: 61, MaxDays: 90},
	{Label: "over 90", MinDays: 91, MaxDays: -1},
}

// DaysBetween counts whole calendar days from date to asOf.
func DaysBetween(date, asOf time.Time) int {
	return int(Day(asOf).Sub(Day(date)).Hours() / 24)
}

// ClassifyAge returns the label of the bucket holding the age of date at asOf.
// Dates after asOf are classified as zero days old.
func ClassifyAge(asOf, date time.Time, buckets []AgingBucket) (string, error) {
	if len(buckets) == 0 {
		buckets = DefaultAgingBuckets
	}
	days := DaysBetween(date, asOf)
	if days < 0 {
		days = 0
	}
	for _, b := range buckets {
		if days < b.MinDays {
			continue
		}
		if b.MaxDays < 0 || days <= b.MaxDays {
			return b.Label, nil
		}
	}
	return "", fmt.Errorf("periods: no aging bucket for %d days", days)
}
