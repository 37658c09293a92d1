// Package newsday derives the logical reporting date of a broadcast.
//
// The evening programs air before midnight, so a day is only considered complete
// once the cutoff hour has passed.
package newsday

import "time"

// CutoffHour is the local hour from which the current calendar date is the news-day.
const CutoffHour = 22

const (
	// DateLayout is the collection date format.
	DateLayout = "2006-01-02"
	// CompactLayout is the date format broadcaster program URLs use.
	CompactLayout = "20060102"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return time.Time(c) }

// For returns the news-day for now, at midnight in now's location.
func For(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if now.Hour() >= CutoffHour {
		return day
	}
	return day.AddDate(0, 0, -1)
}

// Today returns the news-day according to clock.
func Today(clock Clock) time.Time {
	return For(clock.Now())
}

// Format renders a news-day as a collection date.
func Format(day time.Time) string {
	return day.Format(DateLayout)
}

// Compact renders a news-day the way program URLs expect it.
func Compact(day time.Time) string {
	return day.Format(CompactLayout)
}

// Parse reads a collection date in the local time zone.
func Parse(date string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, date, time.Local)
}
