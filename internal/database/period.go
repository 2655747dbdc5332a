package database

import (
	"time"
)

const dateLayout = "2006-01-02"

// GetToday returns today's date as YYYY-MM-DD.
func GetToday() string {
	return time.Now().Format(dateLayout)
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// ShiftDate returns the date that is days away from date.
// Invalid input is returned unchanged.
func ShiftDate(date string, days int) string {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return d.AddDate(0, 0, days).Format(dateLayout)
}

// PreviousDay returns the calendar day before date.
func PreviousDay(date string) string {
	return ShiftDate(date, -1)
}

// LastNDays returns the n dates ending at end, oldest first.
func LastNDays(end string, n int) []string {
	dates := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		dates = append(dates, ShiftDate(end, -i))
	}
	return dates
}

// FormatDateDisplay formats a date for human-readable display.
// "2026-02-06" becomes "Feb 06, 2026".
func FormatDateDisplay(date string) string {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return d.Format("Jan 02, 2006")
}
