package database

import "time"

// GetToday returns today's date as YYYY-MM-DD, the period id of a run.
func GetToday() string {
	return time.Now().Format("2006-01-02")
}

// FormatPeriodDisplay formats a period id for human-readable display,
// e.g. "Feb 06, 2026".
func FormatPeriodDisplay(periodID string) string {
	d, err := time.Parse("2006-01-02", periodID)
	if err != nil {
		return periodID
	}
	return d.Format("Jan 02, 2006")
}
