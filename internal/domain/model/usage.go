package model

import "time"

// UsagePeriodRecord is a durable consumption counter keyed by
// (user, output class, period start). Rows are created lazily on first
// use in a period and are never decremented; a new calendar month rolls
// to a new row and old rows stay untouched for history.
type UsagePeriodRecord struct {
	UserID          string
	OutputClass     string
	PeriodStart     time.Time
	IterationsUsed  int
	AssetsGenerated int
	UpdatedAt       time.Time
}

// UsageTotals is an aggregate over one or more period records.
type UsageTotals struct {
	IterationsUsed  int
	AssetsGenerated int
}

// PeriodStart truncates t to the first instant of its calendar month in UTC.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
