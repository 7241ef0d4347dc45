package models

import "time"

// WeeklyMetrics is the scalar snapshot row persisted per reporting week.
// WeekStart is the natural key; rows are insert-only so past weeks keep
// the numbers that were reported at the time.
type WeeklyMetrics struct {
	WeekStart          time.Time
	WeekEnd            time.Time
	AccountsReceivable float64
	CashCollected      float64
	InvoicedAmount     float64
	CurrentBalance     float64
	DeveloperCommits   int
	PRsMerged          int
	GeneratedAt        time.Time
}
