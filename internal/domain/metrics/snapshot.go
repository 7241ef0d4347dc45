package metrics

import (
	"time"

	"pulse/internal/models"
)

// AuthorCount is one row of a by-author breakdown.
type AuthorCount struct {
	Author string
	Count  int
}

// Snapshot is the full computed result for one reporting week. Only the
// scalar fields persist; the breakdowns and transaction list exist for
// notification.
type Snapshot struct {
	WeekStart          time.Time
	WeekEnd            time.Time
	AccountsReceivable float64
	CashCollected      float64
	InvoicedAmount     float64
	CurrentBalance     float64
	DeveloperCommits   int
	PRsMerged          int
	CommitsByAuthor    []AuthorCount
	PRsByAuthor        []AuthorCount
	RecentTransactions []models.Transaction
	GeneratedAt        time.Time
}

// CollectionRate returns cash collected as a percentage of the amount
// invoiced this week, or 0 when nothing was invoiced.
func (s *Snapshot) CollectionRate() float64 {
	if s.InvoicedAmount == 0 {
		return 0
	}
	return s.CashCollected / s.InvoicedAmount * 100
}

// Scalars returns the persistable subset of the snapshot.
func (s *Snapshot) Scalars() models.WeeklyMetrics {
	return models.WeeklyMetrics{
		WeekStart:          s.WeekStart,
		WeekEnd:            s.WeekEnd,
		AccountsReceivable: s.AccountsReceivable,
		CashCollected:      s.CashCollected,
		InvoicedAmount:     s.InvoicedAmount,
		CurrentBalance:     s.CurrentBalance,
		DeveloperCommits:   s.DeveloperCommits,
		PRsMerged:          s.PRsMerged,
		GeneratedAt:        s.GeneratedAt,
	}
}
