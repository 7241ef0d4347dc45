package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"pulse/internal/models"
)

// batchWindow groups accounts written in the same sync run: rows synced
// within this span of the most recent synced_at count toward the current
// balance, older rows are stale.
const batchWindow = 10 * time.Second

const maxRecentTransactions = 10

// CommitSource is the read side the calculator needs for commits.
type CommitSource interface {
	ListByDateRange(ctx context.Context, start, endExcl time.Time) ([]models.Commit, error)
}

// PullRequestSource is the read side for merged pull requests.
type PullRequestSource interface {
	ListMergedBetween(ctx context.Context, start, endExcl time.Time) ([]models.PullRequest, error)
}

// InvoiceSource is the read side for invoices.
type InvoiceSource interface {
	ListUnpaid(ctx context.Context) ([]models.Invoice, error)
	ListByDateRange(ctx context.Context, start, end time.Time) ([]models.Invoice, error)
}

// PaymentSource is the read side for payments.
type PaymentSource interface {
	ListByDateRange(ctx context.Context, start, end time.Time) ([]models.Payment, error)
}

// AccountSource is the read side for bank accounts.
type AccountSource interface {
	ListAll(ctx context.Context) ([]models.Account, error)
}

// TransactionSource is the read side for bank transactions.
type TransactionSource interface {
	ListBetween(ctx context.Context, start, end time.Time) ([]models.Transaction, error)
}

// Calculator computes a weekly snapshot from the store.
type Calculator struct {
	commits      CommitSource
	pullRequests PullRequestSource
	invoices     InvoiceSource
	payments     PaymentSource
	accounts     AccountSource
	transactions TransactionSource

	now func() time.Time
}

func NewCalculator(
	commits CommitSource,
	pullRequests PullRequestSource,
	invoices InvoiceSource,
	payments PaymentSource,
	accounts AccountSource,
	transactions TransactionSource,
) *Calculator {
	return &Calculator{
		commits:      commits,
		pullRequests: pullRequests,
		invoices:     invoices,
		payments:     payments,
		accounts:     accounts,
		transactions: transactions,
		now:          time.Now,
	}
}

// DefaultWeekStart returns the Monday of the current week at midnight
// local time.
func (c *Calculator) DefaultWeekStart() time.Time {
	now := c.now()
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -daysSinceMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, monday.Location())
}

// Compute builds the snapshot for the week starting at weekStart. A zero
// weekStart means the Monday of the current week. The window is inclusive:
// [weekStart, weekStart+6d], with timestamped records counted up to the end
// of the last day.
func (c *Calculator) Compute(ctx context.Context, weekStart time.Time) (*Snapshot, error) {
	if weekStart.IsZero() {
		weekStart = c.DefaultWeekStart()
	}
	weekEnd := weekStart.AddDate(0, 0, 6)
	endExcl := weekStart.AddDate(0, 0, 7)

	snapshot := &Snapshot{
		WeekStart:   weekStart,
		WeekEnd:     weekEnd,
		GeneratedAt: c.now(),
	}

	unpaid, err := c.invoices.ListUnpaid(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load unpaid invoices: %w", err)
	}
	snapshot.AccountsReceivable = sumMoney(unpaid, func(inv models.Invoice) float64 { return inv.Balance })

	invoiced, err := c.invoices.ListByDateRange(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	snapshot.InvoicedAmount = sumMoney(invoiced, func(inv models.Invoice) float64 { return inv.TotalAmount })

	payments, err := c.payments.ListByDateRange(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	snapshot.CashCollected = sumMoney(payments, func(p models.Payment) float64 { return p.Amount })

	accounts, err := c.accounts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	snapshot.CurrentBalance = currentBalance(accounts)

	commits, err := c.commits.ListByDateRange(ctx, weekStart, endExcl)
	if err != nil {
		return nil, fmt.Errorf("failed to load commits: %w", err)
	}
	snapshot.DeveloperCommits = len(commits)
	snapshot.CommitsByAuthor = countByAuthor(commits, func(c models.Commit) string { return c.Author })

	merged, err := c.pullRequests.ListMergedBetween(ctx, weekStart, endExcl)
	if err != nil {
		return nil, fmt.Errorf("failed to load merged pull requests: %w", err)
	}
	snapshot.PRsMerged = len(merged)
	snapshot.PRsByAuthor = countByAuthor(merged, func(pr models.PullRequest) string { return pr.Author })

	transactions, err := c.transactions.ListBetween(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	if len(transactions) > maxRecentTransactions {
		transactions = transactions[:maxRecentTransactions]
	}
	snapshot.RecentTransactions = transactions

	return snapshot, nil
}

// currentBalance sums the balances of the latest account batch: every
// account synced within batchWindow of the most recent synced_at.
func currentBalance(accounts []models.Account) float64 {
	if len(accounts) == 0 {
		return 0
	}

	var latest time.Time
	for _, a := range accounts {
		if a.SyncedAt.After(latest) {
			latest = a.SyncedAt
		}
	}

	cutoff := latest.Add(-batchWindow)
	total := decimal.Zero
	for _, a := range accounts {
		if !a.SyncedAt.Before(cutoff) {
			total = total.Add(decimal.NewFromFloat(a.Balance))
		}
	}

	f, _ := total.Round(2).Float64()
	return f
}

func sumMoney[T any](items []T, amount func(T) float64) float64 {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(decimal.NewFromFloat(amount(item)))
	}
	f, _ := total.Round(2).Float64()
	return f
}

// countByAuthor groups records by author, sorted descending by count.
// Ties keep first-seen order.
func countByAuthor[T any](items []T, author func(T) string) []AuthorCount {
	counts := make(map[string]int)
	var order []string
	for _, item := range items {
		a := author(item)
		if _, seen := counts[a]; !seen {
			order = append(order, a)
		}
		counts[a]++
	}

	result := make([]AuthorCount, 0, len(order))
	for _, a := range order {
		result = append(result, AuthorCount{Author: a, Count: counts[a]})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})

	return result
}
