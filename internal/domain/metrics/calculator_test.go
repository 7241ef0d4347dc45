package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/models"
)

type mockSources struct {
	commits      []models.Commit
	prs          []models.PullRequest
	unpaid       []models.Invoice
	invoiced     []models.Invoice
	payments     []models.Payment
	accounts     []models.Account
	transactions []models.Transaction

	commitRange [2]time.Time
}

func (m *mockSources) ListByDateRange(ctx context.Context, start, end time.Time) ([]models.Commit, error) {
	m.commitRange = [2]time.Time{start, end}
	var out []models.Commit
	for _, c := range m.commits {
		if !c.Date.Before(start) && c.Date.Before(end) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockSources) ListMergedBetween(ctx context.Context, start, end time.Time) ([]models.PullRequest, error) {
	var out []models.PullRequest
	for _, pr := range m.prs {
		if pr.MergedAt != nil && !pr.MergedAt.Before(start) && pr.MergedAt.Before(end) {
			out = append(out, pr)
		}
	}
	return out, nil
}

type invoiceSources struct{ m *mockSources }

func (s invoiceSources) ListUnpaid(ctx context.Context) ([]models.Invoice, error) {
	return s.m.unpaid, nil
}

func (s invoiceSources) ListByDateRange(ctx context.Context, start, end time.Time) ([]models.Invoice, error) {
	return s.m.invoiced, nil
}

type paymentSources struct{ m *mockSources }

func (s paymentSources) ListByDateRange(ctx context.Context, start, end time.Time) ([]models.Payment, error) {
	return s.m.payments, nil
}

type accountSources struct{ m *mockSources }

func (s accountSources) ListAll(ctx context.Context) ([]models.Account, error) {
	return s.m.accounts, nil
}

type transactionSources struct{ m *mockSources }

func (s transactionSources) ListBetween(ctx context.Context, start, end time.Time) ([]models.Transaction, error) {
	return s.m.transactions, nil
}

func newTestCalculator(m *mockSources) *Calculator {
	return NewCalculator(m, m, invoiceSources{m}, paymentSources{m}, accountSources{m}, transactionSources{m})
}

func date(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func TestDefaultWeekStart(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"wednesday", time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC), date(2026, 8, 24)},
		{"monday", time.Date(2026, 8, 24, 0, 0, 1, 0, time.UTC), date(2026, 8, 24)},
		{"sunday", time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC), date(2026, 8, 24)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := newTestCalculator(&mockSources{})
			calc.now = func() time.Time { return tt.now }
			assert.Equal(t, tt.want, calc.DefaultWeekStart())
		})
	}
}

func TestCompute_CommitWindowIncludesAllOfLastDay(t *testing.T) {
	weekStart := date(2026, 8, 24)

	m := &mockSources{
		commits: []models.Commit{
			{SHA: "in-late", Author: "ana", Date: time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)},
			{SHA: "out", Author: "ana", Date: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)},
		},
	}

	calc := newTestCalculator(m)
	snapshot, err := calc.Compute(context.Background(), weekStart)
	require.NoError(t, err)

	assert.Equal(t, 1, snapshot.DeveloperCommits)
	assert.Equal(t, weekStart, m.commitRange[0])
	assert.Equal(t, date(2026, 8, 31), m.commitRange[1])
	assert.Equal(t, date(2026, 8, 30), snapshot.WeekEnd)
}

func TestCompute_FinancialSums(t *testing.T) {
	m := &mockSources{
		unpaid: []models.Invoice{
			{ID: "INV-1", Balance: 100.10, Status: models.InvoiceStatusUnpaid},
			{ID: "INV-2", Balance: 200.25, Status: models.InvoiceStatusOverdue},
		},
		invoiced: []models.Invoice{
			{ID: "INV-3", TotalAmount: 1000},
			{ID: "INV-4", TotalAmount: 500.55},
		},
		payments: []models.Payment{
			{ID: "PMT-1-INV-3", Amount: 750.30},
		},
	}

	calc := newTestCalculator(m)
	snapshot, err := calc.Compute(context.Background(), date(2026, 8, 24))
	require.NoError(t, err)

	assert.Equal(t, 300.35, snapshot.AccountsReceivable)
	assert.Equal(t, 1500.55, snapshot.InvoicedAmount)
	assert.Equal(t, 750.30, snapshot.CashCollected)
	assert.InDelta(t, 50.0, snapshot.CollectionRate(), 0.01)
}

func TestCollectionRate_ZeroWhenNothingInvoiced(t *testing.T) {
	s := &Snapshot{CashCollected: 500, InvoicedAmount: 0}
	assert.Equal(t, 0.0, s.CollectionRate())
}

func TestCompute_CurrentBalanceUsesLatestBatch(t *testing.T) {
	latest := time.Date(2026, 8, 28, 6, 0, 0, 0, time.UTC)

	m := &mockSources{
		accounts: []models.Account{
			{ID: "a", Balance: 1000, SyncedAt: latest},
			{ID: "b", Balance: 250, SyncedAt: latest.Add(-5 * time.Second)},
			{ID: "c", Balance: 9999, SyncedAt: latest.Add(-20 * time.Second)},
		},
	}

	calc := newTestCalculator(m)
	snapshot, err := calc.Compute(context.Background(), date(2026, 8, 24))
	require.NoError(t, err)

	assert.Equal(t, 1250.0, snapshot.CurrentBalance)
}

func TestCompute_CurrentBalanceZeroWithoutAccounts(t *testing.T) {
	calc := newTestCalculator(&mockSources{})
	snapshot, err := calc.Compute(context.Background(), date(2026, 8, 24))
	require.NoError(t, err)
	assert.Equal(t, 0.0, snapshot.CurrentBalance)
}

func TestCompute_AuthorBreakdownStableOnTies(t *testing.T) {
	mergedAt := func(d int) *time.Time {
		ts := time.Date(2026, 8, d, 12, 0, 0, 0, time.UTC)
		return &ts
	}

	m := &mockSources{
		commits: []models.Commit{
			{SHA: "1", Author: "ana", Date: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)},
			{SHA: "2", Author: "bob", Date: time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC)},
			{SHA: "3", Author: "bob", Date: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)},
			{SHA: "4", Author: "cid", Date: time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC)},
		},
		prs: []models.PullRequest{
			{Number: 1, Author: "cid", State: models.PRStateMerged, MergedAt: mergedAt(25)},
			{Number: 2, Author: "ana", State: models.PRStateMerged, MergedAt: mergedAt(26)},
		},
	}

	calc := newTestCalculator(m)
	snapshot, err := calc.Compute(context.Background(), date(2026, 8, 24))
	require.NoError(t, err)

	// bob leads with 2; ana and cid tie at 1 and keep first-seen order.
	require.Len(t, snapshot.CommitsByAuthor, 3)
	assert.Equal(t, AuthorCount{Author: "bob", Count: 2}, snapshot.CommitsByAuthor[0])
	assert.Equal(t, AuthorCount{Author: "ana", Count: 1}, snapshot.CommitsByAuthor[1])
	assert.Equal(t, AuthorCount{Author: "cid", Count: 1}, snapshot.CommitsByAuthor[2])

	require.Len(t, snapshot.PRsByAuthor, 2)
	assert.Equal(t, "cid", snapshot.PRsByAuthor[0].Author)
	assert.Equal(t, "ana", snapshot.PRsByAuthor[1].Author)
	assert.Equal(t, 2, snapshot.PRsMerged)
}

func TestCompute_RecentTransactionsCapped(t *testing.T) {
	var txs []models.Transaction
	for i := 0; i < 15; i++ {
		txs = append(txs, models.Transaction{ID: string(rune('a' + i))})
	}

	calc := newTestCalculator(&mockSources{transactions: txs})
	snapshot, err := calc.Compute(context.Background(), date(2026, 8, 24))
	require.NoError(t, err)

	assert.Len(t, snapshot.RecentTransactions, 10)
}

func TestSnapshot_Scalars(t *testing.T) {
	s := &Snapshot{
		WeekStart:          date(2026, 8, 24),
		WeekEnd:            date(2026, 8, 30),
		AccountsReceivable: 300.35,
		CashCollected:      750.30,
		InvoicedAmount:     1500.55,
		CurrentBalance:     1250,
		DeveloperCommits:   4,
		PRsMerged:          2,
		CommitsByAuthor:    []AuthorCount{{Author: "bob", Count: 2}},
		GeneratedAt:        time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC),
	}

	scalars := s.Scalars()
	assert.Equal(t, s.WeekStart, scalars.WeekStart)
	assert.Equal(t, s.AccountsReceivable, scalars.AccountsReceivable)
	assert.Equal(t, s.DeveloperCommits, scalars.DeveloperCommits)
	assert.Equal(t, s.GeneratedAt, scalars.GeneratedAt)
}
