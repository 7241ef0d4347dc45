// Package ingest pulls records from the external sources and hands them to
// the persistence layer. Each source has its own sync service; the Pipeline
// runs all of them and aggregates per-entity counts.
package ingest

import (
	"context"

	"pulse/internal/models"
)

// LoadResult reports how a batch fared at the persistence layer.
type LoadResult struct {
	Loaded  int
	Skipped int
}

// GitHubClient is the source-side contract for the GitHub sync service.
type GitHubClient interface {
	ListRepos(ctx context.Context) ([]string, error)
	GetCommits(ctx context.Context, repo string, lookbackDays int) ([]models.Commit, error)
	GetPullRequests(ctx context.Context, repo string, lookbackDays int) ([]models.PullRequest, error)
	GetAllCommits(ctx context.Context, lookbackDays int) ([]models.Commit, error)
	GetAllPullRequests(ctx context.Context, lookbackDays int) ([]models.PullRequest, error)
}

// MercuryClient is the source-side contract for the Mercury sync service.
type MercuryClient interface {
	GetAccounts(ctx context.Context) ([]models.Account, error)
	GetTransactions(ctx context.Context, accountID string, lookbackDays int) ([]models.Transaction, error)
}

// QuickBooksClient is the source-side contract for the QuickBooks sync
// service. Both calls return an error only when the token refresh fails.
type QuickBooksClient interface {
	GetInvoices(ctx context.Context, lookbackDays int) ([]models.Invoice, error)
	GetPayments(ctx context.Context, lookbackDays int) ([]models.Payment, error)
}

// CommitStore persists commit batches.
type CommitStore interface {
	Upsert(ctx context.Context, commits []models.Commit) (LoadResult, error)
}

// PullRequestStore persists pull request batches.
type PullRequestStore interface {
	Upsert(ctx context.Context, prs []models.PullRequest) (LoadResult, error)
}

// InvoiceStore persists invoice batches.
type InvoiceStore interface {
	Upsert(ctx context.Context, invoices []models.Invoice) (LoadResult, error)
}

// PaymentStore persists payment batches.
type PaymentStore interface {
	Upsert(ctx context.Context, payments []models.Payment) (LoadResult, error)
}

// AccountStore persists account batches.
type AccountStore interface {
	Upsert(ctx context.Context, accounts []models.Account) (LoadResult, error)
}

// TransactionStore persists bank transaction batches.
type TransactionStore interface {
	Upsert(ctx context.Context, transactions []models.Transaction) (LoadResult, error)
}
