package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pulse/internal/models"
)

// MercurySyncResult contains the results of a Mercury sync operation.
type MercurySyncResult struct {
	AccountsFound       int
	AccountsLoaded      int
	TransactionsFound   int
	TransactionsLoaded  int
	TransactionsSkipped int
	Errors              []string
}

// MercurySyncService pulls accounts first, then transactions per account.
// An account whose transaction fetch fails is recorded in Errors and the
// remaining accounts still sync.
type MercurySyncService struct {
	client           MercuryClient
	accountStore     AccountStore
	transactionStore TransactionStore
	log              zerolog.Logger
}

func NewMercurySyncService(client MercuryClient, accountStore AccountStore, transactionStore TransactionStore, log zerolog.Logger) *MercurySyncService {
	return &MercurySyncService{
		client:           client,
		accountStore:     accountStore,
		transactionStore: transactionStore,
		log:              log.With().Str("component", "mercury_sync").Logger(),
	}
}

func (s *MercurySyncService) Sync(ctx context.Context, lookbackDays int) (*MercurySyncResult, error) {
	result := &MercurySyncResult{Errors: []string{}}

	accounts, err := s.client.GetAccounts(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to fetch accounts: %v", err))
	}
	result.AccountsFound = len(accounts)

	if len(accounts) > 0 {
		loaded, err := s.accountStore.Upsert(ctx, accounts)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to load accounts: %v", err))
		}
		result.AccountsLoaded = loaded.Loaded
	}

	var transactions []models.Transaction
	for _, account := range accounts {
		txs, err := s.client.GetTransactions(ctx, account.ID, lookbackDays)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to fetch transactions for account %s: %v", account.ID, err))
			continue
		}
		transactions = append(transactions, txs...)
	}
	result.TransactionsFound = len(transactions)

	if len(transactions) > 0 {
		loaded, err := s.transactionStore.Upsert(ctx, transactions)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to load transactions: %v", err))
		}
		result.TransactionsLoaded = loaded.Loaded
		result.TransactionsSkipped = loaded.Skipped
	}

	s.log.Info().
		Int("accounts_found", result.AccountsFound).
		Int("transactions_found", result.TransactionsFound).
		Int("transactions_loaded", result.TransactionsLoaded).
		Int("errors", len(result.Errors)).
		Msg("mercury sync completed")

	return result, nil
}
