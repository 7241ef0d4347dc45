package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pulse/internal/domain/ingest"
	"pulse/internal/models"
)

type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Upsert writes the batch in one statement so all accounts in a sync run
// share the same synced_at, which is what groups them into a batch for the
// current-balance calculation.
func (r *AccountRepository) Upsert(ctx context.Context, accounts []models.Account) (ingest.LoadResult, error) {
	if len(accounts) == 0 {
		return ingest.LoadResult{}, nil
	}

	syncedAt := time.Now().UTC()

	var (
		placeholders []string
		args         []any
	)
	for i, a := range accounts {
		base := i * 8
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args, a.ID, a.Name, a.Type, a.Balance, a.AvailableBalance, a.Currency, a.Status, syncedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO mercury_accounts (id, name, type, balance, available_balance, currency, status, synced_at)
		VALUES %s
		ON CONFLICT (id) DO UPDATE SET
		    name = EXCLUDED.name,
		    type = EXCLUDED.type,
		    balance = EXCLUDED.balance,
		    available_balance = EXCLUDED.available_balance,
		    currency = EXCLUDED.currency,
		    status = EXCLUDED.status,
		    synced_at = EXCLUDED.synced_at
	`, strings.Join(placeholders, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return ingest.LoadResult{}, fmt.Errorf("failed to upsert accounts: %w", err)
	}

	return ingest.LoadResult{Loaded: len(accounts)}, nil
}

// ListAll returns every known account with its last synced balance.
func (r *AccountRepository) ListAll(ctx context.Context) ([]models.Account, error) {
	query := `
		SELECT id, name, type, balance, available_balance, currency, status, synced_at
		FROM mercury_accounts
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Balance, &a.AvailableBalance, &a.Currency, &a.Status, &a.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}
