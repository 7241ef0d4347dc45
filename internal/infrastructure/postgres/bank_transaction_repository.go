package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pulse/internal/domain/ingest"
	"pulse/internal/models"
)

type BankTransactionRepository struct {
	db *DB
}

func NewBankTransactionRepository(db *DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: db}
}

func (r *BankTransactionRepository) Upsert(ctx context.Context, transactions []models.Transaction) (ingest.LoadResult, error) {
	if len(transactions) == 0 {
		return ingest.LoadResult{}, nil
	}

	syncedAt := time.Now().UTC()

	var (
		placeholders []string
		args         []any
	)
	for i, t := range transactions {
		base := i * 9
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args, t.ID, t.AccountID, t.Date, t.Amount, t.Description, t.Category, t.Status, t.Type, syncedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO mercury_transactions (id, account_id, transaction_date, amount, description, category, status, type, synced_at)
		VALUES %s
		ON CONFLICT (id) DO UPDATE SET
		    account_id = EXCLUDED.account_id,
		    transaction_date = EXCLUDED.transaction_date,
		    amount = EXCLUDED.amount,
		    description = EXCLUDED.description,
		    category = EXCLUDED.category,
		    status = EXCLUDED.status,
		    type = EXCLUDED.type,
		    synced_at = EXCLUDED.synced_at
	`, strings.Join(placeholders, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return ingest.LoadResult{}, fmt.Errorf("failed to upsert transactions: %w", err)
	}

	return ingest.LoadResult{Loaded: len(transactions)}, nil
}

// ListBetween returns transactions dated between start and end inclusive,
// newest first.
func (r *BankTransactionRepository) ListBetween(ctx context.Context, start, end time.Time) ([]models.Transaction, error) {
	query := `
		SELECT id, account_id, transaction_date, amount, description, category, status, type, synced_at
		FROM mercury_transactions
		WHERE transaction_date >= $1 AND transaction_date <= $2
		ORDER BY transaction_date DESC
	`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Date, &t.Amount, &t.Description, &t.Category, &t.Status, &t.Type, &t.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}
