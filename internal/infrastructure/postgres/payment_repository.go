package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pulse/internal/domain/ingest"
	"pulse/internal/models"
)

type PaymentRepository struct {
	db  *DB
	log zerolog.Logger
}

func NewPaymentRepository(db *DB, log zerolog.Logger) *PaymentRepository {
	return &PaymentRepository{
		db:  db,
		log: log.With().Str("component", "payment_repository").Logger(),
	}
}

// Upsert writes payments one at a time so a single bad record cannot sink
// the batch. A payment whose invoice was never synced trips the foreign key
// and is counted as skipped.
func (r *PaymentRepository) Upsert(ctx context.Context, payments []models.Payment) (ingest.LoadResult, error) {
	syncedAt := time.Now().UTC()

	query := `
		INSERT INTO quickbooks_payments (id, invoice_id, payment_date, amount, synced_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    invoice_id = EXCLUDED.invoice_id,
		    payment_date = EXCLUDED.payment_date,
		    amount = EXCLUDED.amount,
		    synced_at = EXCLUDED.synced_at
	`

	var result ingest.LoadResult
	for _, p := range payments {
		_, err := r.db.ExecContext(ctx, query, p.ID, p.InvoiceID, p.PaymentDate, p.Amount, syncedAt)
		if err != nil {
			if IsForeignKeyViolation(err) {
				r.log.Warn().
					Str("payment_id", p.ID).
					Str("invoice_id", p.InvoiceID).
					Msg("payment references unknown invoice, skipping")
			} else {
				r.log.Warn().
					Str("payment_id", p.ID).
					Str("error", truncateError(err)).
					Msg("failed to upsert payment, skipping")
			}
			result.Skipped++
			continue
		}
		result.Loaded++
	}

	return result, nil
}

// ListByDateRange returns payments dated between start and end inclusive.
func (r *PaymentRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]models.Payment, error) {
	query := `
		SELECT id, invoice_id, payment_date, amount, synced_at
		FROM quickbooks_payments
		WHERE payment_date >= $1 AND payment_date <= $2
		ORDER BY payment_date
	`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.PaymentDate, &p.Amount, &p.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}

func truncateError(err error) string {
	s := err.Error()
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
