package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pulse/internal/domain/ingest"
	"pulse/internal/models"
)

type InvoiceRepository struct {
	db *DB
}

func NewInvoiceRepository(db *DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Upsert(ctx context.Context, invoices []models.Invoice) (ingest.LoadResult, error) {
	if len(invoices) == 0 {
		return ingest.LoadResult{}, nil
	}

	syncedAt := time.Now().UTC()

	var (
		placeholders []string
		args         []any
	)
	for i, inv := range invoices {
		base := i * 9
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))

		var dueDate sql.NullTime
		if !inv.DueDate.IsZero() {
			dueDate = sql.NullTime{Time: inv.DueDate, Valid: true}
		}

		args = append(args, inv.ID, inv.CustomerID, inv.CustomerName, inv.InvoiceDate, dueDate,
			inv.TotalAmount, inv.Balance, inv.Status, syncedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO quickbooks_invoices (id, customer_id, customer_name, invoice_date, due_date, total_amount, balance, status, synced_at)
		VALUES %s
		ON CONFLICT (id) DO UPDATE SET
		    customer_id = EXCLUDED.customer_id,
		    customer_name = EXCLUDED.customer_name,
		    invoice_date = EXCLUDED.invoice_date,
		    due_date = EXCLUDED.due_date,
		    total_amount = EXCLUDED.total_amount,
		    balance = EXCLUDED.balance,
		    status = EXCLUDED.status,
		    synced_at = EXCLUDED.synced_at
	`, strings.Join(placeholders, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return ingest.LoadResult{}, fmt.Errorf("failed to upsert invoices: %w", err)
	}

	return ingest.LoadResult{Loaded: len(invoices)}, nil
}

// ListUnpaid returns every invoice carrying an open balance, regardless of
// how old it is. The accounts receivable figure is point-in-time.
func (r *InvoiceRepository) ListUnpaid(ctx context.Context) ([]models.Invoice, error) {
	query := `
		SELECT id, customer_id, customer_name, invoice_date, due_date, total_amount, balance, status, synced_at
		FROM quickbooks_invoices
		WHERE status <> $1
		ORDER BY invoice_date
	`

	return r.list(ctx, query, models.InvoiceStatusPaid)
}

// ListByDateRange returns invoices issued between start and end inclusive.
func (r *InvoiceRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]models.Invoice, error) {
	query := `
		SELECT id, customer_id, customer_name, invoice_date, due_date, total_amount, balance, status, synced_at
		FROM quickbooks_invoices
		WHERE invoice_date >= $1 AND invoice_date <= $2
		ORDER BY invoice_date
	`

	return r.list(ctx, query, start, end)
}

func (r *InvoiceRepository) list(ctx context.Context, query string, args ...any) ([]models.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []models.Invoice
	for rows.Next() {
		var inv models.Invoice
		var dueDate sql.NullTime

		if err := rows.Scan(&inv.ID, &inv.CustomerID, &inv.CustomerName, &inv.InvoiceDate, &dueDate,
			&inv.TotalAmount, &inv.Balance, &inv.Status, &inv.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		if dueDate.Valid {
			inv.DueDate = dueDate.Time
		}

		invoices = append(invoices, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}

	return invoices, nil
}
