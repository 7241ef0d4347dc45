package postgres

import (
	"context"
	"fmt"

	"pulse/internal/models"
)

type MetricsRepository struct {
	db *DB
}

func NewMetricsRepository(db *DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// Insert stores the scalar snapshot for a week. Rows are append-only: the
// first snapshot written for a week_start wins and a re-run is a no-op.
func (r *MetricsRepository) Insert(ctx context.Context, m models.WeeklyMetrics) error {
	query := `
		INSERT INTO weekly_metrics (week_start, week_end, accounts_receivable, cash_collected,
		                            invoiced_amount, current_balance, developer_commits, prs_merged, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (week_start) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		m.WeekStart, m.WeekEnd, m.AccountsReceivable, m.CashCollected,
		m.InvoicedAmount, m.CurrentBalance, m.DeveloperCommits, m.PRsMerged, m.GeneratedAt)
	if err != nil {
		return fmt.Errorf("failed to insert weekly metrics: %w", err)
	}

	return nil
}
