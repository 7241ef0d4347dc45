package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS github_commits (
		sha         TEXT PRIMARY KEY,
		author      TEXT NOT NULL,
		commit_date TIMESTAMPTZ NOT NULL,
		repository  TEXT NOT NULL,
		message     TEXT NOT NULL DEFAULT '',
		additions   INTEGER NOT NULL DEFAULT 0,
		deletions   INTEGER NOT NULL DEFAULT 0,
		synced_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS github_pull_requests (
		pr_number  INTEGER NOT NULL,
		repository TEXT NOT NULL,
		author     TEXT NOT NULL,
		title      TEXT NOT NULL DEFAULT '',
		state      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		merged_at  TIMESTAMPTZ,
		synced_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (pr_number, repository)
	)`,
	`CREATE TABLE IF NOT EXISTS quickbooks_invoices (
		id            TEXT PRIMARY KEY,
		customer_id   TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		invoice_date  DATE NOT NULL,
		due_date      DATE,
		total_amount  NUMERIC(14,2) NOT NULL,
		balance       NUMERIC(14,2) NOT NULL,
		status        TEXT NOT NULL,
		synced_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quickbooks_payments (
		id           TEXT PRIMARY KEY,
		invoice_id   TEXT NOT NULL REFERENCES quickbooks_invoices(id),
		payment_date DATE NOT NULL,
		amount       NUMERIC(14,2) NOT NULL,
		synced_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mercury_accounts (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		type              TEXT NOT NULL DEFAULT '',
		balance           NUMERIC(14,2) NOT NULL,
		available_balance NUMERIC(14,2) NOT NULL,
		currency          TEXT NOT NULL DEFAULT 'USD',
		status            TEXT NOT NULL DEFAULT '',
		synced_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mercury_transactions (
		id               TEXT PRIMARY KEY,
		account_id       TEXT NOT NULL,
		transaction_date DATE NOT NULL,
		amount           NUMERIC(14,2) NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		category         TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT '',
		type             TEXT NOT NULL DEFAULT '',
		synced_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS weekly_metrics (
		week_start          DATE PRIMARY KEY,
		week_end            DATE NOT NULL,
		accounts_receivable NUMERIC(14,2) NOT NULL,
		cash_collected      NUMERIC(14,2) NOT NULL,
		invoiced_amount     NUMERIC(14,2) NOT NULL,
		current_balance     NUMERIC(14,2) NOT NULL,
		developer_commits   INTEGER NOT NULL,
		prs_merged          INTEGER NOT NULL,
		generated_at        TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates every table the loader and metrics engine need,
// so a fresh database works without a separate migration step.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
