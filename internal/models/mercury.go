package models

import "time"

// Account is the canonical record for a bank account. SyncedAt groups the
// accounts written together in one load call; the metrics engine treats all
// accounts synced within a few seconds of the most recent one as the
// current batch.
type Account struct {
	ID               string
	Name             string
	Type             string
	Balance          float64
	AvailableBalance float64
	Currency         string
	Status           string
	SyncedAt         time.Time
}

// Transaction is the canonical record for a bank transaction. Amount is
// signed: positive means money in (credit), negative means money out.
// Category comes from the source when present, otherwise it is inferred
// from the transaction's free text.
type Transaction struct {
	ID          string
	AccountID   string
	Date        time.Time
	Amount      float64
	Description string
	Category    string
	Status      string
	Type        string
	SyncedAt    time.Time
}
