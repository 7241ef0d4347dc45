package models

import "time"

// Invoice statuses derived at extraction time.
const (
	InvoiceStatusPaid    = "Paid"
	InvoiceStatusUnpaid  = "Unpaid"
	InvoiceStatusOverdue = "Overdue"
)

// Invoice is the canonical record for an accounts-receivable invoice.
type Invoice struct {
	ID           string // natural key, e.g. "INV-1042"
	CustomerID   string
	CustomerName string
	InvoiceDate  time.Time
	DueDate      time.Time // zero when the source omits a due date
	TotalAmount  float64
	Balance      float64
	Status       string
	SyncedAt     time.Time
}

// DeriveInvoiceStatus applies the status rules: a zero balance means Paid,
// an open balance past its due date means Overdue, anything else is Unpaid.
// A zero due date never marks an invoice overdue.
func DeriveInvoiceStatus(balance float64, dueDate, now time.Time) string {
	if balance == 0 {
		return InvoiceStatusPaid
	}
	if !dueDate.IsZero() && dueDate.Before(now) {
		return InvoiceStatusOverdue
	}
	return InvoiceStatusUnpaid
}

// Payment is the canonical record for a payment received against an invoice.
// A source payment covering several invoices is exploded into one record per
// linked invoice, with the amount split evenly across them.
type Payment struct {
	ID          string // natural key, e.g. "PMT-310-INV-1042"
	InvoiceID   string
	PaymentDate time.Time
	Amount      float64
	SyncedAt    time.Time
}
