package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// QuickBooksSyncResult contains the results of a QuickBooks sync operation.
type QuickBooksSyncResult struct {
	InvoicesFound   int
	InvoicesLoaded  int
	PaymentsFound   int
	PaymentsLoaded  int
	PaymentsSkipped int
	Errors          []string
}

// QuickBooksSyncService pulls invoices before payments so payment rows can
// satisfy their invoice foreign key. The client surfaces an error only when
// the token refresh fails, and that error is returned rather than swallowed
// since nothing downstream can succeed without credentials.
type QuickBooksSyncService struct {
	client       QuickBooksClient
	invoiceStore InvoiceStore
	paymentStore PaymentStore
	log          zerolog.Logger
}

func NewQuickBooksSyncService(client QuickBooksClient, invoiceStore InvoiceStore, paymentStore PaymentStore, log zerolog.Logger) *QuickBooksSyncService {
	return &QuickBooksSyncService{
		client:       client,
		invoiceStore: invoiceStore,
		paymentStore: paymentStore,
		log:          log.With().Str("component", "quickbooks_sync").Logger(),
	}
}

func (s *QuickBooksSyncService) Sync(ctx context.Context, lookbackDays int) (*QuickBooksSyncResult, error) {
	result := &QuickBooksSyncResult{Errors: []string{}}

	invoices, err := s.client.GetInvoices(ctx, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("quickbooks sync failed: %w", err)
	}
	result.InvoicesFound = len(invoices)

	if len(invoices) > 0 {
		loaded, err := s.invoiceStore.Upsert(ctx, invoices)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to load invoices: %v", err))
		}
		result.InvoicesLoaded = loaded.Loaded
	}

	payments, err := s.client.GetPayments(ctx, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("quickbooks sync failed: %w", err)
	}
	result.PaymentsFound = len(payments)

	if len(payments) > 0 {
		loaded, err := s.paymentStore.Upsert(ctx, payments)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to load payments: %v", err))
		}
		result.PaymentsLoaded = loaded.Loaded
		result.PaymentsSkipped = loaded.Skipped
	}

	s.log.Info().
		Int("invoices_found", result.InvoicesFound).
		Int("invoices_loaded", result.InvoicesLoaded).
		Int("payments_found", result.PaymentsFound).
		Int("payments_loaded", result.PaymentsLoaded).
		Int("payments_skipped", result.PaymentsSkipped).
		Int("errors", len(result.Errors)).
		Msg("quickbooks sync completed")

	return result, nil
}
