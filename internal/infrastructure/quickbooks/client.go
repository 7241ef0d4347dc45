package quickbooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pulse/internal/models"
	"pulse/internal/shared/retry"
)

const (
	productionBaseURL = "https://quickbooks.api.intuit.com"
	sandboxBaseURL    = "https://sandbox-quickbooks.api.intuit.com"

	maxQueryResults = 1000
)

// Client fetches invoices and payments from the QuickBooks Online API.
// Transient failures degrade to empty results; only a rejected refresh
// credential surfaces as an error, since nothing can recover from it.
type Client struct {
	httpClient *http.Client
	tokens     *tokenManager
	baseURL    string
	realmID    string
	retry      retry.Policy
	log        zerolog.Logger
}

func NewClient(clientID, clientSecret, refreshToken, realmID string, sandbox bool, policy retry.Policy, log zerolog.Logger) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	baseURL := productionBaseURL
	if sandbox {
		baseURL = sandboxBaseURL
	}

	return &Client{
		httpClient: httpClient,
		tokens:     newTokenManager(httpClient, clientID, clientSecret, refreshToken),
		baseURL:    baseURL,
		realmID:    realmID,
		retry:      policy,
		log:        log.With().Str("component", "quickbooks_client").Logger(),
	}
}

// WithBaseURL overrides both the data and token endpoints, for tests.
func (c *Client) WithBaseURL(dataURL, tokenURL string) *Client {
	c.baseURL = dataURL
	c.tokens.tokenURL = tokenURL
	return c
}

type invoicePayload struct {
	ID          string  `json:"Id"`
	TotalAmt    float64 `json:"TotalAmt"`
	Balance     float64 `json:"Balance"`
	TxnDate     string  `json:"TxnDate"`
	DueDate     string  `json:"DueDate"`
	CustomerRef ref     `json:"CustomerRef"`
}

type paymentPayload struct {
	ID       string        `json:"Id"`
	TotalAmt float64       `json:"TotalAmt"`
	TxnDate  string        `json:"TxnDate"`
	Line     []paymentLine `json:"Line"`
}

type paymentLine struct {
	Amount    float64     `json:"Amount"`
	LinkedTxn []linkedTxn `json:"LinkedTxn"`
}

type linkedTxn struct {
	TxnID   string `json:"TxnId"`
	TxnType string `json:"TxnType"`
}

type ref struct {
	Value string `json:"value"`
	Name  string `json:"name"`
}

type queryResponse struct {
	QueryResponse struct {
		Invoice []invoicePayload `json:"Invoice"`
		Payment []paymentPayload `json:"Payment"`
	} `json:"QueryResponse"`
}

// GetInvoices returns invoices dated within the lookback window. Timeouts
// and non-auth HTTP failures return an empty slice.
func (c *Client) GetInvoices(ctx context.Context, lookbackDays int) ([]models.Invoice, error) {
	query := fmt.Sprintf("SELECT * FROM Invoice WHERE TxnDate >= '%s' MAXRESULTS %d",
		sinceDate(lookbackDays), maxQueryResults)

	result, err := c.query(ctx, query)
	if err != nil {
		if errors.Is(err, ErrTokenRefresh) {
			return nil, err
		}
		c.log.Warn().Err(err).Msg("invoice query failed, returning empty result")
		return nil, nil
	}

	now := time.Now()
	invoices := make([]models.Invoice, 0, len(result.QueryResponse.Invoice))
	for _, inv := range result.QueryResponse.Invoice {
		issueDate := parseDate(inv.TxnDate)
		dueDate := parseDate(inv.DueDate)

		invoices = append(invoices, models.Invoice{
			ID:           "INV-" + inv.ID,
			CustomerID:   inv.CustomerRef.Value,
			CustomerName: inv.CustomerRef.Name,
			InvoiceDate:  issueDate,
			DueDate:      dueDate,
			TotalAmount:  inv.TotalAmt,
			Balance:      inv.Balance,
			Status:       models.DeriveInvoiceStatus(inv.Balance, dueDate, now),
		})
	}

	c.log.Debug().Int("count", len(invoices)).Msg("fetched invoices")

	return invoices, nil
}

// GetPayments returns one record per payment/invoice link. A payment
// covering several invoices is split evenly across them; rounding keeps
// each share at two decimal places.
func (c *Client) GetPayments(ctx context.Context, lookbackDays int) ([]models.Payment, error) {
	query := fmt.Sprintf("SELECT * FROM Payment WHERE TxnDate >= '%s' MAXRESULTS %d",
		sinceDate(lookbackDays), maxQueryResults)

	result, err := c.query(ctx, query)
	if err != nil {
		if errors.Is(err, ErrTokenRefresh) {
			return nil, err
		}
		c.log.Warn().Err(err).Msg("payment query failed, returning empty result")
		return nil, nil
	}

	var payments []models.Payment
	for _, pmt := range result.QueryResponse.Payment {
		invoiceIDs := linkedInvoiceIDs(pmt)
		if len(invoiceIDs) == 0 {
			continue
		}

		share := splitAmount(pmt.TotalAmt, len(invoiceIDs))
		date := parseDate(pmt.TxnDate)

		for _, invoiceID := range invoiceIDs {
			linkedInvoice := "INV-" + invoiceID
			payments = append(payments, models.Payment{
				ID:          fmt.Sprintf("PMT-%s-%s", pmt.ID, linkedInvoice),
				InvoiceID:   linkedInvoice,
				PaymentDate: date,
				Amount:      share,
			})
		}
	}

	c.log.Debug().Int("count", len(payments)).Msg("fetched payments")

	return payments, nil
}

func (c *Client) query(ctx context.Context, query string) (*queryResponse, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/query?query=%s&minorversion=65",
		c.baseURL, c.realmID, url.QueryEscape(query))

	var body []byte
	var status int

	doErr := c.retry.Do(ctx, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return false, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return isTimeout(err), err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return false, err
		}
		if status != http.StatusOK {
			return retry.RetryableStatus(status), fmt.Errorf("query returned status %d", status)
		}
		return false, nil
	})
	if doErr != nil {
		return nil, doErr
	}

	var result queryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal query response: %w", err)
	}

	return &result, nil
}

func linkedInvoiceIDs(pmt paymentPayload) []string {
	var ids []string
	for _, line := range pmt.Line {
		for _, txn := range line.LinkedTxn {
			if txn.TxnType == "Invoice" {
				ids = append(ids, txn.TxnID)
			}
		}
	}
	return ids
}

func splitAmount(total float64, parts int) float64 {
	share := decimal.NewFromFloat(total).
		Div(decimal.NewFromInt(int64(parts))).
		Round(2)
	f, _ := share.Float64()
	return f
}

func sinceDate(lookbackDays int) string {
	return time.Now().AddDate(0, 0, -lookbackDays).Format("2006-01-02")
}

func parseDate(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
