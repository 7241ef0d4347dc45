// Package mercury extracts bank accounts and transactions from a
// Mercury-style REST API.
package mercury

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pulse/internal/models"
	"pulse/internal/shared/retry"
)

const (
	defaultBaseURL = "https://api.mercury.com/api/v1"
	defaultTimeout = 15 * time.Second

	dateParamLayout = "2006-01-02"
)

// Client talks to the Mercury REST API with a static bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	retry      retry.Policy
	log        zerolog.Logger
}

func NewClient(apiKey string, policy retry.Policy, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		retry:      policy,
		log:        log.With().Str("source", "mercury").Logger(),
	}
}

// WithBaseURL points the client at a different API host. Used in tests and
// for the configurable Mercury-compatible endpoint.
func (c *Client) WithBaseURL(base string) *Client {
	if base != "" {
		c.baseURL = strings.TrimRight(base, "/")
	}
	return c
}

type accountsResponse struct {
	Accounts []accountPayload `json:"accounts"`
}

type accountPayload struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Kind             string  `json:"kind"`
	CurrentBalance   float64 `json:"currentBalance"`
	AvailableBalance float64 `json:"availableBalance"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
}

type transactionsResponse struct {
	Transactions []transactionPayload `json:"transactions"`
}

type transactionPayload struct {
	ID               string     `json:"id"`
	Amount           float64    `json:"amount"`
	CreatedAt        time.Time  `json:"createdAt"`
	PostedAt         *time.Time `json:"postedAt"`
	BankDescription  string     `json:"bankDescription"`
	CounterpartyName string     `json:"counterpartyName"`
	Note             string     `json:"note"`
	Category         string     `json:"category"`
	Status           string     `json:"status"`
}

// GetAccounts fetches all bank accounts. Transient failures yield an empty
// best-effort result; unexpected statuses abort the call with an error.
func (c *Client) GetAccounts(ctx context.Context) ([]models.Account, error) {
	body, status, err := c.get(ctx, "/accounts", nil)
	if err != nil {
		if isTimeout(err) {
			c.log.Warn().Err(err).Msg("timeout fetching accounts")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	if status == http.StatusNotFound {
		c.log.Warn().Msg("accounts endpoint not found")
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("mercury accounts request failed with status %d", status)
	}

	var resp accountsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal accounts: %w", err)
	}

	accounts := make([]models.Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		currency := a.Currency
		if currency == "" {
			currency = "USD"
		}
		accounts = append(accounts, models.Account{
			ID:               a.ID,
			Name:             a.Name,
			Type:             a.Kind,
			Balance:          a.CurrentBalance,
			AvailableBalance: a.AvailableBalance,
			Currency:         currency,
			Status:           a.Status,
		})
	}

	c.log.Info().Int("count", len(accounts)).Msg("accounts fetched")
	return accounts, nil
}

// GetTransactions fetches transactions for one account within the lookback
// window. Missing accounts are logged and yield zero results.
func (c *Client) GetTransactions(ctx context.Context, accountID string, lookbackDays int) ([]models.Transaction, error) {
	now := time.Now().UTC()
	params := url.Values{
		"start": {now.AddDate(0, 0, -lookbackDays).Format(dateParamLayout)},
		"end":   {now.Format(dateParamLayout)},
	}

	body, status, err := c.get(ctx, fmt.Sprintf("/account/%s/transactions", accountID), params)
	if err != nil {
		if isTimeout(err) {
			c.log.Warn().Err(err).Str("account", accountID).Msg("timeout fetching transactions")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch transactions for account %s: %w", accountID, err)
	}
	if status == http.StatusNotFound {
		c.log.Warn().Str("account", accountID).Msg("account not found, skipping")
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("mercury transactions request failed with status %d", status)
	}

	var resp transactionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transactions: %w", err)
	}

	transactions := make([]models.Transaction, 0, len(resp.Transactions))
	for _, t := range resp.Transactions {
		date := t.CreatedAt
		if t.PostedAt != nil {
			date = *t.PostedAt
		}

		description := t.BankDescription
		if description == "" {
			description = t.CounterpartyName
		}

		txType := "debit"
		if t.Amount > 0 {
			txType = "credit"
		}

		transactions = append(transactions, models.Transaction{
			ID:          t.ID,
			AccountID:   accountID,
			Date:        date,
			Amount:      t.Amount,
			Description: description,
			Category:    Categorize(t.Category, t.Note, t.CounterpartyName),
			Status:      t.Status,
			Type:        txType,
		})
	}

	c.log.Info().Int("count", len(transactions)).Str("account", accountID).Msg("transactions fetched")
	return transactions, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var body []byte
	var status int

	err := c.retry.Do(ctx, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return false, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return false, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return false, fmt.Errorf("failed to read response body: %w", err)
		}

		status = resp.StatusCode
		if retry.RetryableStatus(status) {
			return true, fmt.Errorf("mercury returned status %d", status)
		}
		return false, nil
	})
	if err != nil {
		return nil, status, err
	}
	return body, status, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
