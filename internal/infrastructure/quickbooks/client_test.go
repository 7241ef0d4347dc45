package quickbooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/models"
	"pulse/internal/shared/logger"
	"pulse/internal/shared/retry"
)

func newTestClient(dataURL, tokenURL string) *Client {
	policy := retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return NewClient("client-id", "client-secret", "refresh-1", "realm-1", false, policy, logger.Nop()).
		WithBaseURL(dataURL, tokenURL)
}

func tokenHandler(t *testing.T, accessToken, newRefreshToken string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))

		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken:  accessToken,
			RefreshToken: newRefreshToken,
			ExpiresIn:    3600,
		})
	}
}

func TestTokenManager_RefreshAndReuse(t *testing.T) {
	refreshes := 0
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes++
		tokenHandler(t, fmt.Sprintf("access-%d", refreshes), "refresh-2")(w, r)
	}))
	defer tokenSrv.Close()

	tm := newTokenManager(tokenSrv.Client(), "client-id", "client-secret", "refresh-1")
	tm.tokenURL = tokenSrv.URL

	token, err := tm.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
	assert.Equal(t, "refresh-2", tm.refreshToken)

	// Still valid, no second exchange.
	token, err = tm.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
	assert.Equal(t, 1, refreshes)
}

func TestTokenManager_RefreshesWithinMargin(t *testing.T) {
	refreshes := 0
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes++
		tokenHandler(t, fmt.Sprintf("access-%d", refreshes), "")(w, r)
	}))
	defer tokenSrv.Close()

	tm := newTokenManager(tokenSrv.Client(), "client-id", "client-secret", "refresh-1")
	tm.tokenURL = tokenSrv.URL

	_, err := tm.Token(context.Background())
	require.NoError(t, err)

	// Jump to 2 minutes before expiry, inside the 5 minute margin.
	tm.now = func() time.Time { return tm.expiresAt.Add(-2 * time.Minute) }

	token, err := tm.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)
	assert.Equal(t, 2, refreshes)

	// Empty rotation keeps the original refresh token.
	assert.Equal(t, "refresh-1", tm.refreshToken)
}

func TestTokenManager_RefreshFailure(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer tokenSrv.Close()

	tm := newTokenManager(tokenSrv.Client(), "client-id", "client-secret", "expired")
	tm.tokenURL = tokenSrv.URL

	_, err := tm.Token(context.Background())
	require.ErrorIs(t, err, ErrTokenRefresh)
}

func TestClient_GetInvoices(t *testing.T) {
	tokenSrv := httptest.NewServer(tokenHandler(t, "access-1", "refresh-2"))
	defer tokenSrv.Close()

	dataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("query"), "SELECT * FROM Invoice WHERE TxnDate >=")
		assert.Contains(t, r.URL.Query().Get("query"), "MAXRESULTS 1000")

		fmt.Fprint(w, `{"QueryResponse": {"Invoice": [
			{"Id": "1042", "TotalAmt": 5000, "Balance": 0, "TxnDate": "2026-08-03",
			 "DueDate": "2026-08-17", "CustomerRef": {"value": "77", "name": "Acme Corp"}},
			{"Id": "1043", "TotalAmt": 1200.50, "Balance": 1200.50, "TxnDate": "2026-08-10",
			 "DueDate": "2020-01-01", "CustomerRef": {"value": "78", "name": "Globex"}}
		]}}`)
	}))
	defer dataSrv.Close()

	client := newTestClient(dataSrv.URL, tokenSrv.URL)

	invoices, err := client.GetInvoices(context.Background(), 90)
	require.NoError(t, err)
	require.Len(t, invoices, 2)

	assert.Equal(t, "INV-1042", invoices[0].ID)
	assert.Equal(t, "Acme Corp", invoices[0].CustomerName)
	assert.Equal(t, models.InvoiceStatusPaid, invoices[0].Status)
	assert.Equal(t, 5000.0, invoices[0].TotalAmount)

	assert.Equal(t, "INV-1043", invoices[1].ID)
	assert.Equal(t, models.InvoiceStatusOverdue, invoices[1].Status)
}

func TestClient_GetPayments_SplitsAcrossInvoices(t *testing.T) {
	tokenSrv := httptest.NewServer(tokenHandler(t, "access-1", ""))
	defer tokenSrv.Close()

	dataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("query"), "SELECT * FROM Payment WHERE TxnDate >=")

		fmt.Fprint(w, `{"QueryResponse": {"Payment": [
			{"Id": "310", "TotalAmt": 100, "TxnDate": "2026-08-12", "Line": [
				{"Amount": 100, "LinkedTxn": [
					{"TxnId": "1042", "TxnType": "Invoice"},
					{"TxnId": "1043", "TxnType": "Invoice"},
					{"TxnId": "1044", "TxnType": "Invoice"}
				]}
			]},
			{"Id": "311", "TotalAmt": 50, "TxnDate": "2026-08-13", "Line": [
				{"Amount": 50, "LinkedTxn": [{"TxnId": "999", "TxnType": "JournalEntry"}]}
			]}
		]}}`)
	}))
	defer dataSrv.Close()

	client := newTestClient(dataSrv.URL, tokenSrv.URL)

	payments, err := client.GetPayments(context.Background(), 90)
	require.NoError(t, err)
	require.Len(t, payments, 3)

	assert.Equal(t, "PMT-310-INV-1042", payments[0].ID)
	assert.Equal(t, "INV-1042", payments[0].InvoiceID)
	assert.Equal(t, 33.33, payments[0].Amount)
	assert.Equal(t, 33.33, payments[1].Amount)
	assert.Equal(t, 33.33, payments[2].Amount)
}

func TestClient_GetInvoices_ServerErrorReturnsEmpty(t *testing.T) {
	tokenSrv := httptest.NewServer(tokenHandler(t, "access-1", ""))
	defer tokenSrv.Close()

	dataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer dataSrv.Close()

	client := newTestClient(dataSrv.URL, tokenSrv.URL)

	invoices, err := client.GetInvoices(context.Background(), 90)
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestClient_GetInvoices_RefreshFailureIsFatal(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer tokenSrv.Close()

	client := newTestClient("http://unused.invalid", tokenSrv.URL)

	_, err := client.GetInvoices(context.Background(), 90)
	require.ErrorIs(t, err, ErrTokenRefresh)
}
