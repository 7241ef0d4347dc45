package quickbooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTokenURL = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"

	// refreshMargin triggers a proactive refresh before the access token
	// actually expires, so no data call ever races the expiry.
	refreshMargin = 5 * time.Minute
)

// ErrTokenRefresh marks an irrecoverable auth failure: once the refresh
// credential is rejected, no further call to this source can succeed.
var ErrTokenRefresh = errors.New("quickbooks token refresh failed")

// tokenManager holds the short-lived access token and the single active
// refresh token. The provider returns a new refresh token on every exchange;
// the old one is superseded immediately.
type tokenManager struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string

	accessToken  string
	refreshToken string
	expiresAt    time.Time

	now func() time.Time
}

func newTokenManager(httpClient *http.Client, clientID, clientSecret, refreshToken string) *tokenManager {
	return &tokenManager{
		httpClient:   httpClient,
		tokenURL:     defaultTokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Token returns a valid access token, exchanging the refresh token first
// when the current one expires within the safety margin.
func (t *tokenManager) Token(ctx context.Context) (string, error) {
	if t.accessToken != "" && t.now().Before(t.expiresAt.Add(-refreshMargin)) {
		return t.accessToken, nil
	}
	if err := t.refresh(ctx); err != nil {
		return "", err
	}
	return t.accessToken, nil
}

func (t *tokenManager) refresh(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {t.refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", ErrTokenRefresh, err)
	}
	req.SetBasicAuth(t.clientID, t.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrTokenRefresh, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrTokenRefresh, resp.StatusCode)
	}

	var tokens tokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response: %v", ErrTokenRefresh, err)
	}
	if tokens.AccessToken == "" {
		return fmt.Errorf("%w: empty access token in response", ErrTokenRefresh)
	}

	t.accessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		// The provider rotated the refresh credential; the old one is
		// dead from this point on.
		t.refreshToken = tokens.RefreshToken
	}
	t.expiresAt = t.now().Add(time.Duration(tokens.ExpiresIn) * time.Second)

	return nil
}
