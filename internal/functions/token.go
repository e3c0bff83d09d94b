package functions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	defaultTokenTTL = 3599 * time.Second
	refreshBuffer   = 5 * time.Minute
)

// Authorizer yields the bearer token sent to the function endpoints.
type Authorizer interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed API key.
type StaticToken string

// Token returns the key itself.
func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// TokenSource fetches client-credentials tokens and caches them until shortly
// before they expire. Safe for concurrent use.
type TokenSource struct {
	clientID     string
	clientSecret string
	authURL      string
	client       *http.Client
	now          func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"` // seconds, number or numeric string
}

// NewTokenSource creates a token source for the given auth endpoint.
func NewTokenSource(clientID, clientSecret, authURL string, client *http.Client) *TokenSource {
	if client == nil {
		client = newHTTPClient(defaultTimeout)
	}
	return &TokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		authURL:      authURL,
		client:       client,
		now:          time.Now,
	}
}

// Token returns a valid access token, refreshing if necessary.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.RLock()
	if ts.token != "" && ts.now().Before(ts.expiresAt) {
		token := ts.token
		ts.mu.RUnlock()
		return token, nil
	}
	ts.mu.RUnlock()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	// another goroutine may have refreshed while we waited
	if ts.token != "" && ts.now().Before(ts.expiresAt) {
		return ts.token, nil
	}

	if err := ts.refresh(ctx); err != nil {
		return "", err
	}
	return ts.token, nil
}

// refresh must be called with the write lock held.
func (ts *TokenSource) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.authURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(ts.clientID + ":" + ts.clientSecret))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := ts.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return fmt.Errorf("received empty access token")
	}

	ttl := defaultTokenTTL
	if seconds, err := tr.ExpiresIn.Int64(); err == nil && seconds > 0 {
		ttl = time.Duration(seconds) * time.Second
	}

	ts.token = tr.AccessToken
	ts.expiresAt = ts.now().Add(ttl - refreshBuffer)
	return nil
}
