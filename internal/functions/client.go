// Package functions is the client for the backend's privileged function
// endpoints: credential minting and proxied application writes.
package functions

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mpesa-console/internal/config"
	"github.com/mpesa-console/internal/models"
)

const defaultTimeout = 15 * time.Second

// ErrNotConfigured is returned when the endpoint a call needs has no URL.
var ErrNotConfigured = errors.New("functions endpoint not configured")

// Endpoint selects which function mints credentials.
type Endpoint string

const (
	EndpointPrimary Endpoint = "primary"
	EndpointProxy   Endpoint = "proxy"
)

// Action is a write performed through the proxy function.
type Action string

const (
	ActionMint   Action = "mint"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionToggle Action = "toggle"
)

// Config holds the function endpoints and credentials.
type Config struct {
	MintURL      string
	ProxyURL     string
	AuthURL      string
	ClientID     string
	ClientSecret string
	APIKey       string
	Timeout      time.Duration
}

// ConfigFrom extracts the functions settings from the process config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		MintURL:      cfg.FunctionsMintURL,
		ProxyURL:     cfg.FunctionsProxyURL,
		AuthURL:      cfg.FunctionsAuthURL,
		ClientID:     cfg.FunctionsClientID,
		ClientSecret: cfg.FunctionsClientSecret,
		APIKey:       cfg.FunctionsAPIKey,
		Timeout:      cfg.FunctionsTimeout,
	}
}

// Credentials is a minted (app_id, app_secret) pair.
type Credentials struct {
	AppID     string `json:"appId"`
	AppSecret string `json:"appSecret"`
}

type functionResponse struct {
	Success   bool   `json:"success"`
	AppID     string `json:"appId"`
	AppSecret string `json:"appSecret"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

func (r functionResponse) reason() string {
	if r.Error != "" {
		return r.Error
	}
	if r.Message != "" {
		return r.Message
	}
	return "success=false"
}

type proxyRequest struct {
	Action Action      `json:"action"`
	Data   interface{} `json:"data"`
}

// Client calls the function endpoints. Every call is a single attempt.
type Client struct {
	cfg    Config
	client *http.Client
	auth   Authorizer
}

// NewClient creates a client. Bearer tokens come from the auth endpoint when
// one is configured, otherwise from the static API key.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := newHTTPClient(cfg.Timeout)

	var auth Authorizer
	switch {
	case cfg.AuthURL != "":
		auth = NewTokenSource(cfg.ClientID, cfg.ClientSecret, cfg.AuthURL, httpClient)
	case cfg.APIKey != "":
		auth = StaticToken(cfg.APIKey)
	}

	return &Client{cfg: cfg, client: httpClient, auth: auth}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// Configured reports whether the given endpoint has a URL.
func (c *Client) Configured(endpoint Endpoint) bool {
	if endpoint == EndpointProxy {
		return c.cfg.ProxyURL != ""
	}
	return c.cfg.MintURL != ""
}

// MintCredentials asks the endpoint to mint an app_id/app_secret pair for
// the given application fields.
func (c *Client) MintCredentials(ctx context.Context, endpoint Endpoint, in models.ApplicationInput) (Credentials, error) {
	var (
		url  string
		body interface{}
	)
	switch endpoint {
	case EndpointPrimary:
		url, body = c.cfg.MintURL, in
	case EndpointProxy:
		url, body = c.cfg.ProxyURL, proxyRequest{Action: ActionMint, Data: in}
	default:
		return Credentials{}, fmt.Errorf("unknown mint endpoint %q", endpoint)
	}
	if url == "" {
		return Credentials{}, fmt.Errorf("%s mint: %w", endpoint, ErrNotConfigured)
	}

	resp, err := c.call(ctx, url, body)
	if err != nil {
		return Credentials{}, fmt.Errorf("%s mint: %w", endpoint, err)
	}
	if resp.AppID == "" || resp.AppSecret == "" {
		return Credentials{}, fmt.Errorf("%s mint: response missing credentials", endpoint)
	}
	return Credentials{AppID: resp.AppID, AppSecret: resp.AppSecret}, nil
}

// ProxyWrite performs an application write through the proxy function.
func (c *Client) ProxyWrite(ctx context.Context, action Action, payload interface{}) error {
	if c.cfg.ProxyURL == "" {
		return fmt.Errorf("proxy %s: %w", action, ErrNotConfigured)
	}
	if _, err := c.call(ctx, c.cfg.ProxyURL, proxyRequest{Action: action, Data: payload}); err != nil {
		return fmt.Errorf("proxy %s: %w", action, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, url string, body interface{}) (functionResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return functionResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return functionResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.auth != nil {
		token, err := c.auth.Token(ctx)
		if err != nil {
			return functionResponse{}, fmt.Errorf("failed to get access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return functionResponse{}, fmt.Errorf("failed to call function: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return functionResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return functionResponse{}, fmt.Errorf("function failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var fr functionResponse
	if err := json.Unmarshal(respBody, &fr); err != nil {
		return functionResponse{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !fr.Success {
		return fr, fmt.Errorf("function rejected request: %s", fr.reason())
	}
	return fr, nil
}
