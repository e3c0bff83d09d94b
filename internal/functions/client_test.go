package functions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpesa-console/internal/models"
)

func input() models.ApplicationInput {
	return models.ApplicationInput{
		Name:              "Shop",
		CallbackURL:       "https://shop.example/callback",
		ConsumerKey:       "ck",
		ConsumerSecret:    "cs",
		BusinessShortCode: "174379",
		Passkey:           "pk",
	}
}

func TestMintCredentials_Primary(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Shop", body["name"])

		w.Write([]byte(`{"success":true,"appId":"app_123","appSecret":"sec_456"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{MintURL: srv.URL, APIKey: "key-1"})
	creds, err := c.MintCredentials(context.Background(), EndpointPrimary, input())

	require.NoError(t, err)
	assert.Equal(t, Credentials{AppID: "app_123", AppSecret: "sec_456"}, creds)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMintCredentials_ProxyWrapsAction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Action string                 `json:"action"`
			Data   map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "mint", body.Action)
		assert.Equal(t, "174379", body.Data["business_short_code"])

		w.Write([]byte(`{"success":true,"appId":"a","appSecret":"s"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{ProxyURL: srv.URL})
	creds, err := c.MintCredentials(context.Background(), EndpointProxy, input())
	require.NoError(t, err)
	assert.Equal(t, "a", creds.AppID)
}

func TestMintCredentials_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"success false", http.StatusOK, `{"success":false,"error":"quota"}`},
		{"server error", http.StatusInternalServerError, `boom`},
		{"missing secret", http.StatusOK, `{"success":true,"appId":"a"}`},
		{"garbage", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(Config{MintURL: srv.URL})
			_, err := c.MintCredentials(context.Background(), EndpointPrimary, input())
			assert.Error(t, err)
		})
	}
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(Config{})

	assert.False(t, c.Configured(EndpointPrimary))
	assert.False(t, c.Configured(EndpointProxy))

	_, err := c.MintCredentials(context.Background(), EndpointPrimary, input())
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.MintCredentials(context.Background(), EndpointProxy, input())
	assert.ErrorIs(t, err, ErrNotConfigured)

	err = c.ProxyWrite(context.Background(), ActionToggle, map[string]interface{}{"id": "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestProxyWrite(t *testing.T) {
	var got proxyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(Config{ProxyURL: srv.URL})
	err := c.ProxyWrite(context.Background(), ActionUpdate, map[string]string{"id": "app-1"})

	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, got.Action)
}

func TestTokenSource_CachesAndRefreshes(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)

		if n == 1 {
			w.Write([]byte(`{"access_token":"t1","expires_in":"3599"}`))
			return
		}
		w.Write([]byte(`{"access_token":"t2","expires_in":3599}`))
	}))
	defer srv.Close()

	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	ts := NewTokenSource("id", "secret", srv.URL, nil)
	ts.now = func() time.Time { return now }

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := ts.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "t1", tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// inside the refresh buffer
	now = now.Add(56 * time.Minute)
	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t2", tok)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenSource_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{MintURL: srv.URL, AuthURL: srv.URL})
	_, err := c.MintCredentials(context.Background(), EndpointPrimary, input())
	assert.ErrorContains(t, err, "token request failed")
}
