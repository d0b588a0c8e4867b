package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:    maxRetries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestClient_GetJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transactions", r.URL.Path)
		assert.Equal(t, "2026-01-01", r.URL.Query().Get("from"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total": 2, "page": 1}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Source:  "dld",
		BaseURL: server.URL,
		APIKey:  "secret",
		Retry:   fastRetry(2),
	})

	var out struct {
		Total int `json:"total"`
		Page  int `json:"page"`
	}
	query := url.Values{}
	query.Set("from", "2026-01-01")

	err := client.GetJSON(context.Background(), "/v1/transactions", query, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 1, out.Page)
}

func TestClient_GetJSON_RetriesTransient(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": "upstream hiccup"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Source:  "ejari",
		BaseURL: server.URL,
		Retry:   fastRetry(3),
	})

	var out struct {
		OK bool `json:"ok"`
	}
	err := client.GetJSON(context.Background(), "/v1/contracts", nil, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_GetJSON_FatalNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "no such endpoint"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Source:  "bayut",
		BaseURL: server.URL,
		Retry:   fastRetry(3),
	})

	err := client.GetJSON(context.Background(), "/v1/nope", nil, nil)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "no such endpoint")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "fatal errors must not be retried")
}

func TestClient_GetJSON_RateLimitedStatusRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": "slow down"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Source:  "propertyfinder",
		BaseURL: server.URL,
		Retry:   fastRetry(2),
	})

	err := client.GetJSON(context.Background(), "/v1/listings", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_GetJSON_CredentialRejection(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "invalid api key"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Source:  "dld",
		BaseURL: server.URL,
		Retry:   fastRetry(3),
	})

	err := client.GetJSON(context.Background(), "/v1/transactions", nil, nil)
	require.Error(t, err)
	assert.True(t, IsCredential(err))
	assert.True(t, IsFatal(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_GetJSON_MalformedBodyIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Source:  "dld",
		BaseURL: server.URL,
		Retry:   fastRetry(2),
	})

	var out map[string]any
	err := client.GetJSON(context.Background(), "/v1/transactions", nil, &out)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestClient_GetJSON_SharedLimiterApplies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	limiter := NewRateLimiter(1, 80*time.Millisecond)
	client := NewClient(ClientConfig{
		Source:  "bayut",
		BaseURL: server.URL,
		Retry:   fastRetry(0),
		Limiter: limiter,
	})

	start := time.Now()
	require.NoError(t, client.GetJSON(context.Background(), "/v1/listings", nil, nil))
	require.NoError(t, client.GetJSON(context.Background(), "/v1/listings", nil, nil))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond, "second call should have waited for the window")
}
