package zerobounce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glampguide/funnel-cli/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithRateLimit(0)}, opts...)
	return NewClient("zb-key", opts...)
}

// singleAttempt disables retries for tests that always fail upstream.
func singleAttempt() Option {
	return WithRetryConfig(resilience.RetryConfig{MaxAttempts: 1})
}

// fastRetries keeps retry backoff out of test runtime.
func fastRetries() Option {
	return WithRetryConfig(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	})
}

func TestValidateBatch(t *testing.T) {
	var gotReq batchRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/validatebatch", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(batchResponse{EmailBatch: []Result{
			{Email: "a@x.com", Status: "valid"},
			{Email: "b@x.com", Status: "invalid", SubStatus: "mailbox_not_found"},
		}})
	})

	results, err := c.ValidateBatch(context.Background(), []string{"a@x.com", "b@x.com"})
	require.NoError(t, err)

	assert.Equal(t, "zb-key", gotReq.APIKey)
	require.Len(t, gotReq.EmailBatch, 2)
	assert.Equal(t, "a@x.com", gotReq.EmailBatch[0].EmailAddress)

	require.Len(t, results, 2)
	assert.Equal(t, "valid", results[0].Status)
	assert.Equal(t, "mailbox_not_found", results[1].SubStatus)
}

func TestValidateBatch_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty batch")
	})
	results, err := c.ValidateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestValidateBatch_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]string{{"error": "Invalid API key"}},
		})
	})

	_, err := c.ValidateBatch(context.Background(), []string{"a@x.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
	assert.False(t, resilience.IsUnavailable(err))
}

func TestValidateBatch_ServerErrorIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}, singleAttempt())

	_, err := c.ValidateBatch(context.Background(), []string{"a@x.com"})
	require.Error(t, err)
	assert.True(t, resilience.IsUnavailable(err))
}

func TestValidateBatch_RetriesTransientThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(batchResponse{EmailBatch: []Result{
			{Email: "a@x.com", Status: "valid"},
		}})
	}, fastRetries())

	results, err := c.ValidateBatch(context.Background(), []string{"a@x.com"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestValidateBatch_PermanentErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}, fastRetries())

	_, err := c.ValidateBatch(context.Background(), []string{"a@x.com"})
	require.Error(t, err)
	assert.False(t, resilience.IsUnavailable(err))
	assert.Equal(t, int32(1), attempts.Load())
}
