package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/http/ratelimit"
)

func fastConfig(retries int) ratelimit.Config {
	return ratelimit.Config{
		RequestsPerSecond: 0,
		MaxRetries:        retries,
		InitialBackoffMs:  1,
		MaxBackoffMs:      5,
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"n":1}`, string(body), "body is resent on every attempt")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewClient(fastConfig(3))

	var out struct {
		OK bool `json:"ok"`
	}
	err := client.DoJSON(context.Background(), http.MethodPost, srv.URL, nil, map[string]int{"n": 1}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoStopsOnNonRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad criterion"))
	}))
	defer srv.Close()

	client := NewClient(fastConfig(3))
	_, err := client.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)

	var retryErr *ratelimit.RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, 1, retryErr.Attempts)
	assert.Equal(t, http.StatusBadRequest, retryErr.LastStatus)
	assert.Equal(t, "bad criterion", retryErr.LastBody)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(fastConfig(2))
	_, err := client.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)

	var retryErr *ratelimit.RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, 3, retryErr.Attempts)
	assert.Equal(t, http.StatusTooManyRequests, retryErr.LastStatus)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := fastConfig(5)
	cfg.InitialBackoffMs = 10_000
	cfg.MaxBackoffMs = 10_000
	client := NewClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Do(ctx, http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDoSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		assert.Equal(t, "custom/1", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(fastConfig(0), WithUserAgent("custom/1"))
	err := client.DoJSON(context.Background(), http.MethodGet, srv.URL, http.Header{"Authorization": {"secret"}}, nil, nil)
	require.NoError(t, err)
}

func TestBackoff(t *testing.T) {
	cfg := ratelimit.Config{InitialBackoffMs: 100, MaxBackoffMs: 1000}

	first := ratelimit.CalculateBackoff(0, cfg)
	assert.GreaterOrEqual(t, first, 100*time.Millisecond)
	assert.LessOrEqual(t, first, 125*time.Millisecond)

	capped := ratelimit.CalculateBackoff(10, cfg)
	assert.GreaterOrEqual(t, capped, 1000*time.Millisecond)
	assert.LessOrEqual(t, capped, 1250*time.Millisecond)

	retryAfter := ratelimit.CalculateRateLimitBackoff(0, cfg, "2")
	assert.GreaterOrEqual(t, retryAfter, 2*time.Second)
	assert.Less(t, retryAfter, 3*time.Second)

	assert.True(t, ratelimit.IsRetryableStatus(http.StatusInternalServerError))
	assert.True(t, ratelimit.IsRetryableStatus(http.StatusTooManyRequests))
	assert.False(t, ratelimit.IsRetryableStatus(http.StatusNotFound))
}
