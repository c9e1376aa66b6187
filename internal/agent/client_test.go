package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/http/ratelimit"
)

var testLimits = ratelimit.Config{MaxRetries: 1, InitialBackoffMs: 1, MaxBackoffMs: 2}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Login button is visible", req.Criterion)
		assert.Equal(t, "https://app.example.com", req.TargetURL)
		assert.Equal(t, "default-model", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Verdict{
			Passed:     true,
			Reasoning:  "found it",
			Screenshot: []byte("\x89PNG"),
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "default-model", time.Second, testLimits)
	verdict, err := client.Verify(context.Background(), Request{
		TicketID:  "ENG-1",
		Criterion: "Login button is visible",
		TargetURL: "https://app.example.com",
	})
	require.NoError(t, err)
	assert.True(t, verdict.Passed)
	assert.Equal(t, "found it", verdict.Reasoning)
	assert.Equal(t, []byte("\x89PNG"), verdict.Screenshot)
	assert.Equal(t, "png", verdict.ScreenshotType)
}

func TestVerifyReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second, testLimits)
	_, err := client.Verify(context.Background(), Request{Criterion: "c", TargetURL: "https://x"})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusUnprocessableEntity, reqErr.Status)
	assert.Equal(t, "c", reqErr.Criterion)
}

func TestVerifyRequiresTarget(t *testing.T) {
	client := NewClient("http://unused", "", time.Second, testLimits)
	_, err := client.Verify(context.Background(), Request{Criterion: "c"})
	assert.ErrorIs(t, err, ErrNoTarget)
}
