package cmd

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/webhook-receiver/internal/domain/webhooks"
	"github.com/Togather-Foundation/webhook-receiver/internal/seeder"
)

func seederDefaults() seeder.Config {
	return seeder.Config{Count: 100, Concurrency: 4, PullRequestRatio: 0.4}
}

func TestSeedCommand(t *testing.T) {
	var verified atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		verifier := webhooks.NewSignatureVerifier("seed-secret")
		if verifier.Verify(body, r.Header.Get(webhooks.SignatureHeader)) == webhooks.Authentic {
			verified.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	t.Cleanup(func() { seedOpts = seederDefaults() })

	out, err := execute(t, "seed", "--url", server.URL, "--secret", "seed-secret", "--count", "6", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "sent: 6 stored: 6 failed: 0")
	assert.EqualValues(t, 6, verified.Load())
}

func TestSeedCommandReportsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()
	t.Cleanup(func() { seedOpts = seederDefaults() })

	_, err := execute(t, "seed", "--url", server.URL, "--count", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 2 deliveries failed")
}

func TestSeedCommandRejectsBadRatio(t *testing.T) {
	t.Cleanup(func() { seedOpts = seederDefaults() })

	_, err := execute(t, "seed", "--url", "http://127.0.0.1:1", "--pr-ratio", "1.5")
	require.Error(t, err)
}
