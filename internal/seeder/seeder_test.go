package seeder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/webhook-receiver/internal/api"
	"github.com/Togather-Foundation/webhook-receiver/internal/domain/webhooks"
	"github.com/Togather-Foundation/webhook-receiver/internal/storage/memory"
)

func TestGeneratorPayloadsNormalize(t *testing.T) {
	gen := NewGenerator(42)
	normalizer := webhooks.NewNormalizer(nil)

	for i := 0; i < 50; i++ {
		for _, build := range []func() (Payload, error){gen.Push, gen.PullRequest} {
			p, err := build()
			require.NoError(t, err)

			raw, err := webhooks.ParsePayload(p.Body)
			require.NoError(t, err)
			classification := webhooks.Classify(raw)
			require.Equal(t, p.Event, string(classification.Type()))

			record, err := normalizer.Normalize(classification)
			require.NoError(t, err, string(p.Body))
			assert.NotEqual(t, webhooks.UnknownRepository, record.Repository)
			assert.NotEmpty(t, record.Author())
		}
	}
}

func TestGeneratorIsDeterministicPerSeed(t *testing.T) {
	a, err := NewGenerator(7).PullRequest()
	require.NoError(t, err)
	b, err := NewGenerator(7).PullRequest()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGeneratorNextRespectsRatio(t *testing.T) {
	gen := NewGenerator(1)
	for i := 0; i < 10; i++ {
		p, err := gen.Next(0)
		require.NoError(t, err)
		assert.Equal(t, "push", p.Event)

		p, err = gen.Next(1)
		require.NoError(t, err)
		assert.Equal(t, "pull_request", p.Event)
	}
}

func newReceiver(t *testing.T, secret string) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	srv := httptest.NewServer(api.NewRouter(api.Dependencies{
		Logger: zerolog.Nop(),
		Ingest: webhooks.NewIngestService(store, webhooks.NewSignatureVerifier(secret), nil),
		Events: webhooks.NewListService(store),
	}))
	t.Cleanup(srv.Close)
	return srv, store
}

func TestRunnerSeedsReceiver(t *testing.T) {
	srv, store := newReceiver(t, "seed-secret")

	runner := NewRunner(Config{
		BaseURL:          srv.URL + "/",
		Secret:           "seed-secret",
		Count:            25,
		Concurrency:      5,
		PullRequestRatio: 0.5,
		Seed:             99,
	}, zerolog.Nop())

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, result.Sent)
	assert.Equal(t, 25, result.Stored)
	assert.Zero(t, result.Failed)
	assert.Equal(t, map[int]int{http.StatusOK: 25}, result.ByStatus)
	assert.Equal(t, 25, store.Len())
}

func TestRunnerCountsRejections(t *testing.T) {
	srv, store := newReceiver(t, "seed-secret")

	result, err := NewRunner(Config{BaseURL: srv.URL, Secret: "wrong", Count: 3}, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, map[int]int{http.StatusForbidden: 3}, result.ByStatus)
	assert.Zero(t, store.Len())
}

func TestRunnerRequiresBaseURL(t *testing.T) {
	_, err := NewRunner(Config{Count: 1}, zerolog.Nop()).Run(context.Background())
	require.Error(t, err)
}

func TestRunnerZeroCount(t *testing.T) {
	result, err := NewRunner(Config{BaseURL: "http://127.0.0.1:1"}, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Sent)
}
