package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/webhook-receiver/internal/ratelimit"
)

type stubLimiter struct {
	keys    []string
	allowed bool
	err     error
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.err
}

func (s *stubLimiter) Close() error { return nil }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitAllows(t *testing.T) {
	limiter := &stubLimiter{allowed: true}
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.RemoteAddr = "192.0.2.10:5555"

	rec := httptest.NewRecorder()
	RateLimit(limiter, TierWebhook, nil)(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"webhook:192.0.2.10"}, limiter.keys)
}

func TestRateLimitRefuses(t *testing.T) {
	limiter := &stubLimiter{allowed: false}

	rec := httptest.NewRecorder()
	RateLimit(limiter, TierPublic, nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
	require.JSONEq(t, `{"error":"Rate limit exceeded"}`, rec.Body.String())
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis down")}

	rec := httptest.NewRecorder()
	RateLimit(limiter, TierWebhook, nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitNilLimiter(t *testing.T) {
	rec := httptest.NewRecorder()
	RateLimit(nil, TierWebhook, nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitWithMemoryLimiter(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(2)
	t.Cleanup(func() { _ = limiter.Close() })
	handler := RateLimit(limiter, TierWebhook, nil)(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestClientKey(t *testing.T) {
	trusted := []string{"10.0.0.0/8"}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trusted    []string
		want       string
	}{
		{name: "direct", remoteAddr: "203.0.113.5:4000", want: "203.0.113.5"},
		{name: "no port", remoteAddr: "203.0.113.5", want: "203.0.113.5"},
		{
			name:       "untrusted forwarded header ignored",
			remoteAddr: "203.0.113.5:4000",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			trusted:    trusted,
			want:       "203.0.113.5",
		},
		{
			name:       "trusted proxy forwarded for",
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4, 10.1.2.3"},
			trusted:    trusted,
			want:       "1.2.3.4",
		},
		{
			name:       "trusted proxy real ip",
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Real-IP": "5.6.7.8"},
			trusted:    trusted,
			want:       "5.6.7.8",
		},
		{
			name:       "bad cidr ignored",
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			trusted:    []string{"not-a-cidr"},
			want:       "10.1.2.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, clientKey(req, tt.trusted))
		})
	}
}
