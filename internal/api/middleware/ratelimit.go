package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/webhook-receiver/internal/api/problem"
	"github.com/Togather-Foundation/webhook-receiver/internal/metrics"
	"github.com/Togather-Foundation/webhook-receiver/internal/ratelimit"
)

type RateLimitTier string

const (
	TierWebhook RateLimitTier = "webhook"
	TierPublic  RateLimitTier = "public"
)

const retryAfterSeconds = "60"

// RateLimit refuses requests over the tier's budget with 429. Keys are
// "<tier>:<client ip>". When the limiter itself fails the request is let
// through and the failure logged.
func RateLimit(limiter ratelimit.Limiter, tier RateLimitTier, trustedProxyCIDRs []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := string(tier) + ":" + clientKey(r, trustedProxyCIDRs)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Str("tier", string(tier)).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RateLimitedTotal.WithLabelValues(string(tier)).Inc()
				w.Header().Set("Retry-After", retryAfterSeconds)
				problem.Write(w, r, http.StatusTooManyRequests, problem.MsgRateLimited, nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey extracts the client IP. X-Forwarded-For and X-Real-IP are only
// trusted when the connection comes from a configured proxy CIDR.
func clientKey(r *http.Request, trustedProxyCIDRs []string) string {
	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if isTrustedProxy(remoteIP, trustedProxyCIDRs) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}
	return remoteIP
}

func isTrustedProxy(ip string, trustedCIDRs []string) bool {
	if len(trustedCIDRs) == 0 {
		return false
	}
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}
	for _, cidrStr := range trustedCIDRs {
		_, cidr, err := net.ParseCIDR(strings.TrimSpace(cidrStr))
		if err != nil {
			continue
		}
		if cidr.Contains(parsedIP) {
			return true
		}
	}
	return false
}
