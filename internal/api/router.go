// Package api assembles the HTTP surface of the webhook receiver.
package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/webhook-receiver/internal/api/handlers"
	"github.com/Togather-Foundation/webhook-receiver/internal/api/middleware"
	"github.com/Togather-Foundation/webhook-receiver/internal/api/problem"
	"github.com/Togather-Foundation/webhook-receiver/internal/metrics"
	"github.com/Togather-Foundation/webhook-receiver/internal/ratelimit"
)

// Dependencies are the collaborators the router wires into handlers.
// Nil limiters disable rate limiting for their tier.
type Dependencies struct {
	Logger zerolog.Logger

	Ingest handlers.Ingester
	Events handlers.Lister
	Health *handlers.HealthChecker

	WebhookLimiter ratelimit.Limiter
	PublicLimiter  ratelimit.Limiter
	TrustedProxies []string

	MaxBodyBytes int64
	RequireHTTPS bool

	Version   string
	GitCommit string
	BuildDate string
}

func NewRouter(deps Dependencies) http.Handler {
	webhookHandler := handlers.NewWebhookHandler(deps.Ingest)
	eventsHandler := handlers.NewEventsHandler(deps.Events)
	homeHandler := handlers.NewHomeHandler(deps.Events, deps.Version)
	health := deps.Health
	if health == nil {
		health = handlers.NewHealthChecker(nil, deps.Version, deps.GitCommit)
	}

	webhookLimit := middleware.RateLimit(deps.WebhookLimiter, middleware.TierWebhook, deps.TrustedProxies)
	publicLimit := middleware.RateLimit(deps.PublicLimiter, middleware.TierPublic, deps.TrustedProxies)

	receive := webhookLimit(middleware.RequestSize(deps.MaxBodyBytes)(http.HandlerFunc(webhookHandler.Receive)))
	list := publicLimit(http.HandlerFunc(eventsHandler.List))
	home := publicLimit(middleware.ContentNegotiation(http.HandlerFunc(homeHandler.Home)))

	mux := http.NewServeMux()
	mux.Handle("/webhook", methodMux(map[string]http.Handler{http.MethodPost: receive}))
	mux.Handle("/events", methodMux(map[string]http.Handler{http.MethodGet: list}))
	mux.Handle("/health", methodMux(map[string]http.Handler{http.MethodGet: health.Health()}))
	mux.Handle("/healthz", methodMux(map[string]http.Handler{http.MethodGet: handlers.Healthz()}))
	mux.Handle("/version", methodMux(map[string]http.Handler{
		http.MethodGet: VersionHandler(deps.Version, deps.GitCommit, deps.BuildDate),
	}))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/", methodMux(map[string]http.Handler{http.MethodGet: home}))

	var handler http.Handler = mux
	handler = middleware.SecurityHeaders(deps.RequireHTTPS)(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		if allow := allowedMethods(handlers); allow != "" {
			w.Header().Set("Allow", allow)
		}
		problem.Write(w, r, http.StatusMethodNotAllowed, problem.MsgMethodNotAllowed, nil)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
