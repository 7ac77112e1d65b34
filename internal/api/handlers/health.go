package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/webhook-receiver/internal/api/problem"
	"github.com/Togather-Foundation/webhook-receiver/internal/metrics"
)

const (
	healthTimeout = 5 * time.Second
	checkTimeout  = 2 * time.Second

	storeCheck = "database"
)

// Pinger is anything the health endpoint can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck is the GET /health body.
type HealthCheck struct {
	Status    string                 `json:"status"`
	DB        string                 `json:"db,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Solution  string                 `json:"solution,omitempty"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	LatencyMs   int64  `json:"latency_ms"`
	Remediation string `json:"remediation,omitempty"`
}

type dependency struct {
	name   string
	pinger Pinger
}

// HealthChecker reports on the event store and any optional dependencies.
// A failing store makes the service unhealthy; a failing optional
// dependency only degrades it.
type HealthChecker struct {
	store     Pinger
	deps      []dependency
	version   string
	gitCommit string
}

func NewHealthChecker(store Pinger, version, gitCommit string) *HealthChecker {
	return &HealthChecker{store: store, version: version, gitCommit: gitCommit}
}

// WithDependency registers an optional dependency such as Redis or NATS.
func (h *HealthChecker) WithDependency(name string, p Pinger) *HealthChecker {
	if p != nil {
		h.deps = append(h.deps, dependency{name: name, pinger: p})
		sort.Slice(h.deps, func(i, j int) bool { return h.deps[i].name < h.deps[j].name })
	}
	return h
}

// Health returns the GET /health handler.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		checks := make(map[string]CheckResult, len(h.deps)+1)
		storeResult, storeErr := h.checkStore(ctx)
		checks[storeCheck] = storeResult

		degraded := false
		for _, dep := range h.deps {
			result := runCheck(ctx, dep.pinger, dep.name+" reachable")
			if result.Status != "pass" {
				degraded = true
				zerolog.Ctx(r.Context()).Warn().Str("check", dep.name).Msg(result.Message)
			}
			checks[dep.name] = result
		}
		recordHealth(checks)

		response := HealthCheck{
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		if storeErr != nil {
			zerolog.Ctx(r.Context()).Error().Err(storeErr).Msg("health check failed")
			response.Status = "unhealthy"
			response.Error = "Database connection failed"
			response.Solution = storeResult.Remediation
			problem.WriteJSON(w, http.StatusInternalServerError, response)
			return
		}

		response.Status = "healthy"
		if degraded {
			response.Status = "degraded"
		}
		response.DB = "connected"
		problem.WriteJSON(w, http.StatusOK, response)
	}
}

func (h *HealthChecker) checkStore(ctx context.Context) (CheckResult, error) {
	if h.store == nil {
		err := errors.New("event store not initialized")
		return CheckResult{
			Status:      "fail",
			Message:     "Event store not initialized",
			Remediation: "Check STORE_DRIVER and DATABASE_URL",
		}, err
	}

	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	err := h.store.Ping(checkCtx)
	latency := time.Since(start).Milliseconds()
	if err == nil {
		return CheckResult{Status: "pass", Message: "Event store reachable", LatencyMs: latency}, nil
	}

	message, remediation := describeStoreError(checkCtx, err)
	return CheckResult{
		Status:      "fail",
		Message:     message,
		LatencyMs:   latency,
		Remediation: remediation,
	}, err
}

// describeStoreError maps a ping failure to operator advice without
// echoing the underlying error text.
func describeStoreError(ctx context.Context, err error) (string, string) {
	text := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "Database query timed out", "Check PostgreSQL performance and network latency"
	case strings.Contains(text, "connection refused"):
		return "Database connection refused", "Verify PostgreSQL is running and DATABASE_URL host/port are correct"
	case strings.Contains(text, "no such host"):
		return "Cannot reach database host", "Check DATABASE_URL hostname and network connectivity"
	case strings.Contains(text, "authentication failed") || strings.Contains(text, "password"):
		return "Database authentication failed", "Verify DATABASE_URL username and password are correct"
	case strings.Contains(text, "does not exist"):
		return "Database does not exist", "Create the database or check the DATABASE_URL database name"
	default:
		return "Event store unavailable", "Check DATABASE_URL and that the database service is running"
	}
}

func runCheck(ctx context.Context, p Pinger, okMessage string) CheckResult {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	err := p.Ping(checkCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{Status: "warn", Message: "Dependency unreachable", LatencyMs: latency}
	}
	return CheckResult{Status: "pass", Message: okMessage, LatencyMs: latency}
}

func recordHealth(checks map[string]CheckResult) {
	status := make(map[string]bool, len(checks))
	for name, check := range checks {
		status[name] = check.Status == "pass"
	}
	metrics.RecordHealth(status)
}

// Healthz is a liveness probe that never touches the store.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})
}

type healthResponse struct {
	Status string `json:"status"`
}
