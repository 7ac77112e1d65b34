package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInitIsRepeatable(t *testing.T) {
	require.NotPanics(t, func() {
		Init("v1.0.0", "abc123", "2026-01-30")
		Init("v1.0.1", "def456", "2026-02-01")
	})
	require.Equal(t, float64(1), testutil.ToFloat64(AppInfo.WithLabelValues("v1.0.1", "def456", "2026-02-01")))
}

func TestRecordHealth(t *testing.T) {
	RecordHealth(map[string]bool{"database": true})
	require.Equal(t, float64(1), testutil.ToFloat64(HealthStatus))
	require.Equal(t, float64(1), testutil.ToFloat64(HealthCheckStatus.WithLabelValues("database")))

	RecordHealth(map[string]bool{"database": false})
	require.Equal(t, float64(0), testutil.ToFloat64(HealthStatus))
	require.Equal(t, float64(0), testutil.ToFloat64(HealthCheckStatus.WithLabelValues("database")))
}

func TestRecordDelivery(t *testing.T) {
	stored := testutil.ToFloat64(WebhookDeliveriesTotal.WithLabelValues("push", OutcomeStored))
	rejections := testutil.ToFloat64(SignatureRejectionsTotal)

	RecordDelivery("push", OutcomeStored)
	RecordDelivery("", OutcomeRejected)

	require.Equal(t, stored+1, testutil.ToFloat64(WebhookDeliveriesTotal.WithLabelValues("push", OutcomeStored)))
	require.Equal(t, rejections+1, testutil.ToFloat64(SignatureRejectionsTotal))
}

func TestRecordPublish(t *testing.T) {
	before := testutil.ToFloat64(EventsPublishedTotal.WithLabelValues("pull_request", "error"))
	RecordPublish("pull_request", errors.New("no servers"))
	require.Equal(t, before+1, testutil.ToFloat64(EventsPublishedTotal.WithLabelValues("pull_request", "error")))
}

func TestRecordQueryClassifiesErrors(t *testing.T) {
	tests := []struct {
		err       error
		errorType string
	}{
		{err: context.Canceled, errorType: "canceled"},
		{err: context.DeadlineExceeded, errorType: "timeout"},
		{err: errors.New("syntax error"), errorType: "query_error"},
	}

	for _, tt := range tests {
		t.Run(tt.errorType, func(t *testing.T) {
			before := testutil.ToFloat64(DBErrors.WithLabelValues("test_op", tt.errorType))
			RecordQuery("test_op", time.Now(), errors.Join(errors.New("wrapped"), tt.err))
			require.Equal(t, before+1, testutil.ToFloat64(DBErrors.WithLabelValues("test_op", tt.errorType)))
		})
	}
}

type fakeStats struct{ total, acquired, idle, max int32 }

func (s fakeStats) TotalConns() int32    { return s.total }
func (s fakeStats) AcquiredConns() int32 { return s.acquired }
func (s fakeStats) IdleConns() int32     { return s.idle }
func (s fakeStats) MaxConns() int32      { return s.max }

func TestDBCollectorStopsOnContext(t *testing.T) {
	collector := newDBCollector(func() PoolStats { return fakeStats{total: 4, acquired: 1, idle: 3, max: 25} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		collector.Start(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(DBConnectionsMaxOpen) == 25
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, float64(4), testutil.ToFloat64(DBConnectionsOpen))
	require.Equal(t, float64(1), testutil.ToFloat64(DBConnectionsInUse))
	require.Equal(t, float64(3), testutil.ToFloat64(DBConnectionsIdle))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestDBCollectorStop(t *testing.T) {
	collector := newDBCollector(func() PoolStats { return fakeStats{} })
	done := make(chan struct{})
	go func() {
		collector.Start(context.Background(), time.Hour)
		close(done)
	}()

	collector.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestHTTPMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		statusCode int
		label      string
	}{
		{name: "webhook", path: "/webhook", statusCode: http.StatusOK, label: "/webhook"},
		{name: "events", path: "/events", statusCode: http.StatusOK, label: "/events"},
		{name: "unknown path", path: "/wp-admin/setup.php", statusCode: http.StatusNotFound, label: "other"},
		{name: "server error", path: "/health", statusCode: http.StatusInternalServerError, label: "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))

			counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, tt.label, strconv.Itoa(tt.statusCode))
			before := testutil.ToFloat64(counter)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.statusCode, rec.Code)
			require.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestHTTPMiddlewareDefaultsToOK(t *testing.T) {
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	counter := HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/webhook", "200")
	before := testutil.ToFloat64(counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhook", nil))

	require.Equal(t, before+1, testutil.ToFloat64(counter))
	require.Zero(t, testutil.ToFloat64(HTTPRequestsInFlight))
}
