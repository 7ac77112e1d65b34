package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformHealthCheck(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		responseBody any
		expectError  string
		expectStatus string
	}{
		{
			name:       "healthy server",
			statusCode: http.StatusOK,
			responseBody: HealthResponse{
				Status: "healthy",
				Checks: map[string]CheckResult{"database": {Status: "pass"}},
			},
			expectStatus: "healthy",
		},
		{
			name:       "degraded server",
			statusCode: http.StatusOK,
			responseBody: HealthResponse{
				Status: "degraded",
				Checks: map[string]CheckResult{"database": {Status: "pass"}, "redis": {Status: "warn"}},
			},
			expectStatus: "degraded",
		},
		{
			name:         "unhealthy server",
			statusCode:   http.StatusInternalServerError,
			responseBody: HealthResponse{Status: "unhealthy", Error: "Database connection failed"},
			expectError:  "unhealthy: status 500: Database connection failed",
		},
		{
			name:         "unexpected status value",
			statusCode:   http.StatusOK,
			responseBody: HealthResponse{Status: "starting"},
			expectError:  "unhealthy: status=starting",
		},
		{
			name:         "invalid response",
			statusCode:   http.StatusOK,
			responseBody: "not json",
			expectError:  "invalid health response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/health", r.URL.Path)
				w.WriteHeader(tt.statusCode)
				if str, ok := tt.responseBody.(string); ok {
					fmt.Fprint(w, str)
					return
				}
				_ = json.NewEncoder(w).Encode(tt.responseBody)
			}))
			defer server.Close()

			resp, err := performHealthCheck(context.Background(), server.URL+"/health", time.Second)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectStatus, resp.Status)
		})
	}
}

func TestPerformHealthCheckTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := performHealthCheck(context.Background(), server.URL, 50*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}

func TestPerformHealthCheckUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := performHealthCheck(context.Background(), url, time.Second)
	require.Error(t, err)
}

func TestHealthcheckCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "healthy"})
	}))
	defer server.Close()
	t.Cleanup(func() { healthcheckURL = "" })

	out, err := execute(t, "healthcheck", "--url", server.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "status: healthy")
}
