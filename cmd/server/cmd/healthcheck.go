package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// healthcheckCmd represents the healthcheck command
	healthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by Docker HEALTHCHECK to monitor container health.
It exits with code 0 if the server reports healthy or degraded, non-zero otherwise.`,
		RunE: runHealthcheck,
	}

	// Flags
	healthcheckTimeout time.Duration
	healthcheckURL     string
)

func init() {
	healthcheckCmd.Flags().DurationVar(&healthcheckTimeout, "timeout", 5*time.Second, "request timeout")
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
}

// HealthResponse is the subset of the /health body the command inspects.
type HealthResponse struct {
	Status string                 `json:"status"`
	Error  string                 `json:"error,omitempty"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	url := healthcheckURL
	if url == "" {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		url = fmt.Sprintf("http://localhost:%s/health", port)
	}

	resp, err := performHealthCheck(cmd.Context(), url, healthcheckTimeout)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", resp.Status)
	return nil
}

// performHealthCheck returns an error unless the server answers 200 with a
// healthy or degraded status.
func performHealthCheck(ctx context.Context, url string, timeout time.Duration) (HealthResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var health HealthResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&health)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && health.Error != "" {
			return health, fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, health.Error)
		}
		return health, fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return HealthResponse{}, fmt.Errorf("invalid health response: %w", decodeErr)
	}

	switch health.Status {
	case "healthy", "degraded":
		return health, nil
	default:
		return health, fmt.Errorf("unhealthy: status=%s", health.Status)
	}
}
