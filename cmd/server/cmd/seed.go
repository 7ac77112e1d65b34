package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/webhook-receiver/internal/config"
	"github.com/Togather-Foundation/webhook-receiver/internal/seeder"
)

var seedOpts seeder.Config

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Send generated push and pull_request deliveries to a running receiver",
	Long: `Generate realistic GitHub deliveries and POST them to <url>/webhook.

Deliveries are signed with --secret, or WEBHOOK_SECRET when the flag is omitted.

Examples:
  # 200 deliveries against a local server
  webhook-receiver seed --count 200

  # Mostly pull requests, 16 at a time
  webhook-receiver seed --pr-ratio 0.8 --concurrency 16`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedOpts.BaseURL, "url", "", "receiver base URL (default: http://localhost:{SERVER_PORT})")
	seedCmd.Flags().StringVar(&seedOpts.Secret, "secret", "", "signing secret (default: WEBHOOK_SECRET)")
	seedCmd.Flags().IntVar(&seedOpts.Count, "count", 100, "number of deliveries")
	seedCmd.Flags().IntVar(&seedOpts.Concurrency, "concurrency", 4, "parallel requests")
	seedCmd.Flags().Float64Var(&seedOpts.PullRequestRatio, "pr-ratio", 0.4, "fraction of pull_request deliveries")
	seedCmd.Flags().Int64Var(&seedOpts.Seed, "seed", 0, "random seed (default: time based)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	opts := seedOpts
	if opts.BaseURL == "" {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		opts.BaseURL = "http://localhost:" + port
	}
	if opts.Secret == "" {
		opts.Secret = os.Getenv("WEBHOOK_SECRET")
	}
	if opts.PullRequestRatio < 0 || opts.PullRequestRatio > 1 {
		return fmt.Errorf("--pr-ratio must be between 0 and 1")
	}

	logger := config.NewLogger(config.LoggingConfig{Level: logLevel, Format: logFormat})
	result, err := seeder.NewRunner(opts, logger).Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sent: %d stored: %d failed: %d (%s)\n",
		result.Sent, result.Stored, result.Failed, result.Duration.Round(time.Millisecond))
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d deliveries failed", result.Failed, result.Sent)
	}
	return nil
}
