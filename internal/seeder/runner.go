package seeder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Togather-Foundation/webhook-receiver/internal/domain/webhooks"
)

// Config controls one seeding run.
type Config struct {
	BaseURL          string
	Secret           string
	Count            int
	Concurrency      int
	PullRequestRatio float64
	Seed             int64
	Timeout          time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// Result tallies responses by status code.
type Result struct {
	Sent     int
	Stored   int
	Failed   int
	ByStatus map[int]int
	Duration time.Duration
}

type Runner struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

func NewRunner(cfg Config, logger zerolog.Logger) *Runner {
	cfg = cfg.withDefaults()
	return &Runner{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Run posts cfg.Count deliveries to BaseURL/webhook. Individual delivery
// failures are counted, not returned; Run fails only on bad configuration,
// payload generation errors or cancellation.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.cfg.BaseURL == "" {
		return Result{}, errors.New("seeder: base URL is required")
	}
	if r.cfg.Count <= 0 {
		return Result{ByStatus: map[int]int{}}, nil
	}

	gen := NewGenerator(r.cfg.Seed)
	payloads := make([]Payload, r.cfg.Count)
	for i := range payloads {
		p, err := gen.Next(r.cfg.PullRequestRatio)
		if err != nil {
			return Result{}, err
		}
		payloads[i] = p
	}

	r.logger.Info().
		Str("target", r.cfg.BaseURL).
		Int("count", r.cfg.Count).
		Int("concurrency", r.cfg.Concurrency).
		Bool("signed", r.cfg.Secret != "").
		Msg("seeding webhook deliveries")

	var (
		mu     sync.Mutex
		result = Result{ByStatus: make(map[int]int)}
		start  = time.Now()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, p := range payloads {
		g.Go(func() error {
			status, err := r.send(gctx, p)
			mu.Lock()
			defer mu.Unlock()
			result.Sent++
			result.ByStatus[status]++
			if err != nil || status != http.StatusOK {
				result.Failed++
				if err != nil {
					r.logger.Debug().Err(err).Str("event", p.Event).Msg("delivery failed")
				}
				return nil
			}
			result.Stored++
			return nil
		})
	}
	_ = g.Wait()
	result.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return result, err
	}

	r.logger.Info().
		Int("stored", result.Stored).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("seeding complete")
	return result, nil
}

func (r *Runner) send(ctx context.Context, p Payload) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/webhook", bytes.NewReader(p.Body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "GitHub-Hookshot/seeder")
	req.Header.Set("X-GitHub-Event", p.Event)
	req.Header.Set("X-GitHub-Delivery", uuid.NewString())
	if r.cfg.Secret != "" {
		req.Header.Set(webhooks.SignatureHeader, webhooks.Sign(r.cfg.Secret, p.Body))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
