// Package ratelimit decides whether a client may make another request.
package ratelimit

import "context"

// Limiter admits or refuses one request for key. An error means the decision
// could not be made; callers choose whether to fail open.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// NoOp always allows requests.
type NoOp struct{}

func (NoOp) Allow(context.Context, string) (bool, error) { return true, nil }
func (NoOp) Close() error                                { return nil }
