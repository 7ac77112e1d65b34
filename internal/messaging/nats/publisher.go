// Package nats publishes stored webhook events to NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/webhook-receiver/internal/domain/webhooks"
	"github.com/Togather-Foundation/webhook-receiver/internal/metrics"
)

// Header names set on every published message.
const (
	HeaderMsgID     = nats.MsgIdHdr
	HeaderEventType = "Webhook-Event-Type"
)

var errNotConnected = errors.New("nats: not connected")

var _ webhooks.Publisher = (*Publisher)(nil)

type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string
	// Name identifies this client on the server.
	Name string
	// SubjectPrefix is joined with the event type: <prefix>.push.
	SubjectPrefix string
	// MaxReconnects of -1 reconnects forever.
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "webhook-receiver",
		SubjectPrefix: "webhooks.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	PublishMsg(msg *nats.Msg) error
	IsConnected() bool
	Drain() error
}

// Publisher sends each stored record as JSON to <prefix>.<type>.
type Publisher struct {
	conn   conn
	prefix string
}

// Connect dials NATS. Connection state changes are logged through logger.
func Connect(cfg Config, logger zerolog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrlRedacted()).Msg("nats reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return newPublisher(nc, cfg.SubjectPrefix), nil
}

func newPublisher(c conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultConfig().SubjectPrefix
	}
	return &Publisher{conn: c, prefix: prefix}
}

// Subject returns the subject records of type t are published to.
func (p *Publisher) Subject(t webhooks.EventType) string {
	return p.prefix + "." + string(t)
}

func (p *Publisher) Publish(ctx context.Context, record webhooks.EventRecord) (err error) {
	defer func() { metrics.RecordPublish(string(record.Type), err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(p.Subject(record.Type))
	msg.Data = data
	msg.Header.Set(HeaderMsgID, record.ID)
	msg.Header.Set(HeaderEventType, string(record.Type))

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Ping reports whether the connection is currently up.
func (p *Publisher) Ping(context.Context) error {
	if !p.conn.IsConnected() {
		return errNotConnected
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
