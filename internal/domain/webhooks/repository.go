package webhooks

import "context"

// Store is the persistence gateway for event records.
//
// Query returns records newest first by ReceivedAt. Records sharing a
// timestamp are ordered by insertion sequence, most recent first, so repeated
// queries over the same data return the same pages. total counts every stored
// record.
type Store interface {
	Insert(ctx context.Context, record EventRecord) (string, error)
	Query(ctx context.Context, skip int64, limit int) (records []EventRecord, total int64, err error)
	Ping(ctx context.Context) error
}

// Publisher fans stored records out to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, record EventRecord) error
}

// NopPublisher discards records.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, EventRecord) error { return nil }
