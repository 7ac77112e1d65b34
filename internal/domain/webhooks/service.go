package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/webhook-receiver/internal/api/pagination"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/Togather-Foundation/webhook-receiver/internal/domain/webhooks"

// DefaultInsertTimeout bounds a write once it has been detached from the request.
const DefaultInsertTimeout = 10 * time.Second

// Delivery is one inbound webhook request as seen by the pipeline.
type Delivery struct {
	Body       []byte
	Signature  string
	EventName  string // X-GitHub-Event, informational only
	DeliveryID string // X-GitHub-Delivery, informational only
}

type IngestResult struct {
	Record EventRecord
}

// IngestService runs the write path: verify, parse, classify, normalize, insert.
type IngestService struct {
	store         Store
	verifier      SignatureVerifier
	normalizer    *Normalizer
	publisher     Publisher
	insertTimeout time.Duration
}

type IngestOption func(*IngestService)

func WithPublisher(p Publisher) IngestOption {
	return func(s *IngestService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithInsertTimeout(d time.Duration) IngestOption {
	return func(s *IngestService) {
		if d > 0 {
			s.insertTimeout = d
		}
	}
}

func NewIngestService(store Store, verifier SignatureVerifier, normalizer *Normalizer, opts ...IngestOption) *IngestService {
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}
	s := &IngestService{
		store:         store,
		verifier:      verifier,
		normalizer:    normalizer,
		publisher:     NopPublisher{},
		insertTimeout: DefaultInsertTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest processes one delivery. Expected rejections come back as the
// sentinel errors of this package; only store failures wrap ErrStoreUnavailable.
func (s *IngestService) Ingest(ctx context.Context, d Delivery) (IngestResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "webhooks.Ingest")
	defer span.End()

	if s.verifier.Verify(d.Body, d.Signature) == Rejected {
		span.SetStatus(codes.Error, "signature rejected")
		return IngestResult{}, ErrUnauthenticated
	}

	payload, err := ParsePayload(d.Body)
	if err != nil {
		return IngestResult{}, err
	}

	classification := Classify(payload)
	if _, ok := classification.(Unsupported); ok {
		return IngestResult{}, ErrUnsupportedEvent
	}
	span.SetAttributes(attribute.String("webhook.type", string(classification.Type())))

	record, err := s.normalizer.Normalize(classification)
	if err != nil {
		return IngestResult{}, err
	}

	// A client that disconnects mid-request must not abort the write.
	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.insertTimeout)
	defer cancel()

	id, err := s.store.Insert(insertCtx, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		if !errors.Is(err, ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return IngestResult{}, err
	}
	record.ID = id
	span.SetAttributes(attribute.String("webhook.event_id", id))

	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("event_id", record.ID).
		Str("type", string(record.Type)).
		Str("repository", record.Repository).
		Str("author", record.Author()).
		Str("github_event", d.EventName).
		Str("delivery_id", d.DeliveryID).
		Msg("received event")

	if err := s.publisher.Publish(insertCtx, record); err != nil {
		logger.Warn().Err(err).Str("event_id", record.ID).Msg("publish event failed")
	}

	return IngestResult{Record: record}, nil
}

// PageResult is one page of stored events.
type PageResult struct {
	Events      []EventRecord
	CurrentPage int
	TotalPages  int
	Limit       int
	TotalEvents int64
}

// ListService runs the read path.
type ListService struct {
	store Store
}

func NewListService(store Store) *ListService {
	return &ListService{store: store}
}

func (s *ListService) List(ctx context.Context, req pagination.PageRequest) (PageResult, error) {
	req = pagination.NewPageRequest(req.Limit, req.Page)

	records, total, err := s.store.Query(ctx, req.Skip(), req.Limit)
	if err != nil {
		if !errors.Is(err, ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return PageResult{}, err
	}
	if records == nil {
		records = []EventRecord{}
	}

	return PageResult{
		Events:      records,
		CurrentPage: req.Page,
		TotalPages:  pagination.TotalPages(total, req.Limit),
		Limit:       req.Limit,
		TotalEvents: total,
	}, nil
}

// Ping checks that the store answers.
func (s *ListService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
