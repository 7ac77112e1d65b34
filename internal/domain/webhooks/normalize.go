package webhooks

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Clock supplies processing timestamps.
type Clock interface {
	Now() time.Time
}

// MonotonicClock returns strictly increasing UTC instants at microsecond
// precision, the resolution of the store's timestamp column.
type MonotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC().Truncate(time.Microsecond)
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}

// Normalizer turns a classified payload into an EventRecord.
type Normalizer struct {
	clock    Clock
	validate *validator.Validate
}

func NewNormalizer(clock Clock) *Normalizer {
	if clock == nil {
		clock = NewMonotonicClock()
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Postgres TEXT cannot hold NUL bytes.
	_ = validate.RegisterValidation("nonul", func(fl validator.FieldLevel) bool {
		return !strings.ContainsRune(fl.Field().String(), 0)
	})
	return &Normalizer{clock: clock, validate: validate}
}

// Normalize extracts the canonical record for c. The record has no ID until
// the store assigns one.
func (n *Normalizer) Normalize(c Classification) (EventRecord, error) {
	switch v := c.(type) {
	case Push:
		return n.normalizePush(v.Payload)
	case PullRequest:
		return n.normalizePullRequest(v.Payload)
	default:
		return EventRecord{}, ErrUnsupportedEvent
	}
}

func (n *Normalizer) normalizePush(payload RawPayload) (EventRecord, error) {
	var body pushPayload
	if err := json.Unmarshal(payload.Bytes(), &body); err != nil {
		return EventRecord{}, decodeError(EventTypePush, err)
	}

	details := &PushDetails{
		Author: strings.TrimSpace(body.Pusher.Name),
		Branch: branchFromRef(body.Ref),
	}
	if body.HeadCommit != nil {
		details.CommitID = strings.TrimSpace(body.HeadCommit.ID)
		details.CommitMessage = body.HeadCommit.Message
	}
	if err := n.check(EventTypePush, details); err != nil {
		return EventRecord{}, err
	}

	repository, err := checkRepository(EventTypePush, body.Repository)
	if err != nil {
		return EventRecord{}, err
	}

	return EventRecord{
		Type:       EventTypePush,
		Repository: repository,
		ReceivedAt: n.clock.Now(),
		Push:       details,
	}, nil
}

func (n *Normalizer) normalizePullRequest(payload RawPayload) (EventRecord, error) {
	var body pullRequestPayload
	if err := json.Unmarshal(payload.Bytes(), &body); err != nil {
		return EventRecord{}, decodeError(EventTypePullRequest, err)
	}
	if body.PullRequest == nil {
		return EventRecord{}, MalformedEventError{Type: EventTypePullRequest, Field: "pull_request"}
	}

	pr := body.PullRequest
	details := &PullRequestDetails{
		Author:     strings.TrimSpace(pr.User.Login),
		Action:     strings.TrimSpace(body.Action),
		FromBranch: strings.TrimSpace(pr.Head.Ref),
		ToBranch:   strings.TrimSpace(pr.Base.Ref),
		Number:     pr.Number,
		State:      strings.TrimSpace(pr.State),
	}
	if err := n.check(EventTypePullRequest, details); err != nil {
		return EventRecord{}, err
	}

	repository, err := checkRepository(EventTypePullRequest, body.Repository)
	if err != nil {
		return EventRecord{}, err
	}

	return EventRecord{
		Type:        EventTypePullRequest,
		Repository:  repository,
		ReceivedAt:  n.clock.Now(),
		PullRequest: details,
	}, nil
}

func (n *Normalizer) check(typ EventType, details any) error {
	err := n.validate.Struct(details)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return MalformedEventError{Type: typ, Field: fieldErrs[0].Field(), Cause: err}
	}
	return MalformedEventError{Type: typ, Cause: err}
}

func decodeError(typ EventType, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return MalformedEventError{Type: typ, Field: typeErr.Field, Cause: err}
	}
	return MalformedEventError{Type: typ, Cause: err}
}

// branchFromRef keeps the last path segment: refs/heads/main -> main.
func branchFromRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	segments := strings.Split(ref, "/")
	return strings.TrimSpace(segments[len(segments)-1])
}

func checkRepository(typ EventType, repo repositoryRef) (string, error) {
	name := repositoryName(repo)
	if strings.ContainsRune(name, 0) {
		return "", MalformedEventError{Type: typ, Field: "repository"}
	}
	return name, nil
}

func repositoryName(repo repositoryRef) string {
	if name := strings.TrimSpace(repo.Name); name != "" {
		return name
	}
	return UnknownRepository
}
