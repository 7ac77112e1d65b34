package webhooks

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload is returned for empty or unparseable request bodies.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrUnauthenticated is returned when the request signature does not match.
	ErrUnauthenticated = errors.New("invalid signature")

	// ErrUnsupportedEvent is returned for valid JSON that matches no known event shape.
	ErrUnsupportedEvent = errors.New("unsupported event")

	// ErrMalformedEvent is returned when a recognized shape is missing a required field.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrStoreUnavailable wraps every failure of the backing store.
	ErrStoreUnavailable = errors.New("event store unavailable")
)

// MalformedEventError names the field that made an event unusable.
type MalformedEventError struct {
	Type  EventType
	Field string
	Cause error
}

func (e MalformedEventError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed %s event", e.Type)
	}
	return fmt.Sprintf("malformed %s event: missing or invalid %s", e.Type, e.Field)
}

func (e MalformedEventError) Is(target error) bool {
	return target == ErrMalformedEvent
}

func (e MalformedEventError) Unwrap() error {
	return e.Cause
}
