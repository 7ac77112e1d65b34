package webhooks

import (
	"bytes"

	"github.com/tidwall/gjson"
)

// Top-level keys that identify an event shape.
const (
	pushProbe        = "commits"
	pullRequestProbe = "pull_request"
)

// RawPayload is a parsed JSON object as delivered by the sender.
type RawPayload struct {
	raw []byte
	doc gjson.Result
}

// ParsePayload validates body and returns it as a RawPayload. Empty bodies,
// invalid JSON, non-object documents and empty objects are ErrInvalidPayload.
func ParsePayload(body []byte) (RawPayload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !gjson.ValidBytes(trimmed) {
		return RawPayload{}, ErrInvalidPayload
	}

	doc := gjson.ParseBytes(trimmed)
	if !doc.IsObject() || len(doc.Map()) == 0 {
		return RawPayload{}, ErrInvalidPayload
	}
	return RawPayload{raw: trimmed, doc: doc}, nil
}

// Has reports whether key is present at the top level, even when its value is null.
func (p RawPayload) Has(key string) bool {
	return p.doc.Get(gjson.Escape(key)).Exists()
}

// Bytes returns the raw JSON document.
func (p RawPayload) Bytes() []byte {
	return p.raw
}

// Classification is the closed set of outcomes of Classify: Push,
// PullRequest or Unsupported.
type Classification interface {
	// Type is empty for Unsupported.
	Type() EventType
	sealed()
}

type Push struct{ Payload RawPayload }

type PullRequest struct{ Payload RawPayload }

type Unsupported struct{}

func (Push) Type() EventType        { return EventTypePush }
func (PullRequest) Type() EventType { return EventTypePullRequest }
func (Unsupported) Type() EventType { return "" }

func (Push) sealed()        {}
func (PullRequest) sealed() {}
func (Unsupported) sealed() {}

// Classify maps a payload to its event shape. A payload carrying commits is a
// push even if it also carries a pull_request.
func Classify(payload RawPayload) Classification {
	switch {
	case payload.Has(pushProbe):
		return Push{Payload: payload}
	case payload.Has(pullRequestProbe):
		return PullRequest{Payload: payload}
	default:
		return Unsupported{}
	}
}
