// Package problem writes JSON error responses of the form {"error": "..."}.
package problem

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

const contentType = "application/json"

// Messages returned to clients. They never carry internal error detail.
const (
	MsgInvalidPayload   = "Invalid payload"
	MsgUnsupportedEvent = "Unsupported event"
	MsgMalformedEvent   = "Malformed event"
	MsgInvalidSignature = "Invalid signature"
	MsgPayloadTooLarge  = "Payload too large"
	MsgRateLimited      = "Rate limit exceeded"
	MsgProcessingFailed = "Processing failed"
	MsgNotFound         = "Not found"
	MsgMethodNotAllowed = "Method not allowed"
)

type Option func(map[string]any)

// WithField adds an extra top-level member to the body.
func WithField(key string, value any) Option {
	return func(body map[string]any) {
		if key != "error" {
			body[key] = value
		}
	}
}

// Write logs err through the request logger (4xx at warn, 5xx at error) and
// responds with status and {"error": message}.
func Write(w http.ResponseWriter, r *http.Request, status int, message string, err error, opts ...Option) {
	body := map[string]any{"error": message}
	for _, opt := range opts {
		opt(body)
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		var event *zerolog.Event
		if status >= 500 {
			event = logger.Error()
		} else {
			event = logger.Warn()
		}
		event.
			Err(err).
			Int("status", status).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(message)
	}

	WriteJSON(w, status, body)
}

// WriteJSON encodes payload with status. An unencodable payload becomes a 500.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Processing failed"}`))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
