package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	// RequestIDKey is the context key for the request correlation ID
	RequestIDKey contextKey = "request_id"

	RequestIDHeader = "X-Request-ID"
	// DeliveryHeader identifies a webhook delivery on the sender side.
	DeliveryHeader = "X-GitHub-Delivery"

	maxRequestIDLength = 128
)

// CorrelationID assigns each request an ID (reusing a sane X-Request-ID from a
// proxy) and stores a logger carrying it, plus the delivery ID when present,
// in the request context.
func CorrelationID(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if !validRequestID(requestID) {
				requestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, requestID)

			logCtx := logger.With().Str("request_id", requestID)
			if delivery := r.Header.Get(DeliveryHeader); validRequestID(delivery) {
				logCtx = logCtx.Str("delivery_id", delivery)
			}
			reqLogger := logCtx.Logger()

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = reqLogger.WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// validRequestID accepts short printable ASCII identifiers only, so client
// supplied values cannot forge log lines.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
