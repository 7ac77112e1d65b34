package middleware

import (
	"net/http"

	"github.com/Togather-Foundation/webhook-receiver/internal/api/problem"
)

// DefaultMaxBodySize is 1MB, enough for any push or pull_request delivery.
const DefaultMaxBodySize int64 = 1 << 20

// RequestSize limits request bodies to maxBytes. A declared Content-Length
// over the limit is refused with 413 before the handler runs; bodies that
// only turn out too large while being read fail inside the handler with
// *http.MaxBytesError.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.MsgPayloadTooLarge, nil)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
