package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	requestIDHeader    = "X-Request-ID"
	traceparentHeader  = "traceparent"
	maxRequestIDLength = 128
)

type requestIDKey struct{}

// Tracing propagates the caller's X-Request-ID, falls back to the trace id
// of a W3C traceparent header, or mints a time-ordered id. The id is echoed
// on the response.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !validRequestID(id) {
			id = traceIDFromParent(r.Header.Get(traceparentHeader))
		}
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}

		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Caller ids end up in every log line, so only a conservative character
// set is accepted.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

// traceIDFromParent extracts the 32 hex trace id from
// "version-traceid-parentid-flags".
func traceIDFromParent(header string) string {
	parts := strings.Split(header, "-")
	if len(parts) != 4 || len(parts[1]) != 32 || strings.Trim(parts[1], "0") == "" {
		return ""
	}
	for _, c := range parts[1] {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return ""
		}
	}
	return parts[1]
}
