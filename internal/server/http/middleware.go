package httpserver

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/helixir/paper-search-service/internal/observability"
)

// correlationIDMiddleware ensures every request has a correlation ID and
// propagates caller-supplied W3C trace context into the request context.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = middleware.GetReqID(r.Context())
		}
		if correlationID == "" {
			buf := make([]byte, 8)
			if _, err := rand.Read(buf); err != nil {
				// Fallback to timestamp-based ID if crypto/rand fails.
				correlationID = fmt.Sprintf("%x", time.Now().UnixNano())
			} else {
				correlationID = fmt.Sprintf("%x", buf)
			}
		}

		rc := observability.RequestContext{RequestID: correlationID}
		if traceID, spanID, ok := parseTraceParent(r.Header.Get("traceparent")); ok {
			rc.TraceID = traceID
			rc.SpanID = spanID
		}

		w.Header().Set("X-Correlation-ID", correlationID)
		ctx := observability.WithRequestContextFull(r.Context(), rc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// parseTraceParent extracts the trace and parent span IDs from a W3C
// traceparent header (version-traceid-spanid-flags). All-zero IDs mean
// an absent trace and are rejected.
func parseTraceParent(header string) (traceID, spanID string, ok bool) {
	parts := strings.Split(header, "-")
	if len(parts) != 4 {
		return "", "", false
	}

	traceID, spanID = parts[1], parts[2]
	if len(traceID) != 32 || len(spanID) != 16 {
		return "", "", false
	}
	if traceID == strings.Repeat("0", 32) || spanID == strings.Repeat("0", 16) {
		return "", "", false
	}
	return traceID, spanID, true
}

// jsonContentTypeMiddleware sets Content-Type: application/json for all responses.
func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
