package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithRequestID(ctx, "req-123")

		result := RequestIDFromContext(ctx)
		assert.Equal(t, "req-123", result)
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		ctx := context.Background()
		result := RequestIDFromContext(ctx)
		assert.Equal(t, "", result)
	})
}

func TestTraceSpanContext(t *testing.T) {
	t.Run("stores and retrieves trace and span IDs", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithTraceSpan(ctx, "trace-abc", "span-xyz")

		traceID, spanID := TraceSpanFromContext(ctx)
		assert.Equal(t, "trace-abc", traceID)
		assert.Equal(t, "span-xyz", spanID)
	})

	t.Run("returns empty strings when not set", func(t *testing.T) {
		ctx := context.Background()
		traceID, spanID := TraceSpanFromContext(ctx)
		assert.Equal(t, "", traceID)
		assert.Equal(t, "", spanID)
	})
}

func TestRequestContextFull(t *testing.T) {
	t.Run("stores and retrieves full request context", func(t *testing.T) {
		ctx := context.Background()
		rc := RequestContext{
			RequestID: "req-123",
			TraceID:   "trace-abc",
			SpanID:    "span-xyz",
		}

		ctx = WithRequestContextFull(ctx, rc)
		result := RequestContextFromContext(ctx)

		assert.Equal(t, rc.RequestID, result.RequestID)
		assert.Equal(t, rc.TraceID, result.TraceID)
		assert.Equal(t, rc.SpanID, result.SpanID)
	})

	t.Run("handles partial context", func(t *testing.T) {
		ctx := context.Background()
		rc := RequestContext{
			RequestID: "req-only",
		}

		ctx = WithRequestContextFull(ctx, rc)
		result := RequestContextFromContext(ctx)

		assert.Equal(t, "req-only", result.RequestID)
		assert.Equal(t, "", result.TraceID)
		assert.Equal(t, "", result.SpanID)
	})

	t.Run("returns empty context when nothing set", func(t *testing.T) {
		ctx := context.Background()
		result := RequestContextFromContext(ctx)

		assert.Equal(t, RequestContext{}, result)
	})
}

func TestContextChaining(t *testing.T) {
	ctx := context.Background()

	// Chain multiple context additions
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTraceSpan(ctx, "trace-1", "span-1")

	// All values should be retrievable
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))

	traceID, spanID := TraceSpanFromContext(ctx)
	assert.Equal(t, "trace-1", traceID)
	assert.Equal(t, "span-1", spanID)
}

func TestContextOverwrite(t *testing.T) {
	ctx := context.Background()

	// Set initial values
	ctx = WithRequestID(ctx, "req-1")

	// Overwrite with new values
	ctx = WithRequestID(ctx, "req-2")

	// Should have new value
	assert.Equal(t, "req-2", RequestIDFromContext(ctx))
}
