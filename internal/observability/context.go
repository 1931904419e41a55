package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	jobIDKey     contextKey = "job_id"
	paperIDKey   contextKey = "paper_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithJobID adds a background job ID to the context.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// JobIDFromContext retrieves the job ID from context.
// Returns empty string if not present.
func JobIDFromContext(ctx context.Context) string {
	if v := ctx.Value(jobIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithPaperID adds a paper ID to the context.
func WithPaperID(ctx context.Context, paperID string) context.Context {
	return context.WithValue(ctx, paperIDKey, paperID)
}

// PaperIDFromContext retrieves the paper ID from context.
// Returns empty string if not present.
func PaperIDFromContext(ctx context.Context) string {
	if v := ctx.Value(paperIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
