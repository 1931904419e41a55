package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestJobIDContext(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, JobIDFromContext(ctx))

	ctx = WithJobID(ctx, "job-abc")
	assert.Equal(t, "job-abc", JobIDFromContext(ctx))
}

func TestPaperIDContext(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, PaperIDFromContext(ctx))

	ctx = WithPaperID(ctx, "paper-xyz")
	assert.Equal(t, "paper-xyz", PaperIDFromContext(ctx))
}
