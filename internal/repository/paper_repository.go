package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/poteroapp/potero/internal/domain"
)

// PaperRepository handles paper persistence.
type PaperRepository interface {
	// Create inserts a new paper. Returns domain.ErrAlreadyExists if a
	// paper with the same ID exists.
	Create(ctx context.Context, paper *domain.Paper) error

	// Update rewrites an existing paper's metadata.
	// Returns domain.ErrNotFound if the paper does not exist.
	Update(ctx context.Context, paper *domain.Paper) error

	// GetByID retrieves a paper by its UUID.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error)

	// List retrieves all papers ordered by creation time, newest first.
	List(ctx context.Context) ([]*domain.Paper, error)

	// Delete removes a paper and, through foreign keys, its texts,
	// figures, formulas, and narratives.
	// Returns domain.ErrNotFound if the paper does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// MarkNarrativeAvailable flips the paper's narrative flag.
	// Returns domain.ErrNotFound if the paper does not exist.
	MarkNarrativeAvailable(ctx context.Context, id uuid.UUID, available bool) error
}
