package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/poteroapp/potero/internal/domain"
)

// NarrativeRepository handles generated narrative persistence. Narrative
// identity is (paper, style, language); one row per combination.
type NarrativeRepository interface {
	// Insert stores one narrative.
	// Returns domain.ErrAlreadyExists if the (paper, style, language)
	// combination is already stored.
	Insert(ctx context.Context, n *domain.Narrative) error

	// GetByPaperStyleLanguage retrieves one narrative by its identity.
	// Returns domain.ErrNotFound if no matching narrative exists.
	GetByPaperStyleLanguage(ctx context.Context, paperID uuid.UUID, style domain.NarrativeStyle, language domain.NarrativeLanguage) (*domain.Narrative, error)

	// ListByPaper retrieves all narratives for a paper in a stable
	// style-then-language order.
	ListByPaper(ctx context.Context, paperID uuid.UUID) ([]*domain.Narrative, error)

	// ExistsForPaper reports whether the paper has any narratives.
	ExistsForPaper(ctx context.Context, paperID uuid.UUID) (bool, error)

	// DeleteByPaper removes all narratives for a paper, returning how many
	// were removed.
	DeleteByPaper(ctx context.Context, paperID uuid.UUID) (int, error)
}
