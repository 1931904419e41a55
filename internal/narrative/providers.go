// Package narrative implements the Paper-to-Narrative generation pipeline:
// structural understanding, content recomposition, concept simplification and
// style rendering, plus the stage cache and the orchestrator that sequences
// the stages across requested style and language combinations.
package narrative

import (
	"context"

	"github.com/google/uuid"

	"github.com/poteroapp/potero/internal/domain"
)

// ChatGateway is the single-call LLM surface the pipeline depends on. The
// llm.Gateway satisfies it; tests substitute scripted fakes.
type ChatGateway interface {
	Chat(ctx context.Context, prompt string) (string, error)
	Provider() string
}

// PaperStore is the paper lookup/update surface the orchestrator needs.
type PaperStore interface {
	// GetByID retrieves a paper. Returns domain.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error)

	// MarkNarrativeAvailable flips the paper's narrative flag.
	MarkNarrativeAvailable(ctx context.Context, id uuid.UUID, available bool) error
}

// NarrativeStore persists generated narratives.
type NarrativeStore interface {
	// Insert stores one narrative.
	Insert(ctx context.Context, n *domain.Narrative) error

	// DeleteByPaper removes all narratives for a paper, returning the number removed.
	DeleteByPaper(ctx context.Context, paperID uuid.UUID) (int, error)

	// ListByPaper returns all narratives for a paper.
	ListByPaper(ctx context.Context, paperID uuid.UUID) ([]*domain.Narrative, error)

	// GetByPaperStyleLanguage returns one narrative by its domain identity.
	// Returns domain.ErrNotFound if absent.
	GetByPaperStyleLanguage(ctx context.Context, paperID uuid.UUID, style domain.NarrativeStyle, language domain.NarrativeLanguage) (*domain.Narrative, error)

	// ExistsForPaper reports whether the paper has any narratives.
	ExistsForPaper(ctx context.Context, paperID uuid.UUID) (bool, error)
}

// FigureProvider yields a paper's extracted figures. Failures are tolerated by
// the orchestrator and treated as "no figures".
type FigureProvider interface {
	FiguresByPaper(ctx context.Context, paperID uuid.UUID) ([]domain.Figure, error)
}

// FormulaProvider yields a paper's extracted formulas. Failures are tolerated
// by the orchestrator and treated as "no formulas".
type FormulaProvider interface {
	FormulasByPaper(ctx context.Context, paperID uuid.UUID) ([]domain.Formula, error)
}

// FullTextProvider yields a paper's preprocessed full text. This input is
// required: the pipeline performs no extraction of its own, and a failure here
// aborts generation.
type FullTextProvider interface {
	FullText(ctx context.Context, paperID uuid.UUID) (string, error)
}
