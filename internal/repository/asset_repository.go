package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/poteroapp/potero/internal/domain"
)

// AssetRepository handles the extracted artifacts the pipeline consumes:
// preprocessed full text, figures, and formulas. Extraction itself happens
// upstream; this service only reads and stores the results.
type AssetRepository interface {
	// SetFullText stores or replaces the paper's preprocessed full text.
	SetFullText(ctx context.Context, paperID uuid.UUID, content string) error

	// FullText retrieves the paper's full text. A paper without stored
	// text yields an empty string, not an error.
	FullText(ctx context.Context, paperID uuid.UUID) (string, error)

	// ReplaceFigures swaps the paper's figure set.
	ReplaceFigures(ctx context.Context, paperID uuid.UUID, figures []domain.Figure) error

	// FiguresByPaper retrieves the paper's figures in label order.
	FiguresByPaper(ctx context.Context, paperID uuid.UUID) ([]domain.Figure, error)

	// ReplaceFormulas swaps the paper's formula set.
	ReplaceFormulas(ctx context.Context, paperID uuid.UUID, formulas []domain.Formula) error

	// FormulasByPaper retrieves the paper's formulas in label order.
	FormulasByPaper(ctx context.Context, paperID uuid.UUID) ([]domain.Formula, error)
}
