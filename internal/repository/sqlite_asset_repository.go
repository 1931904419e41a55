package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/poteroapp/potero/internal/domain"
)

// Compile-time interface verification.
var _ AssetRepository = (*SQLiteAssetRepository)(nil)

// SQLiteAssetRepository is a SQLite implementation of AssetRepository.
type SQLiteAssetRepository struct {
	db DBTX
}

// NewSQLiteAssetRepository creates a new SQLite asset repository.
func NewSQLiteAssetRepository(db DBTX) *SQLiteAssetRepository {
	return &SQLiteAssetRepository{db: db}
}

// SetFullText stores or replaces the preprocessed full text of a paper.
func (r *SQLiteAssetRepository) SetFullText(ctx context.Context, paperID uuid.UUID, content string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO paper_texts (paper_id, content) VALUES (?, ?)
		ON CONFLICT (paper_id) DO UPDATE SET content = excluded.content`,
		paperID.String(), content)
	if err != nil {
		return fmt.Errorf("failed to store full text: %w", err)
	}
	return nil
}

// FullText retrieves the preprocessed full text of a paper. A paper without
// stored text yields an empty string, not an error.
func (r *SQLiteAssetRepository) FullText(ctx context.Context, paperID uuid.UUID) (string, error) {
	var content string
	err := r.db.QueryRowContext(ctx,
		"SELECT content FROM paper_texts WHERE paper_id = ?",
		paperID.String()).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get full text: %w", err)
	}
	return content, nil
}

// ReplaceFigures swaps the full figure set of a paper in one transaction-free
// pass. Callers wanting atomicity pass a *sql.Tx as the DBTX.
func (r *SQLiteAssetRepository) ReplaceFigures(ctx context.Context, paperID uuid.UUID, figures []domain.Figure) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM figures WHERE paper_id = ?", paperID.String()); err != nil {
		return fmt.Errorf("failed to clear figures: %w", err)
	}
	for _, figure := range figures {
		if figure.ID == uuid.Nil {
			figure.ID = uuid.New()
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO figures (id, paper_id, label, caption, path)
			VALUES (?, ?, ?, ?, ?)`,
			figure.ID.String(), paperID.String(), figure.Label, figure.Caption, figure.Path)
		if err != nil {
			return fmt.Errorf("failed to insert figure %q: %w", figure.Label, err)
		}
	}
	return nil
}

// FiguresByPaper retrieves the figures of a paper in label order.
func (r *SQLiteAssetRepository) FiguresByPaper(ctx context.Context, paperID uuid.UUID) ([]domain.Figure, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, paper_id, label, caption, path
		FROM figures WHERE paper_id = ? ORDER BY label`, paperID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list figures: %w", err)
	}
	defer rows.Close()

	var figures []domain.Figure
	for rows.Next() {
		var (
			figure      domain.Figure
			id, ownerID string
		)
		if err := rows.Scan(&id, &ownerID, &figure.Label, &figure.Caption, &figure.Path); err != nil {
			return nil, fmt.Errorf("failed to scan figure: %w", err)
		}
		if figure.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid figure id %q: %w", id, err)
		}
		if figure.PaperID, err = uuid.Parse(ownerID); err != nil {
			return nil, fmt.Errorf("invalid paper id %q: %w", ownerID, err)
		}
		figures = append(figures, figure)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate figures: %w", err)
	}
	return figures, nil
}

// ReplaceFormulas swaps the full formula set of a paper.
func (r *SQLiteAssetRepository) ReplaceFormulas(ctx context.Context, paperID uuid.UUID, formulas []domain.Formula) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM formulas WHERE paper_id = ?", paperID.String()); err != nil {
		return fmt.Errorf("failed to clear formulas: %w", err)
	}
	for _, formula := range formulas {
		if formula.ID == uuid.Nil {
			formula.ID = uuid.New()
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO formulas (id, paper_id, label, latex, context)
			VALUES (?, ?, ?, ?, ?)`,
			formula.ID.String(), paperID.String(), formula.Label, formula.LaTeX, formula.Context)
		if err != nil {
			return fmt.Errorf("failed to insert formula %q: %w", formula.Label, err)
		}
	}
	return nil
}

// FormulasByPaper retrieves the formulas of a paper in label order.
func (r *SQLiteAssetRepository) FormulasByPaper(ctx context.Context, paperID uuid.UUID) ([]domain.Formula, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, paper_id, label, latex, context
		FROM formulas WHERE paper_id = ? ORDER BY label`, paperID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list formulas: %w", err)
	}
	defer rows.Close()

	var formulas []domain.Formula
	for rows.Next() {
		var (
			formula     domain.Formula
			id, ownerID string
		)
		if err := rows.Scan(&id, &ownerID, &formula.Label, &formula.LaTeX, &formula.Context); err != nil {
			return nil, fmt.Errorf("failed to scan formula: %w", err)
		}
		if formula.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid formula id %q: %w", id, err)
		}
		if formula.PaperID, err = uuid.Parse(ownerID); err != nil {
			return nil, fmt.Errorf("invalid paper id %q: %w", ownerID, err)
		}
		formulas = append(formulas, formula)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate formulas: %w", err)
	}
	return formulas, nil
}
