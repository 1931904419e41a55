package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/poteroapp/potero/internal/domain"
)

// Compile-time interface verification.
var _ NarrativeRepository = (*SQLiteNarrativeRepository)(nil)

// SQLiteNarrativeRepository is a SQLite implementation of NarrativeRepository.
type SQLiteNarrativeRepository struct {
	db DBTX
}

// NewSQLiteNarrativeRepository creates a new SQLite narrative repository.
func NewSQLiteNarrativeRepository(db DBTX) *SQLiteNarrativeRepository {
	return &SQLiteNarrativeRepository{db: db}
}

// Insert persists a finished narrative.
func (r *SQLiteNarrativeRepository) Insert(ctx context.Context, narrative *domain.Narrative) error {
	if narrative == nil {
		return domain.NewValidationError("narrative", "narrative cannot be nil")
	}
	if narrative.ID == uuid.Nil {
		narrative.ID = uuid.New()
	}

	figuresJSON, err := json.Marshal(narrative.FigureExplanations)
	if err != nil {
		return fmt.Errorf("failed to marshal figure explanations: %w", err)
	}
	conceptsJSON, err := json.Marshal(narrative.ConceptExplanations)
	if err != nil {
		return fmt.Errorf("failed to marshal concept explanations: %w", err)
	}

	now := time.Now().UTC()
	if narrative.CreatedAt.IsZero() {
		narrative.CreatedAt = now
	}
	narrative.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO narratives (
			id, paper_id, style, language, title, content, summary,
			figure_explanations, concept_explanations, estimated_read_time,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		narrative.ID.String(), narrative.PaperID.String(),
		string(narrative.Style), string(narrative.Language),
		narrative.Title, narrative.Content, narrative.Summary,
		string(figuresJSON), string(conceptsJSON),
		narrative.EstimatedReadTime,
		formatTime(narrative.CreatedAt), formatTime(narrative.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: narrative for paper %s (%s, %s)",
				domain.ErrAlreadyExists, narrative.PaperID, narrative.Style, narrative.Language)
		}
		return fmt.Errorf("failed to insert narrative: %w", err)
	}
	return nil
}

// GetByPaperStyleLanguage retrieves the one narrative matching the identity triple.
func (r *SQLiteNarrativeRepository) GetByPaperStyleLanguage(ctx context.Context, paperID uuid.UUID, style domain.NarrativeStyle, language domain.NarrativeLanguage) (*domain.Narrative, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, paper_id, style, language, title, content, summary,
			figure_explanations, concept_explanations, estimated_read_time,
			created_at, updated_at
		FROM narratives WHERE paper_id = ? AND style = ? AND language = ?`,
		paperID.String(), string(style), string(language))

	narrative, err := scanNarrative(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("narrative",
			fmt.Sprintf("%s/%s/%s", paperID, style, language))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get narrative: %w", err)
	}
	return narrative, nil
}

// ListByPaper retrieves every narrative of a paper, ordered by style then language.
func (r *SQLiteNarrativeRepository) ListByPaper(ctx context.Context, paperID uuid.UUID) ([]*domain.Narrative, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, paper_id, style, language, title, content, summary,
			figure_explanations, concept_explanations, estimated_read_time,
			created_at, updated_at
		FROM narratives WHERE paper_id = ? ORDER BY style, language`,
		paperID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list narratives: %w", err)
	}
	defer rows.Close()

	var narratives []*domain.Narrative
	for rows.Next() {
		narrative, err := scanNarrative(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan narrative: %w", err)
		}
		narratives = append(narratives, narrative)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate narratives: %w", err)
	}
	return narratives, nil
}

// ExistsForPaper reports whether the paper has at least one narrative.
func (r *SQLiteNarrativeRepository) ExistsForPaper(ctx context.Context, paperID uuid.UUID) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM narratives WHERE paper_id = ?",
		paperID.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count narratives: %w", err)
	}
	return count > 0, nil
}

// DeleteByPaper removes all narratives of a paper and returns how many were deleted.
func (r *SQLiteNarrativeRepository) DeleteByPaper(ctx context.Context, paperID uuid.UUID) (int, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM narratives WHERE paper_id = ?", paperID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to delete narratives: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(affected), nil
}

func scanNarrative(row rowScanner) (*domain.Narrative, error) {
	var (
		narrative                    domain.Narrative
		id, paperID, style, language string
		figuresJSON, conceptsJSON    string
		createdAt, updatedAt         string
	)
	err := row.Scan(&id, &paperID, &style, &language, &narrative.Title,
		&narrative.Content, &narrative.Summary, &figuresJSON, &conceptsJSON,
		&narrative.EstimatedReadTime, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if narrative.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid narrative id %q: %w", id, err)
	}
	if narrative.PaperID, err = uuid.Parse(paperID); err != nil {
		return nil, fmt.Errorf("invalid paper id %q: %w", paperID, err)
	}
	narrative.Style = domain.NarrativeStyle(style)
	narrative.Language = domain.NarrativeLanguage(language)
	if err := json.Unmarshal([]byte(figuresJSON), &narrative.FigureExplanations); err != nil {
		return nil, fmt.Errorf("invalid figure explanations payload: %w", err)
	}
	if err := json.Unmarshal([]byte(conceptsJSON), &narrative.ConceptExplanations); err != nil {
		return nil, fmt.Errorf("invalid concept explanations payload: %w", err)
	}
	if narrative.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if narrative.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &narrative, nil
}
