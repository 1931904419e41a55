package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/poteroapp/potero/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*SQLitePaperRepository)(nil)

// SQLitePaperRepository is a SQLite implementation of PaperRepository.
type SQLitePaperRepository struct {
	db DBTX
}

// NewSQLitePaperRepository creates a new SQLite paper repository.
func NewSQLitePaperRepository(db DBTX) *SQLitePaperRepository {
	return &SQLitePaperRepository{db: db}
}

// Create inserts a new paper.
func (r *SQLitePaperRepository) Create(ctx context.Context, paper *domain.Paper) error {
	if paper == nil {
		return domain.NewValidationError("paper", "paper cannot be nil")
	}
	if paper.Title == "" {
		return domain.NewValidationError("title", "title is required")
	}
	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}

	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return fmt.Errorf("failed to marshal authors: %w", err)
	}

	now := time.Now().UTC()
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = now
	}
	paper.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO papers (
			id, title, authors, abstract, doi, arxiv_id, year, venue,
			citation_count, pdf_path, thumbnail_path, narrative_available,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		paper.ID.String(), paper.Title, string(authorsJSON), paper.Abstract,
		paper.DOI, paper.ArXivID, paper.Year, paper.Venue,
		paper.CitationCount, paper.PDFPath, paper.ThumbnailPath,
		boolToInt(paper.NarrativeAvailable),
		formatTime(paper.CreatedAt), formatTime(paper.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: paper %s", domain.ErrAlreadyExists, paper.ID)
		}
		return fmt.Errorf("failed to insert paper: %w", err)
	}
	return nil
}

// Update rewrites an existing paper's metadata.
func (r *SQLitePaperRepository) Update(ctx context.Context, paper *domain.Paper) error {
	if paper == nil {
		return domain.NewValidationError("paper", "paper cannot be nil")
	}

	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return fmt.Errorf("failed to marshal authors: %w", err)
	}
	paper.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE papers SET
			title = ?, authors = ?, abstract = ?, doi = ?, arxiv_id = ?,
			year = ?, venue = ?, citation_count = ?, pdf_path = ?,
			thumbnail_path = ?, updated_at = ?
		WHERE id = ?`,
		paper.Title, string(authorsJSON), paper.Abstract, paper.DOI,
		paper.ArXivID, paper.Year, paper.Venue, paper.CitationCount,
		paper.PDFPath, paper.ThumbnailPath, formatTime(paper.UpdatedAt),
		paper.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update paper: %w", err)
	}
	return requireRowAffected(res, "paper", paper.ID.String())
}

// GetByID retrieves a paper by its UUID.
func (r *SQLitePaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, authors, abstract, doi, arxiv_id, year, venue,
			citation_count, pdf_path, thumbnail_path, narrative_available,
			created_at, updated_at
		FROM papers WHERE id = ?`, id.String())

	paper, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("paper", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	return paper, nil
}

// List retrieves all papers, newest first.
func (r *SQLitePaperRepository) List(ctx context.Context) ([]*domain.Paper, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, authors, abstract, doi, arxiv_id, year, venue,
			citation_count, pdf_path, thumbnail_path, narrative_available,
			created_at, updated_at
		FROM papers ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	var papers []*domain.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate papers: %w", err)
	}
	return papers, nil
}

// Delete removes a paper and its dependent rows.
func (r *SQLitePaperRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM papers WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete paper: %w", err)
	}
	return requireRowAffected(res, "paper", id.String())
}

// MarkNarrativeAvailable flips the paper's narrative flag.
func (r *SQLitePaperRepository) MarkNarrativeAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE papers SET narrative_available = ?, updated_at = ? WHERE id = ?",
		boolToInt(available), formatTime(time.Now().UTC()), id.String())
	if err != nil {
		return fmt.Errorf("failed to update narrative flag: %w", err)
	}
	return requireRowAffected(res, "paper", id.String())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (*domain.Paper, error) {
	var (
		p                    domain.Paper
		id, authorsJSON      string
		narrativeAvailable   int
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &p.Title, &authorsJSON, &p.Abstract, &p.DOI,
		&p.ArXivID, &p.Year, &p.Venue, &p.CitationCount, &p.PDFPath,
		&p.ThumbnailPath, &narrativeAvailable, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid paper id %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(authorsJSON), &p.Authors); err != nil {
		return nil, fmt.Errorf("invalid authors payload: %w", err)
	}
	p.NarrativeAvailable = narrativeAvailable != 0
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func requireRowAffected(res sql.Result, entity, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return domain.NewNotFoundError(entity, id)
	}
	return nil
}

// isUniqueViolation detects SQLite unique constraint failures without
// depending on driver-specific error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
