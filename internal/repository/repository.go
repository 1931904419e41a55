// Package repository provides data access interfaces and implementations
// for the narrative service.
//
// # Overview
//
// This package defines repository interfaces and their SQLite implementations
// following the repository pattern to abstract data persistence from business logic.
//
// # Repository Interfaces
//
//   - PaperRepository: Manages paper records and the narrative availability flag
//   - NarrativeRepository: Manages generated narratives keyed by (paper, style, language)
//   - AssetRepository: Manages extracted full text, figures, and formulas
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple
// goroutines. The underlying database/sql pool handles synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Wrap database errors with context using fmt.Errorf with %w verb.
// Common errors include:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrAlreadyExists: Unique constraint violation
//   - domain.ErrInvalidInput: Invalid parameters provided
//
// # Usage Pattern
//
// Repositories are typically created at application startup and passed to services:
//
//	db, _ := database.Open(ctx, cfg.Database, logger)
//	paperRepo := repository.NewSQLitePaperRepository(db.Conn())
//	narrativeRepo := repository.NewSQLiteNarrativeRepository(db.Conn())
//	assetRepo := repository.NewSQLiteAssetRepository(db.Conn())
package repository

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by repositories. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
