package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ganot/timecard/internal/repository"
)

// TermRepository implements repository.TaxonomyLookup for SQLite.
type TermRepository struct {
	db *DB
}

// NewTermRepository creates a new TermRepository
func NewTermRepository(db *DB) *TermRepository {
	return &TermRepository{db: db}
}

// TermName resolves a term's display name within a taxonomy.
func (r *TermRepository) TermName(ctx context.Context, taxonomy string, id int64) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT name FROM terms WHERE id = ? AND taxonomy = ?`,
		id, taxonomy,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get term name: %w", err)
	}
	return name, nil
}

// CreateTerm registers a term. Taxonomy management is the host system's
// job; this exists for seeding and tests.
func (r *TermRepository) CreateTerm(ctx context.Context, taxonomy, name string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO terms (taxonomy, name) VALUES (?, ?)`, taxonomy, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create term: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read term id: %w", err)
	}
	return id, nil
}
