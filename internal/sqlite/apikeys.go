package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ganot/timecard/internal/duration"
	"github.com/ganot/timecard/internal/repository"
)

// APIKeyRepository resolves bearer tokens to user IDs. Keys are stored as
// SHA-256 hashes; the plaintext never touches the database.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// ResolveUser implements repository.UserResolver.
func (r *APIKeyRepository) ResolveUser(ctx context.Context, token string) (int64, error) {
	var userID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM api_keys WHERE key_hash = ?`, hashToken(token),
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, repository.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve api key: %w", err)
	}
	return userID, nil
}

// Add registers a key for a user.
func (r *APIKeyRepository) Add(ctx context.Context, userID int64, token, description string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, user_id, created_at, description)
		VALUES (?, ?, ?, ?)
	`, hashToken(token), userID, duration.FormatUTC(time.Now()), description)
	if isUniqueViolation(err) {
		return repository.ErrInvalidInput
	}
	if err != nil {
		return fmt.Errorf("failed to add api key: %w", err)
	}
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
