package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ganot/timecard/internal/domain/timer"
	"github.com/ganot/timecard/internal/duration"
	"github.com/ganot/timecard/internal/repository"
)

// MarkerRepository implements timer.MarkerStore for SQLite. Markers are a
// denormalized indicator for the admin task list; the timer service treats
// them as a cache and never reads them for decisions.
type MarkerRepository struct {
	db *DB
}

// NewMarkerRepository creates a new MarkerRepository
func NewMarkerRepository(db *DB) *MarkerRepository {
	return &MarkerRepository{db: db}
}

// Set records which task a user is currently timing.
func (r *MarkerRepository) Set(ctx context.Context, userID, taskID int64, running bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO timer_markers (user_id, task_id, is_running, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			task_id = excluded.task_id,
			is_running = excluded.is_running,
			updated_at = excluded.updated_at
	`, userID, taskID, boolToInt(running), duration.FormatUTC(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to set timer marker: %w", err)
	}
	return nil
}

// Clear invalidates a user's marker.
func (r *MarkerRepository) Clear(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE timer_markers SET is_running = 0, updated_at = ? WHERE user_id = ?
	`, duration.FormatUTC(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("failed to clear timer marker: %w", err)
	}
	return nil
}

// Get reads a user's marker.
func (r *MarkerRepository) Get(ctx context.Context, userID int64) (*timer.Marker, error) {
	var marker timer.Marker
	var running int
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, task_id, is_running FROM timer_markers WHERE user_id = ?`,
		userID,
	).Scan(&marker.UserID, &marker.TaskID, &running)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get timer marker: %w", err)
	}
	marker.IsRunning = running == 1
	return &marker, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
