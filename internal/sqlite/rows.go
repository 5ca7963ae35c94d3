package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ganot/timecard/internal/repository"
)

// RowStore implements repository.RowStore over the task_fields and
// task_rows tables. Row indexes are 1-based at this layer, matching the
// legacy field store; the session store above it translates to 0-based.
type RowStore struct {
	db *DB
}

// NewRowStore creates a new RowStore
func NewRowStore(db *DB) *RowStore {
	return &RowStore{db: db}
}

// GetField returns a scalar task field. A missing field reads as empty,
// like the legacy store.
func (r *RowStore) GetField(ctx context.Context, name string, taskID int64) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM task_fields WHERE task_id = ? AND name = ?`,
		taskID, name,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get field %s: %w", name, err)
	}
	return value, nil
}

// UpdateField upserts a scalar task field.
func (r *RowStore) UpdateField(ctx context.Context, name, value string, taskID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_fields (task_id, name, value) VALUES (?, ?, ?)
		ON CONFLICT(task_id, name) DO UPDATE SET value = excluded.value
	`, taskID, name, value)
	if isForeignKeyViolation(err) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update field %s: %w", name, err)
	}
	return nil
}

// CountRows returns the number of rows in a repeater.
func (r *RowStore) CountRows(ctx context.Context, repeater string, taskID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM task_rows WHERE task_id = ? AND repeater = ?`,
		taskID, repeater,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return count, nil
}

// GetRows returns every row of a repeater in position order, each as a
// field-name to value map.
func (r *RowStore) GetRows(ctx context.Context, repeater string, taskID int64) ([]map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT position, field, value
		FROM task_rows
		WHERE task_id = ? AND repeater = ?
		ORDER BY position ASC
	`, taskID, repeater)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	defer rows.Close()

	byPosition := make(map[int]map[string]string)
	maxPosition := 0
	for rows.Next() {
		var position int
		var field, value string
		if err := rows.Scan(&position, &field, &value); err != nil {
			return nil, fmt.Errorf("failed to scan row field: %w", err)
		}
		if byPosition[position] == nil {
			byPosition[position] = make(map[string]string)
		}
		byPosition[position][field] = value
		if position > maxPosition {
			maxPosition = position
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	result := make([]map[string]string, 0, maxPosition)
	for position := 1; position <= maxPosition; position++ {
		row := byPosition[position]
		if row == nil {
			row = make(map[string]string)
		}
		result = append(result, row)
	}
	return result, nil
}

// AddRow appends a row to a repeater and returns its 1-based position.
func (r *RowStore) AddRow(ctx context.Context, repeater string, row map[string]string, taskID int64) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var position int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM task_rows WHERE task_id = ? AND repeater = ?`,
		taskID, repeater,
	).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate row position: %w", err)
	}

	for field, value := range row {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO task_rows (task_id, repeater, position, field, value)
			VALUES (?, ?, ?, ?, ?)
		`, taskID, repeater, position, field, value); err != nil {
			if isForeignKeyViolation(err) {
				return 0, repository.ErrNotFound
			}
			return 0, fmt.Errorf("failed to add row field %s: %w", field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit row: %w", err)
	}
	return position, nil
}

// UpdateSubField sets one field of an existing row.
func (r *RowStore) UpdateSubField(ctx context.Context, repeater string, index1 int, field, value string, taskID int64) error {
	count, err := r.CountRows(ctx, repeater, taskID)
	if err != nil {
		return err
	}
	if index1 < 1 || index1 > count {
		return repository.ErrNotFound
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO task_rows (task_id, repeater, position, field, value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(task_id, repeater, position, field) DO UPDATE SET value = excluded.value
	`, taskID, repeater, index1, field, value)
	if err != nil {
		return fmt.Errorf("failed to update sub field %s: %w", field, err)
	}
	return nil
}

// DeleteRow removes a row and shifts the positions after it down by one.
func (r *RowStore) DeleteRow(ctx context.Context, repeater string, index1 int, taskID int64) error {
	count, err := r.CountRows(ctx, repeater, taskID)
	if err != nil {
		return err
	}
	if index1 < 1 || index1 > count {
		return repository.ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM task_rows WHERE task_id = ? AND repeater = ? AND position = ?`,
		taskID, repeater, index1,
	); err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}

	// Two-step shift through negated positions so the primary key never
	// collides mid-update.
	if _, err := tx.ExecContext(ctx, `
		UPDATE task_rows SET position = -(position - 1)
		WHERE task_id = ? AND repeater = ? AND position > ?
	`, taskID, repeater, index1); err != nil {
		return fmt.Errorf("failed to shift rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE task_rows SET position = -position
		WHERE task_id = ? AND repeater = ? AND position < 0
	`, taskID, repeater); err != nil {
		return fmt.Errorf("failed to restore row positions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}
