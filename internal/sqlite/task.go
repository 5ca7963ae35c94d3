package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/ganot/timecard/internal/domain/timer"
	"github.com/ganot/timecard/internal/repository"
)

// taskFields is the task-level field schema.
var taskFields = map[string]bool{
	timer.TaskFieldTitle:              true,
	timer.TaskFieldAssignee:           true,
	timer.TaskFieldStatus:             true,
	timer.TaskFieldClient:             true,
	timer.TaskFieldProject:            true,
	timer.TaskFieldBudgetHours:        true,
	timer.TaskFieldCalculatedDuration: true,
	timer.TaskFieldManualOverride:     true,
	timer.TaskFieldManualDuration:     true,
	timer.TaskFieldStartTime:          true,
	timer.TaskFieldStopTime:           true,
}

// TaskRepository implements timer.TaskRepository and report.TaskRepository
// on the task registry and scalar field store.
type TaskRepository struct {
	db   *DB
	rows *RowStore
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *DB, rows *RowStore) *TaskRepository {
	return &TaskRepository{db: db, rows: rows}
}

// Create registers a task and writes its initial fields. Task CRUD proper
// belongs to the host system; this exists for seeding and tests.
func (r *TaskRepository) Create(ctx context.Context, task *timer.Task) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (created_at) VALUES (?)`, task.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read task id: %w", err)
	}
	task.ID = id

	fields := map[string]string{
		timer.TaskFieldTitle:              task.Title,
		timer.TaskFieldAssignee:           formatID(task.AssigneeUserID),
		timer.TaskFieldStatus:             formatID(task.StatusID),
		timer.TaskFieldClient:             formatID(task.ClientID),
		timer.TaskFieldProject:            formatID(task.ProjectID),
		timer.TaskFieldBudgetHours:        task.BudgetHours,
		timer.TaskFieldCalculatedDuration: task.CalculatedDuration,
		timer.TaskFieldManualOverride:     formatBool(task.ManualOverride),
		timer.TaskFieldManualDuration:     task.ManualDuration,
		timer.TaskFieldStartTime:          task.StartTime,
		timer.TaskFieldStopTime:           task.StopTime,
	}
	for name, value := range fields {
		if err := r.rows.UpdateField(ctx, name, value, id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// Get loads a task and its timer-relevant fields.
func (r *TaskRepository) Get(ctx context.Context, id int64) (*timer.Task, error) {
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT created_at FROM tasks WHERE id = ?`, id).Scan(&createdAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT name, value FROM task_fields WHERE task_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get task fields: %w", err)
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan task field: %w", err)
		}
		fields[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task fields: %w", err)
	}

	return &timer.Task{
		ID:                 id,
		Title:              fields[timer.TaskFieldTitle],
		AssigneeUserID:     parseID(fields[timer.TaskFieldAssignee]),
		StatusID:           parseID(fields[timer.TaskFieldStatus]),
		ClientID:           parseID(fields[timer.TaskFieldClient]),
		ProjectID:          parseID(fields[timer.TaskFieldProject]),
		BudgetHours:        fields[timer.TaskFieldBudgetHours],
		CalculatedDuration: fields[timer.TaskFieldCalculatedDuration],
		ManualOverride:     fields[timer.TaskFieldManualOverride] == "1",
		ManualDuration:     fields[timer.TaskFieldManualDuration],
		StartTime:          fields[timer.TaskFieldStartTime],
		StopTime:           fields[timer.TaskFieldStopTime],
		CreatedAt:          createdAt,
	}, nil
}

// UpdateField sets one scalar task field.
func (r *TaskRepository) UpdateField(ctx context.Context, taskID int64, field, value string) error {
	if !taskFields[field] {
		return fmt.Errorf("%w: %q", repository.ErrUnknownField, field)
	}
	if err := r.exists(ctx, taskID); err != nil {
		return err
	}
	return r.rows.UpdateField(ctx, field, value, taskID)
}

// TasksForUser returns the IDs of tasks assigned to a user, ascending. The
// scan order of FindActiveSessionForUser depends on this ordering.
func (r *TaskRepository) TasksForUser(ctx context.Context, userID int64) ([]int64, error) {
	return r.tasksByField(ctx, timer.TaskFieldAssignee, userID)
}

// TasksForClient returns the IDs of tasks belonging to a client, ascending.
func (r *TaskRepository) TasksForClient(ctx context.Context, clientID int64) ([]int64, error) {
	return r.tasksByField(ctx, timer.TaskFieldClient, clientID)
}

func (r *TaskRepository) tasksByField(ctx context.Context, name string, id int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT task_id FROM task_fields
		WHERE name = ? AND value = ?
		ORDER BY task_id ASC
	`, name, formatID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by %s: %w", name, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var taskID int64
		if err := rows.Scan(&taskID); err != nil {
			return nil, fmt.Errorf("failed to scan task id: %w", err)
		}
		ids = append(ids, taskID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task ids: %w", err)
	}
	return ids, nil
}

func (r *TaskRepository) exists(ctx context.Context, taskID int64) error {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM tasks WHERE id = ?`, taskID).Scan(&one)
	if err == sql.ErrNoRows {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check task: %w", err)
	}
	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseID(value string) int64 {
	id, _ := strconv.ParseInt(value, 10, 64)
	return id
}
