package report

import (
	"context"

	"github.com/ganot/timecard/internal/domain/timer"
)

// SessionStore provides read access to a task's session rows.
type SessionStore interface {
	GetAll(ctx context.Context, taskID int64) ([]timer.Session, error)
}

// TaskRepository provides task access for report grouping.
type TaskRepository interface {
	Get(ctx context.Context, id int64) (*timer.Task, error)
	TasksForUser(ctx context.Context, userID int64) ([]int64, error)
	TasksForClient(ctx context.Context, clientID int64) ([]int64, error)
}

// TaxonomyLookup resolves term names for grouping.
type TaxonomyLookup interface {
	TermName(ctx context.Context, taxonomy string, id int64) (string, error)
}
