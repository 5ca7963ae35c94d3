package timer

import (
	"context"
	"time"
)

// SessionStore provides ordered, 0-indexed access to a task's session rows.
// Deleting a row shifts subsequent indexes down by one; callers must not
// cache indexes across a delete.
type SessionStore interface {
	GetAll(ctx context.Context, taskID int64) ([]Session, error)
	Count(ctx context.Context, taskID int64) (int, error)
	Add(ctx context.Context, taskID int64, sess Session) (int, error)
	UpdateField(ctx context.Context, taskID int64, index int, field, value string) error
	Delete(ctx context.Context, taskID int64, index int) error
}

// TaskRepository provides task field access and assignment lookup.
type TaskRepository interface {
	Get(ctx context.Context, id int64) (*Task, error)
	UpdateField(ctx context.Context, taskID int64, field, value string) error
	TasksForUser(ctx context.Context, userID int64) ([]int64, error)
}

// MarkerStore persists the denormalized active-timer indicator cache.
type MarkerStore interface {
	Set(ctx context.Context, userID, taskID int64, running bool) error
	Clear(ctx context.Context, userID int64) error
	Get(ctx context.Context, userID int64) (*Marker, error)
}

// Clock abstracts time for testability.
type Clock interface {
	NowUTC() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) NowUTC() time.Time {
	return time.Now().UTC()
}
