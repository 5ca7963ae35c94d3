package mocks

import (
	"context"

	"github.com/ganot/timecard/internal/domain/timer"
	"github.com/stretchr/testify/mock"
)

// SessionStore is a mock for timer.SessionStore.
type SessionStore struct {
	mock.Mock
}

func (m *SessionStore) GetAll(ctx context.Context, taskID int64) ([]timer.Session, error) {
	args := m.Called(ctx, taskID)
	if rows, ok := args.Get(0).([]timer.Session); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionStore) Count(ctx context.Context, taskID int64) (int, error) {
	args := m.Called(ctx, taskID)
	return args.Int(0), args.Error(1)
}

func (m *SessionStore) Add(ctx context.Context, taskID int64, sess timer.Session) (int, error) {
	args := m.Called(ctx, taskID, sess)
	return args.Int(0), args.Error(1)
}

func (m *SessionStore) UpdateField(ctx context.Context, taskID int64, index int, field, value string) error {
	args := m.Called(ctx, taskID, index, field, value)
	return args.Error(0)
}

func (m *SessionStore) Delete(ctx context.Context, taskID int64, index int) error {
	args := m.Called(ctx, taskID, index)
	return args.Error(0)
}

// TaskRepository is a mock for timer.TaskRepository.
type TaskRepository struct {
	mock.Mock
}

func (m *TaskRepository) Get(ctx context.Context, id int64) (*timer.Task, error) {
	args := m.Called(ctx, id)
	if task, ok := args.Get(0).(*timer.Task); ok {
		return task, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) UpdateField(ctx context.Context, taskID int64, field, value string) error {
	args := m.Called(ctx, taskID, field, value)
	return args.Error(0)
}

func (m *TaskRepository) TasksForUser(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	if ids, ok := args.Get(0).([]int64); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) TasksForClient(ctx context.Context, clientID int64) ([]int64, error) {
	args := m.Called(ctx, clientID)
	if ids, ok := args.Get(0).([]int64); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkerStore is a mock for timer.MarkerStore.
type MarkerStore struct {
	mock.Mock
}

func (m *MarkerStore) Set(ctx context.Context, userID, taskID int64, running bool) error {
	args := m.Called(ctx, userID, taskID, running)
	return args.Error(0)
}

func (m *MarkerStore) Clear(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MarkerStore) Get(ctx context.Context, userID int64) (*timer.Marker, error) {
	args := m.Called(ctx, userID)
	if marker, ok := args.Get(0).(*timer.Marker); ok {
		return marker, args.Error(1)
	}
	return nil, args.Error(1)
}

// TaxonomyLookup is a mock for repository.TaxonomyLookup.
type TaxonomyLookup struct {
	mock.Mock
}

func (m *TaxonomyLookup) TermName(ctx context.Context, taxonomy string, id int64) (string, error) {
	args := m.Called(ctx, taxonomy, id)
	return args.String(0), args.Error(1)
}
