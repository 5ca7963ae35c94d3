package sqlite

import (
	"context"
	"fmt"

	"github.com/ganot/timecard/internal/domain/timer"
	"github.com/ganot/timecard/internal/repository"
)

// sessionsRepeater is the repeater name holding a task's session rows.
const sessionsRepeater = "sessions"

// sessionFields is the full session row schema. Anything else is rejected
// at this boundary; the legacy store accepted arbitrary keys and the
// resulting duck typing was a steady source of bugs.
var sessionFields = map[string]bool{
	timer.FieldTitle:              true,
	timer.FieldNotes:              true,
	timer.FieldStartTime:          true,
	timer.FieldStopTime:           true,
	timer.FieldManualOverride:     true,
	timer.FieldManualDuration:     true,
	timer.FieldCalculatedDuration: true,
}

// SessionStore implements timer.SessionStore on the repeater-row store.
// Indexes are 0-based here; the row store underneath is 1-based.
type SessionStore struct {
	rows *RowStore
}

// NewSessionStore creates a new SessionStore
func NewSessionStore(rows *RowStore) *SessionStore {
	return &SessionStore{rows: rows}
}

// GetAll returns a task's sessions in index order.
func (s *SessionStore) GetAll(ctx context.Context, taskID int64) ([]timer.Session, error) {
	raw, err := s.rows.GetRows(ctx, sessionsRepeater, taskID)
	if err != nil {
		return nil, err
	}

	sessions := make([]timer.Session, 0, len(raw))
	for i, row := range raw {
		sessions = append(sessions, timer.Session{
			Index:              i,
			Title:              row[timer.FieldTitle],
			Notes:              row[timer.FieldNotes],
			StartTime:          row[timer.FieldStartTime],
			StopTime:           row[timer.FieldStopTime],
			ManualOverride:     row[timer.FieldManualOverride] == "1",
			ManualDuration:     row[timer.FieldManualDuration],
			CalculatedDuration: row[timer.FieldCalculatedDuration],
		})
	}
	return sessions, nil
}

// Count returns the number of session rows.
func (s *SessionStore) Count(ctx context.Context, taskID int64) (int, error) {
	return s.rows.CountRows(ctx, sessionsRepeater, taskID)
}

// Add appends a session row and returns its 0-based index.
func (s *SessionStore) Add(ctx context.Context, taskID int64, sess timer.Session) (int, error) {
	manual := "0"
	if sess.ManualOverride {
		manual = "1"
	}
	row := map[string]string{
		timer.FieldTitle:              sess.Title,
		timer.FieldNotes:              sess.Notes,
		timer.FieldStartTime:          sess.StartTime,
		timer.FieldStopTime:           sess.StopTime,
		timer.FieldManualOverride:     manual,
		timer.FieldManualDuration:     sess.ManualDuration,
		timer.FieldCalculatedDuration: sess.CalculatedDuration,
	}

	position, err := s.rows.AddRow(ctx, sessionsRepeater, row, taskID)
	if err != nil {
		return 0, err
	}
	return position - 1, nil
}

// UpdateField sets one field of an existing session row.
func (s *SessionStore) UpdateField(ctx context.Context, taskID int64, index int, field, value string) error {
	if !sessionFields[field] {
		return fmt.Errorf("%w: %q", repository.ErrUnknownField, field)
	}
	if index < 0 {
		return repository.ErrNotFound
	}
	return s.rows.UpdateSubField(ctx, sessionsRepeater, index+1, field, value, taskID)
}

// Delete removes a session row. Later rows shift down by one index.
func (s *SessionStore) Delete(ctx context.Context, taskID int64, index int) error {
	if index < 0 {
		return repository.ErrNotFound
	}
	return s.rows.DeleteRow(ctx, sessionsRepeater, index+1, taskID)
}
