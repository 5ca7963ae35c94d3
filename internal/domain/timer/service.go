package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ganot/timecard/internal/duration"
	"github.com/ganot/timecard/internal/repository"
)

// Service enforces the timer invariants: at most one running session per
// user across all tasks, monotonic cached durations, and UTC timestamp
// arithmetic. All state lives in the stores; the service itself only holds
// advisory per-user locks.
type Service struct {
	sessions SessionStore
	tasks    TaskRepository
	markers  MarkerStore
	clock    Clock
	locks    *userLocks
	logger   *slog.Logger
}

// NewService creates a new timer service.
func NewService(
	sessions SessionStore,
	tasks TaskRepository,
	markers MarkerStore,
	clock Clock,
	logger *slog.Logger,
) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions: sessions,
		tasks:    tasks,
		markers:  markers,
		clock:    clock,
		locks:    newUserLocks(),
		logger:   logger,
	}
}

// ManualSessionRequest describes a hand-entered session row.
type ManualSessionRequest struct {
	Title          string
	Notes          string
	StartTime      string
	StopTime       string
	ManualOverride bool
	ManualDuration string
}

// StartSession starts the timer on a task by appending a running session
// row. If the user already has a running session on any task it is stopped
// first, under the user's lock, so two concurrent starts cannot both
// observe an idle user.
func (s *Service) StartSession(ctx context.Context, userID, taskID int64, title string) (*Session, error) {
	lock := s.locks.forUser(userID)
	lock.Lock()
	defer lock.Unlock()

	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	// Parent-level guard: an unterminated legacy timer on the task itself
	// blocks session starts until it is stopped or force-stopped.
	if task.StartTime != "" && task.StopTime == "" {
		return nil, ErrAlreadyRunning
	}

	active, err := s.findActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		if active.TaskID == taskID {
			return nil, ErrAlreadyRunning
		}
		if _, err := s.stopActive(ctx, userID, active.TaskID); err != nil {
			return nil, fmt.Errorf("stopping previous session: %w", err)
		}
	}

	sess := Session{
		Title:     title,
		StartTime: duration.FormatUTC(s.clock.NowUTC()),
	}
	index, err := s.sessions.Add(ctx, taskID, sess)
	if err != nil {
		return nil, fmt.Errorf("adding session: %w", err)
	}
	sess.Index = index

	s.setMarker(ctx, userID, taskID, true)
	return &sess, nil
}

// StopActiveSession stops the most recently started running session on the
// task and recomputes the session and task durations.
func (s *Service) StopActiveSession(ctx context.Context, userID, taskID int64) (*Session, error) {
	lock := s.locks.forUser(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.stopActive(ctx, userID, taskID)
}

func (s *Service) stopActive(ctx context.Context, userID, taskID int64) (*Session, error) {
	rows, err := s.getRows(ctx, taskID)
	if err != nil {
		return nil, err
	}

	// Reverse scan: the last started row wins when data is inconsistent.
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].IsRunning() {
			return s.stopRow(ctx, userID, taskID, rows[i])
		}
	}
	return nil, ErrNoActiveSession
}

// ForceStop is the manual-recovery escape hatch. It stamps stop_time on the
// last row that ever started, without requiring it to look running, and
// falls back to the legacy task-level pair when no session rows exist.
func (s *Service) ForceStop(ctx context.Context, userID, taskID int64) (*Session, error) {
	lock := s.locks.forUser(userID)
	lock.Lock()
	defer lock.Unlock()

	rows, err := s.getRows(ctx, taskID)
	if err != nil {
		return nil, err
	}
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].StartTime != "" {
			return s.stopRow(ctx, userID, taskID, rows[i])
		}
	}

	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.StartTime == "" {
		return nil, ErrNoActiveSession
	}
	return s.stopLegacy(ctx, userID, task)
}

func (s *Service) stopRow(ctx context.Context, userID, taskID int64, row Session) (*Session, error) {
	row.StopTime = duration.FormatUTC(s.clock.NowUTC())
	if err := s.sessions.UpdateField(ctx, taskID, row.Index, FieldStopTime, row.StopTime); err != nil {
		return nil, fmt.Errorf("setting stop time: %w", err)
	}

	hours, calcErr := duration.SessionHours(row.Span())
	s.logParseFailure(calcErr, taskID, row.Index)
	row.CalculatedDuration = hours
	if err := s.sessions.UpdateField(ctx, taskID, row.Index, FieldCalculatedDuration, hours); err != nil {
		return nil, fmt.Errorf("caching session duration: %w", err)
	}

	if _, err := s.RecalculateOnSave(ctx, taskID); err != nil {
		return nil, err
	}

	s.clearMarker(ctx, userID)
	return &row, nil
}

// StartTimer starts the legacy task-level timer.
func (s *Service) StartTimer(ctx context.Context, userID, taskID int64) (*Task, error) {
	lock := s.locks.forUser(userID)
	lock.Lock()
	defer lock.Unlock()

	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.StartTime != "" && task.StopTime == "" {
		return nil, ErrAlreadyRunning
	}

	now := duration.FormatUTC(s.clock.NowUTC())
	if err := s.tasks.UpdateField(ctx, taskID, TaskFieldStartTime, now); err != nil {
		return nil, fmt.Errorf("setting start time: %w", err)
	}
	if err := s.tasks.UpdateField(ctx, taskID, TaskFieldStopTime, ""); err != nil {
		return nil, fmt.Errorf("clearing stop time: %w", err)
	}
	task.StartTime = now
	task.StopTime = ""

	s.setMarker(ctx, userID, taskID, true)
	return task, nil
}

// StopTimer stops the legacy task-level timer.
func (s *Service) StopTimer(ctx context.Context, userID, taskID int64) (*Task, error) {
	lock := s.locks.forUser(userID)
	lock.Lock()
	defer lock.Unlock()

	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.StartTime == "" || task.StopTime != "" {
		return nil, ErrNoActiveSession
	}
	if _, err := s.stopLegacy(ctx, userID, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) stopLegacy(ctx context.Context, userID int64, task *Task) (*Session, error) {
	task.StopTime = duration.FormatUTC(s.clock.NowUTC())
	if err := s.tasks.UpdateField(ctx, task.ID, TaskFieldStopTime, task.StopTime); err != nil {
		return nil, fmt.Errorf("setting stop time: %w", err)
	}

	total, calcErr := duration.LegacyTaskHours(task.StartTime, task.StopTime, task.ManualOverride, task.ManualDuration, nil)
	s.logParseFailure(calcErr, task.ID, -1)
	if err := s.tasks.UpdateField(ctx, task.ID, TaskFieldCalculatedDuration, total); err != nil {
		return nil, fmt.Errorf("caching task duration: %w", err)
	}
	task.CalculatedDuration = total

	s.clearMarker(ctx, userID)
	return &Session{
		Index:              -1,
		StartTime:          task.StartTime,
		StopTime:           task.StopTime,
		CalculatedDuration: total,
	}, nil
}

// FindActiveSessionForUser scans the user's tasks in ascending ID order and
// each task's sessions in index order, returning the first running session.
// This computed answer is the single source of truth for "is the user
// timing"; the marker cache only mirrors it.
func (s *Service) FindActiveSessionForUser(ctx context.Context, userID int64) (*ActiveSession, error) {
	return s.findActive(ctx, userID)
}

func (s *Service) findActive(ctx context.Context, userID int64) (*ActiveSession, error) {
	taskIDs, err := s.tasks.TasksForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks for user: %w", err)
	}
	for _, taskID := range taskIDs {
		rows, err := s.sessions.GetAll(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("loading sessions for task %d: %w", taskID, err)
		}
		for _, row := range rows {
			if row.IsRunning() {
				return &ActiveSession{
					TaskID:    taskID,
					Index:     row.Index,
					StartTime: row.StartTime,
				}, nil
			}
		}
	}
	return nil, nil
}

// Rehydrate reports the user's current running status for a client
// recovering after a reload.
func (s *Service) Rehydrate(ctx context.Context, userID int64) (*Status, error) {
	active, err := s.findActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return &Status{Running: false}, nil
	}
	return &Status{
		Running:   true,
		TaskID:    active.TaskID,
		Index:     active.Index,
		StartTime: active.StartTime,
	}, nil
}

// MoveSession relocates a session row to another task. The append runs
// before the source delete so a partial failure duplicates the session
// instead of losing it; both tasks are then recomputed.
func (s *Service) MoveSession(ctx context.Context, userID, sourceTaskID int64, index int, targetTaskID int64) (int, error) {
	if sourceTaskID == targetTaskID {
		return 0, ErrInvalidInput
	}

	lock := s.locks.forUser(userID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.getTask(ctx, targetTaskID); err != nil {
		return 0, err
	}

	rows, err := s.getRows(ctx, sourceTaskID)
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= len(rows) {
		return 0, ErrSessionNotFound
	}
	moved := rows[index]

	newIndex, err := s.sessions.Add(ctx, targetTaskID, moved)
	if err != nil {
		return 0, fmt.Errorf("%w: appending to task %d: %w", ErrMoveFailed, targetTaskID, err)
	}

	if err := s.sessions.Delete(ctx, sourceTaskID, index); err != nil {
		// The row now exists in both tasks. Duplication is the safe failure
		// direction; surface it and let the operator reconcile.
		s.logger.Warn("move left a duplicated session",
			"source_task", sourceTaskID, "target_task", targetTaskID, "index", index)
		return 0, fmt.Errorf("%w: deleting source row: %w", ErrMoveFailed, err)
	}

	if _, err := s.RecalculateOnSave(ctx, sourceTaskID); err != nil {
		return 0, err
	}
	if _, err := s.RecalculateOnSave(ctx, targetTaskID); err != nil {
		return 0, err
	}

	if moved.IsRunning() {
		s.setMarker(ctx, userID, targetTaskID, true)
	}
	return newIndex, nil
}

// AddManualSession appends a hand-entered row and recomputes the task.
func (s *Service) AddManualSession(ctx context.Context, taskID int64, req ManualSessionRequest) (*Session, error) {
	if req.ManualOverride && req.ManualDuration == "" {
		return nil, ErrInvalidInput
	}
	if !req.ManualOverride && (req.StartTime == "" || req.StopTime == "") {
		return nil, ErrInvalidInput
	}

	if _, err := s.getTask(ctx, taskID); err != nil {
		return nil, err
	}

	sess := Session{
		Title:          req.Title,
		Notes:          req.Notes,
		StartTime:      req.StartTime,
		StopTime:       req.StopTime,
		ManualOverride: req.ManualOverride,
		ManualDuration: req.ManualDuration,
	}
	hours, calcErr := duration.SessionHours(sess.Span())
	s.logParseFailure(calcErr, taskID, -1)
	sess.CalculatedDuration = hours

	index, err := s.sessions.Add(ctx, taskID, sess)
	if err != nil {
		return nil, fmt.Errorf("adding session: %w", err)
	}
	sess.Index = index

	if _, err := s.RecalculateOnSave(ctx, taskID); err != nil {
		return nil, err
	}
	return &sess, nil
}

// UpdateSessionField edits a single session field and recomputes durations.
func (s *Service) UpdateSessionField(ctx context.Context, taskID int64, index int, field, value string) error {
	if err := s.sessions.UpdateField(ctx, taskID, index, field, value); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("updating session field: %w", err)
	}
	_, err := s.RecalculateOnSave(ctx, taskID)
	return err
}

// DeleteSession removes a row and recomputes the task. Subsequent indexes
// shift down by one.
func (s *Service) DeleteSession(ctx context.Context, taskID int64, index int) error {
	if err := s.sessions.Delete(ctx, taskID, index); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("deleting session: %w", err)
	}
	_, err := s.RecalculateOnSave(ctx, taskID)
	return err
}

// RecalculateOnSave recomputes every session row's cached duration from raw
// fields, then writes the task total once at the end. Readers never observe
// a partially recalculated total.
func (s *Service) RecalculateOnSave(ctx context.Context, taskID int64) (string, error) {
	rows, err := s.getRows(ctx, taskID)
	if err != nil {
		return "", err
	}

	spans := make([]duration.Span, 0, len(rows))
	for _, row := range rows {
		span := row.Span()
		spans = append(spans, span)

		hours, calcErr := duration.SessionHours(span)
		s.logParseFailure(calcErr, taskID, row.Index)
		if hours == row.CalculatedDuration {
			continue
		}
		if err := s.sessions.UpdateField(ctx, taskID, row.Index, FieldCalculatedDuration, hours); err != nil {
			return "", fmt.Errorf("caching session duration: %w", err)
		}
	}

	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	total, calcErr := duration.LegacyTaskHours(task.StartTime, task.StopTime, task.ManualOverride, task.ManualDuration, spans)
	s.logParseFailure(calcErr, taskID, -1)

	if err := s.tasks.UpdateField(ctx, taskID, TaskFieldCalculatedDuration, total); err != nil {
		return "", fmt.Errorf("caching task duration: %w", err)
	}
	return total, nil
}

func (s *Service) getTask(ctx context.Context, taskID int64) (*Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("loading task: %w", err)
	}
	return task, nil
}

func (s *Service) getRows(ctx context.Context, taskID int64) ([]Session, error) {
	rows, err := s.sessions.GetAll(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	return rows, nil
}

// Marker writes are best effort. The cache carries no authority, so a failed
// write is logged and ignored rather than failing the timer operation.
func (s *Service) setMarker(ctx context.Context, userID, taskID int64, running bool) {
	if s.markers == nil {
		return
	}
	if err := s.markers.Set(ctx, userID, taskID, running); err != nil {
		s.logger.Warn("updating active-timer marker", "user", userID, "error", err)
	}
}

func (s *Service) clearMarker(ctx context.Context, userID int64) {
	if s.markers == nil {
		return
	}
	if err := s.markers.Clear(ctx, userID); err != nil {
		s.logger.Warn("clearing active-timer marker", "user", userID, "error", err)
	}
}

func (s *Service) logParseFailure(err error, taskID int64, index int) {
	if err == nil {
		return
	}
	// Legacy contract: the computed value is already 0.00, the caller still
	// gets a number. Log so the bad row is findable.
	s.logger.Warn("timestamp parse failure treated as zero duration",
		"task", taskID, "index", index, "error", err)
}
