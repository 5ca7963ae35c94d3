package timer

import "errors"

var (
	// ErrAlreadyRunning indicates a start was rejected because a timer is
	// already running on the task.
	ErrAlreadyRunning = errors.New("timer already running")
	// ErrNoActiveSession indicates a stop found nothing running.
	ErrNoActiveSession = errors.New("no active session")
	// ErrSessionNotFound indicates the addressed session row doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTaskNotFound indicates the task doesn't exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidInput indicates invalid timer input.
	ErrInvalidInput = errors.New("invalid timer input")
	// ErrMoveFailed indicates a cross-task move did not complete. The source
	// delete runs last, so a partial move duplicates the session rather than
	// losing it.
	ErrMoveFailed = errors.New("move session failed")
)
