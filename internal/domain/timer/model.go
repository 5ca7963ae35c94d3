package timer

import "github.com/ganot/timecard/internal/duration"

// Session field names accepted by the session store. The adapter rejects
// anything outside this set.
const (
	FieldTitle              = "title"
	FieldNotes              = "notes"
	FieldStartTime          = "start_time"
	FieldStopTime           = "stop_time"
	FieldManualOverride     = "manual_override"
	FieldManualDuration     = "manual_duration"
	FieldCalculatedDuration = "calculated_duration"
)

// Task field names used by the timer and report services.
const (
	TaskFieldTitle              = "title"
	TaskFieldAssignee           = "assignee_user_id"
	TaskFieldStatus             = "status_id"
	TaskFieldClient             = "client_id"
	TaskFieldProject            = "project_id"
	TaskFieldBudgetHours        = "budget_hours"
	TaskFieldCalculatedDuration = "calculated_duration"
	TaskFieldManualOverride     = "manual_override"
	TaskFieldManualDuration     = "manual_duration"
	TaskFieldStartTime          = "start_time"
	TaskFieldStopTime           = "stop_time"
	TaskFieldCreatedAt          = "created_at"
)

// SessionState is the server-observable state of a session, derived from its
// fields rather than stored.
type SessionState string

const (
	StateNotStarted SessionState = "not_started"
	StateRunning    SessionState = "running"
	StateStopped    SessionState = "stopped"
)

// Session is one contiguous or manually entered span of tracked time within
// a task. Index is 0-based and stable only until a row is deleted.
type Session struct {
	Index              int    `json:"index"`
	Title              string `json:"title"`
	Notes              string `json:"notes"`
	StartTime          string `json:"start_time"`
	StopTime           string `json:"stop_time"`
	ManualOverride     bool   `json:"manual_override"`
	ManualDuration     string `json:"manual_duration"`
	CalculatedDuration string `json:"calculated_duration"`
}

// State derives the lifecycle state. Stopped is terminal; resuming work
// means creating a new session.
func (s *Session) State() SessionState {
	switch {
	case s.StartTime == "":
		return StateNotStarted
	case s.StopTime == "":
		return StateRunning
	default:
		return StateStopped
	}
}

// IsRunning reports whether the session is accruing time. Manual entries
// never run regardless of their timestamps.
func (s *Session) IsRunning() bool {
	return !s.ManualOverride && s.StartTime != "" && s.StopTime == ""
}

// Span extracts the raw duration-bearing fields.
func (s *Session) Span() duration.Span {
	return duration.Span{
		Start:       s.StartTime,
		Stop:        s.StopTime,
		Manual:      s.ManualOverride,
		ManualHours: s.ManualDuration,
	}
}

// Task carries the timer-relevant fields of a task. The legacy start/stop
// pair predates session rows; when sessions exist they take precedence for
// the cached total.
type Task struct {
	ID                 int64  `json:"id"`
	Title              string `json:"title"`
	AssigneeUserID     int64  `json:"assignee_user_id"`
	StatusID           int64  `json:"status_id"`
	ClientID           int64  `json:"client_id"`
	ProjectID          int64  `json:"project_id"`
	BudgetHours        string `json:"budget_hours"`
	CalculatedDuration string `json:"calculated_duration"`
	ManualOverride     bool   `json:"manual_override"`
	ManualDuration     string `json:"manual_duration"`
	StartTime          string `json:"start_time"`
	StopTime           string `json:"stop_time"`
	CreatedAt          string `json:"created_at"`
}

// ActiveSession locates a user's running session.
type ActiveSession struct {
	TaskID    int64  `json:"task_id"`
	Index     int    `json:"session_index"`
	StartTime string `json:"start_utc"`
}

// Status is the rehydration payload for a client reconnecting mid-timer.
type Status struct {
	Running   bool   `json:"running"`
	TaskID    int64  `json:"task_id,omitempty"`
	Index     int    `json:"session_index,omitempty"`
	StartTime string `json:"start_utc,omitempty"`
}

// Marker is the denormalized active-timer indicator kept for fast admin
// display. It is a cache with explicit invalidation, never authoritative;
// the authoritative answer is FindActiveSessionForUser.
type Marker struct {
	UserID    int64
	TaskID    int64
	IsRunning bool
}
