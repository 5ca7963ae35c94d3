package report

// Taxonomies used for report grouping.
const (
	TaxonomyStatus  = "status"
	TaxonomyClient  = "client"
	TaxonomyProject = "project"
)

// Entry is one reportable session occurrence.
type Entry struct {
	TaskID       int64  `json:"task_id"`
	TaskTitle    string `json:"task_title"`
	SessionIndex int    `json:"session_index"`
	SessionTitle string `json:"session_title"`
	Notes        string `json:"notes,omitempty"`
	StartTime    string `json:"start_time,omitempty"`
	StopTime     string `json:"stop_time,omitempty"`
	Seconds      int64  `json:"duration_seconds"`
	Running      bool   `json:"running,omitempty"`
	Status       string `json:"status,omitempty"`
	Client       string `json:"client,omitempty"`
	Project      string `json:"project,omitempty"`
}

// Filters narrows daily entries by term. Zero means no filter.
type Filters struct {
	StatusID  int64
	ClientID  int64
	ProjectID int64
}

// TaskSummary aggregates one task's contribution to a client summary.
type TaskSummary struct {
	TaskID  int64  `json:"task_id"`
	Title   string `json:"title"`
	Hours   string `json:"hours"`
	Seconds int64  `json:"seconds_in_range"`
}

// ClientSummary is the monthly report payload for one client.
type ClientSummary struct {
	Tasks      []TaskSummary `json:"tasks_summary"`
	Entries    []Entry       `json:"session_entries"`
	Seconds    int64         `json:"month_total_seconds"`
	MonthTotal string        `json:"month_total"`
}
