package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ganot/timecard/internal/domain/report"
	"github.com/ganot/timecard/internal/domain/timer"
	"github.com/ganot/timecard/internal/testserver"
)

type client struct {
	t  *testing.T
	ts *testserver.TestServer
}

func (c *client) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.ts.Server.URL+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Authorization", "Bearer "+c.ts.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, data
}

func seedTask(t *testing.T, ts *testserver.TestServer, task *timer.Task) int64 {
	t.Helper()
	if task.AssigneeUserID == 0 {
		task.AssigneeUserID = ts.UserID
	}
	if task.CreatedAt == "" {
		task.CreatedAt = "2025-07-01 09:00:00"
	}
	id, err := ts.Tasks.Create(context.Background(), task)
	require.NoError(t, err)
	return id
}

// TestWorkday drives a full tracked day over HTTP: timer on one task, a
// switch to another, a hand-entered correction, a session moved between
// tasks, then the reports that bill for it all.
func TestWorkday(t *testing.T) {
	ts := testserver.New(t, "workday-token", 7)
	c := &client{t: t, ts: ts}
	ctx := context.Background()

	clientID, err := ts.Terms.CreateTerm(ctx, "client", "Acme Corp")
	require.NoError(t, err)

	taskA := seedTask(t, ts, &timer.Task{Title: "write proposal", ClientID: clientID})
	taskB := seedTask(t, ts, &timer.Task{Title: "review contract", ClientID: clientID})

	// Start on task A.
	resp, data := c.do(http.MethodPost, taskPath(taskA)+"/sessions/start", map[string]string{"title": "drafting"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	var started timer.Session
	require.NoError(t, json.Unmarshal(data, &started))
	require.Equal(t, 0, started.Index)
	require.NotEmpty(t, started.StartTime)
	require.Empty(t, started.StopTime)

	// The marker cache tracks the running timer.
	marker, err := ts.Markers.Get(ctx, ts.UserID)
	require.NoError(t, err)
	require.Equal(t, taskA, marker.TaskID)
	require.True(t, marker.IsRunning)

	// Rehydrate sees the running session.
	resp, data = c.do(http.MethodGet, "/api/timer/rehydrate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status timer.Status
	require.NoError(t, json.Unmarshal(data, &status))
	require.True(t, status.Running)
	require.Equal(t, taskA, status.TaskID)

	// Switching to task B stops A implicitly. One running session per user.
	resp, data = c.do(http.MethodPost, taskPath(taskB)+"/sessions/start", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	taskASessions := getSessions(t, ts, taskA)
	require.Len(t, taskASessions, 1)
	require.NotEmpty(t, taskASessions[0].StopTime)

	// Stop B explicitly.
	resp, _ = c.do(http.MethodPost, taskPath(taskB)+"/sessions/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data = c.do(http.MethodGet, "/api/timer/rehydrate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &status))
	require.False(t, status.Running)

	// A forgotten morning block is entered by hand.
	resp, data = c.do(http.MethodPost, taskPath(taskA)+"/sessions", map[string]any{
		"title":      "morning call",
		"start_time": "2025-07-19 08:00:00",
		"stop_time":  "2025-07-19 09:30:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	// It was actually task B's call; move it over.
	resp, data = c.do(http.MethodPost, taskPath(taskA)+"/sessions/1/move", map[string]any{
		"target_task_id": taskB,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	require.Len(t, getSessions(t, ts, taskA), 1)
	require.Len(t, getSessions(t, ts, taskB), 2)

	// Both cached totals were recomputed.
	taskBState, err := ts.Tasks.Get(ctx, taskB)
	require.NoError(t, err)
	require.NotEmpty(t, taskBState.CalculatedDuration)

	// Daily report for the hand-entered day, filtered by client.
	resp, data = c.do(http.MethodGet, "/api/reports/daily?date=2025-07-19&client_id="+itoa(clientID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var daily struct {
		Entries      []report.Entry `json:"entries"`
		TotalSeconds int64          `json:"total_seconds"`
		Total        string         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(data, &daily))
	require.Len(t, daily.Entries, 1)
	require.Equal(t, taskB, daily.Entries[0].TaskID)
	require.Equal(t, "Acme Corp", daily.Entries[0].Client)
	require.Equal(t, int64(5400), daily.TotalSeconds)
	require.Equal(t, "01:30:00", daily.Total)

	// A call on task A that went nowhere: same start and stop, zero seconds.
	resp, data = c.do(http.MethodPost, taskPath(taskA)+"/sessions", map[string]any{
		"title":      "cancelled call",
		"start_time": "2025-07-19 10:00:00",
		"stop_time":  "2025-07-19 10:00:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	// Monthly client summary covers both tasks, the zero-second session
	// included; the live sessions fall outside July and stay out.
	resp, data = c.do(http.MethodGet, "/api/reports/client/"+itoa(clientID)+"?from=2025-07-01&to=2025-07-31", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary report.ClientSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	require.Len(t, summary.Tasks, 2)
	require.Len(t, summary.Entries, 2)
	require.Equal(t, int64(5400), summary.Seconds)
	require.Equal(t, "01:30:00", summary.MonthTotal)
}

func TestUnauthorizedRequests(t *testing.T) {
	ts := testserver.New(t, "auth-token", 7)

	resp, err := http.Get(ts.Server.URL + "/api/timer/rehydrate")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+"/api/timer/rehydrate", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer nope")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestStopWithoutStart(t *testing.T) {
	ts := testserver.New(t, "stop-token", 7)
	c := &client{t: t, ts: ts}

	taskID := seedTask(t, ts, &timer.Task{Title: "idle task"})

	resp, _ := c.do(http.MethodPost, taskPath(taskID)+"/sessions/stop", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, taskPath(taskID)+"/timer/force-stop", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func getSessions(t *testing.T, ts *testserver.TestServer, taskID int64) []timer.Session {
	t.Helper()
	rows, err := ts.DB.Query(`
		SELECT position, field, value FROM task_rows
		WHERE task_id = ? AND repeater = 'sessions'
		ORDER BY position ASC
	`, taskID)
	require.NoError(t, err)
	defer rows.Close()

	byPos := map[int]*timer.Session{}
	order := []int{}
	for rows.Next() {
		var pos int
		var field, value string
		require.NoError(t, rows.Scan(&pos, &field, &value))
		s, ok := byPos[pos]
		if !ok {
			s = &timer.Session{}
			byPos[pos] = s
			order = append(order, pos)
		}
		switch field {
		case timer.FieldTitle:
			s.Title = value
		case timer.FieldStartTime:
			s.StartTime = value
		case timer.FieldStopTime:
			s.StopTime = value
		case timer.FieldCalculatedDuration:
			s.CalculatedDuration = value
		}
	}
	require.NoError(t, rows.Err())

	out := make([]timer.Session, 0, len(order))
	for _, pos := range order {
		out = append(out, *byPos[pos])
	}
	return out
}

func taskPath(taskID int64) string {
	return "/api/tasks/" + itoa(taskID)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
