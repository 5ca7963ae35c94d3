package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ganot/timecard/internal/domain/report"
	"github.com/ganot/timecard/internal/domain/timer"
	"github.com/ganot/timecard/internal/sqlite"
)

const testToken = "test-token"

type fixedClock struct{ now time.Time }

func (c fixedClock) NowUTC() time.Time { return c.now }

var httpTestNow = time.Date(2025, 7, 19, 11, 30, 0, 0, time.UTC)

type apiFixture struct {
	server *httptest.Server
	taskID int64
	tasks  *sqlite.TaskRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations())

	rows := sqlite.NewRowStore(db)
	sessions := sqlite.NewSessionStore(rows)
	tasks := sqlite.NewTaskRepository(db, rows)
	markers := sqlite.NewMarkerRepository(db)
	terms := sqlite.NewTermRepository(db)
	keys := sqlite.NewAPIKeyRepository(db)

	require.NoError(t, keys.Add(ctx, 7, testToken, "test key"))
	taskID, err := tasks.Create(ctx, &timer.Task{
		Title:          "billing cleanup",
		AssigneeUserID: 7,
		CreatedAt:      "2025-07-01 09:00:00",
	})
	require.NoError(t, err)

	clock := fixedClock{httpTestNow}
	timers := timer.NewService(sessions, tasks, markers, clock, nil)
	reports := report.NewService(sessions, tasks, terms, clock, time.UTC, nil)

	router := NewRouter(timers, reports, AuthMiddleware(keys), nil, 5*time.Second)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiFixture{server: server, taskID: taskID, tasks: tasks}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_RequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/api/timer/rehydrate")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_SessionLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	base := "/api/tasks/1/sessions"

	resp := f.do(t, http.MethodPost, base+"/start", map[string]string{"title": "morning"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	started := decodeBody[timer.Session](t, resp)
	require.Equal(t, 0, started.Index)
	require.Equal(t, "2025-07-19 11:30:00", started.StartTime)

	resp = f.do(t, http.MethodGet, "/api/timer/rehydrate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decodeBody[timer.Status](t, resp)
	require.True(t, status.Running)
	require.Equal(t, f.taskID, status.TaskID)
	require.Equal(t, 0, status.Index)

	resp = f.do(t, http.MethodPost, base+"/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stopped := decodeBody[timer.Session](t, resp)
	require.Equal(t, "2025-07-19 11:30:00", stopped.StopTime)
	// Same instant start and stop floors to the zero duration.
	require.Equal(t, "0.00", stopped.CalculatedDuration)

	resp = f.do(t, http.MethodPost, base+"/stop", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_StartTwiceConflicts(t *testing.T) {
	f := newAPIFixture(t)
	base := "/api/tasks/1/sessions"

	resp := f.do(t, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_UnknownTask(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/tasks/999/sessions/start", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/tasks/banana/sessions/start", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ManualSessionAndRecalc(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	resp := f.do(t, http.MethodPost, "/api/tasks/1/sessions", map[string]any{
		"title":           "estimate",
		"manual_override": true,
		"manual_duration": "2.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	session := decodeBody[timer.Session](t, resp)
	require.True(t, session.ManualOverride)

	task, err := f.tasks.Get(ctx, f.taskID)
	require.NoError(t, err)
	require.Equal(t, "2.00", task.CalculatedDuration)

	// Missing manual_duration on a manual entry is rejected.
	resp = f.do(t, http.MethodPost, "/api/tasks/1/sessions", map[string]any{
		"manual_override": true,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_UpdateAndDeleteSession(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/tasks/1/sessions", map[string]any{
		"start_time": "2025-07-19 08:00:00",
		"stop_time":  "2025-07-19 09:30:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPatch, "/api/tasks/1/sessions/0", map[string]string{
		"field": "notes",
		"value": "reviewed invoices",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodPatch, "/api/tasks/1/sessions/0", map[string]string{
		"field": "timer_control",
		"value": "stop",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/tasks/1/sessions/0", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/tasks/1/sessions/0", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_MoveSession(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	targetID, err := f.tasks.Create(ctx, &timer.Task{
		Title:          "follow-up",
		AssigneeUserID: 7,
		CreatedAt:      "2025-07-02 09:00:00",
	})
	require.NoError(t, err)

	resp := f.do(t, http.MethodPost, "/api/tasks/1/sessions", map[string]any{
		"start_time": "2025-07-19 08:00:00",
		"stop_time":  "2025-07-19 09:30:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/tasks/1/sessions/0/move", map[string]any{
		"target_task_id": targetID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	moved := decodeBody[map[string]any](t, resp)
	require.Equal(t, float64(targetID), moved["task_id"])
	require.Equal(t, float64(0), moved["session_index"])

	// The moved duration left the source total and landed in the target's.
	source, err := f.tasks.Get(ctx, f.taskID)
	require.NoError(t, err)
	require.Equal(t, "0.00", source.CalculatedDuration)
	target, err := f.tasks.Get(ctx, targetID)
	require.NoError(t, err)
	require.Equal(t, "1.50", target.CalculatedDuration)

	// Moving onto the same task is rejected.
	resp = f.do(t, http.MethodPost, "/api/tasks/2/sessions/0/move", map[string]any{
		"target_task_id": targetID,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_DailyReport(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/tasks/1/sessions", map[string]any{
		"start_time": "2025-07-19 08:00:00",
		"stop_time":  "2025-07-19 09:30:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/reports/daily?date=2025-07-19", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decodeBody[map[string]any](t, resp)
	require.Equal(t, float64(5400), payload["total_seconds"])
	require.Equal(t, "01:30:00", payload["total"])

	resp = f.do(t, http.MethodGet, "/api/reports/daily?date=19-07-2025", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/reports/daily", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ClientReport(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	clientTask, err := f.tasks.Create(ctx, &timer.Task{
		Title:          "retainer work",
		AssigneeUserID: 7,
		ClientID:       42,
		CreatedAt:      "2025-07-01 09:00:00",
	})
	require.NoError(t, err)

	resp := f.do(t, http.MethodPost, "/api/tasks/2/sessions", map[string]any{
		"start_time": "2025-07-10 08:00:00",
		"stop_time":  "2025-07-10 10:00:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/reports/client/42?from=2025-07-01&to=2025-07-31", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decodeBody[report.ClientSummary](t, resp)
	require.Len(t, summary.Tasks, 1)
	require.Equal(t, clientTask, summary.Tasks[0].TaskID)
	require.Equal(t, int64(7200), summary.Seconds)
	require.Equal(t, "02:00:00", summary.MonthTotal)

	resp = f.do(t, http.MethodGet, "/api/reports/client/42", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
