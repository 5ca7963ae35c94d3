package transport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ganot/timecard/internal/domain/report"
	"github.com/ganot/timecard/internal/domain/timer"
)

// Server wires HTTP handlers to the timer and report services.
type Server struct {
	timers  *timer.Service
	reports *report.Service
	logger  *slog.Logger
}

// NewRouter builds the API router. The auth middleware guards everything
// under /api; /health stays open for load balancer probes.
func NewRouter(timers *timer.Service, reports *report.Service, authMiddleware func(http.Handler) http.Handler, logger *slog.Logger, requestTimeout time.Duration) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{timers: timers, reports: reports, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestLogger(logger))
	if requestTimeout > 0 {
		r.Use(timeoutMiddleware(requestTimeout))
	}

	r.Get("/health", srv.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}

		r.Route("/tasks/{taskID}", func(r chi.Router) {
			r.Post("/sessions/start", srv.handleStartSession)
			r.Post("/sessions/stop", srv.handleStopSession)
			r.Post("/sessions", srv.handleAddManualSession)
			r.Patch("/sessions/{index}", srv.handleUpdateSession)
			r.Delete("/sessions/{index}", srv.handleDeleteSession)
			r.Post("/sessions/{index}/move", srv.handleMoveSession)

			r.Post("/timer/start", srv.handleStartTimer)
			r.Post("/timer/stop", srv.handleStopTimer)
			r.Post("/timer/force-stop", srv.handleForceStop)
		})

		r.Get("/timer/rehydrate", srv.handleRehydrate)

		r.Get("/reports/daily", srv.handleDailyReport)
		r.Get("/reports/client/{clientID}", srv.handleClientReport)
	})

	return r
}

func timeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, `{"error":"request timed out"}`)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.userAndTask(w, r)
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	// An empty body is fine, the title is optional.
	_ = decodeJSON(r, &req)

	session, err := s.timers.StartSession(r.Context(), userID, taskID, req.Title)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.userAndTask(w, r)
	if !ok {
		return
	}

	session, err := s.timers.StopActiveSession(r.Context(), userID, taskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleForceStop(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.userAndTask(w, r)
	if !ok {
		return
	}

	session, err := s.timers.ForceStop(r.Context(), userID, taskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.userAndTask(w, r)
	if !ok {
		return
	}

	task, err := s.timers.StartTimer(r.Context(), userID, taskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.userAndTask(w, r)
	if !ok {
		return
	}

	task, err := s.timers.StopTimer(r.Context(), userID, taskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleRehydrate(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	status, err := s.timers.Rehydrate(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAddManualSession(w http.ResponseWriter, r *http.Request) {
	_, taskID, ok := s.userAndTask(w, r)
	if !ok {
		return
	}

	var req struct {
		Title          string `json:"title"`
		Notes          string `json:"notes"`
		StartTime      string `json:"start_time"`
		StopTime       string `json:"stop_time"`
		ManualOverride bool   `json:"manual_override"`
		ManualDuration string `json:"manual_duration"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.timers.AddManualSession(r.Context(), taskID, timer.ManualSessionRequest{
		Title:          req.Title,
		Notes:          req.Notes,
		StartTime:      req.StartTime,
		StopTime:       req.StopTime,
		ManualOverride: req.ManualOverride,
		ManualDuration: req.ManualDuration,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	_, taskID, ok := s.userAndTask(w, r)
	if !ok {
		return
	}
	index, ok := s.sessionIndex(w, r)
	if !ok {
		return
	}

	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Field == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.timers.UpdateSessionField(r.Context(), taskID, index, req.Field, req.Value); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	_, taskID, ok := s.userAndTask(w, r)
	if !ok {
		return
	}
	index, ok := s.sessionIndex(w, r)
	if !ok {
		return
	}

	if err := s.timers.DeleteSession(r.Context(), taskID, index); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveSession(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.userAndTask(w, r)
	if !ok {
		return
	}
	index, ok := s.sessionIndex(w, r)
	if !ok {
		return
	}

	var req struct {
		TargetTaskID int64 `json:"target_task_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.TargetTaskID == 0 {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newIndex, err := s.timers.MoveSession(r.Context(), userID, taskID, index, req.TargetTaskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":       req.TargetTaskID,
		"session_index": newIndex,
	})
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	filters := report.Filters{
		StatusID:  queryID(r, "status_id"),
		ClientID:  queryID(r, "client_id"),
		ProjectID: queryID(r, "project_id"),
	}

	entries, err := s.reports.DailyEntries(r.Context(), userID, date, filters)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	seconds, clock := s.reports.TotalDuration(entries)
	writeJSON(w, http.StatusOK, map[string]any{
		"date":          date,
		"entries":       entries,
		"total_seconds": seconds,
		"total":         clock,
	})
}

func (s *Server) handleClientReport(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(chi.URLParam(r, "clientID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	summary, err := s.reports.MonthlyClientSummary(r.Context(), clientID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) userAndTask(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return 0, 0, false
	}
	taskID, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil || taskID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return 0, 0, false
	}
	return userID, taskID, true
}

func (s *Server) sessionIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "invalid session index")
		return 0, false
	}
	return index, true
}

func queryID(r *http.Request, key string) int64 {
	id, _ := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return id
}
