package testserver

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ganot/timecard/internal/domain/report"
	"github.com/ganot/timecard/internal/domain/timer"
	"github.com/ganot/timecard/internal/sqlite"
	"github.com/ganot/timecard/internal/transport"
)

// TestServer hosts the full API over an in-memory database for end-to-end
// tests. Repositories are exposed so tests can seed and inspect state
// directly.
type TestServer struct {
	Server  *httptest.Server
	DB      *sqlite.DB
	Tasks   *sqlite.TaskRepository
	Terms   *sqlite.TermRepository
	Markers *sqlite.MarkerRepository
	Keys    *sqlite.APIKeyRepository
	Token   string
	UserID  int64
}

func New(t *testing.T, token string, userID int64) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	rows := sqlite.NewRowStore(db)
	sessionStore := sqlite.NewSessionStore(rows)
	taskRepo := sqlite.NewTaskRepository(db, rows)
	markerRepo := sqlite.NewMarkerRepository(db)
	termRepo := sqlite.NewTermRepository(db)
	keyRepo := sqlite.NewAPIKeyRepository(db)

	timerSvc := timer.NewService(sessionStore, taskRepo, markerRepo, timer.SystemClock{}, nil)
	reportSvc := report.NewService(sessionStore, taskRepo, termRepo, timer.SystemClock{}, time.UTC, nil)

	router := transport.NewRouter(timerSvc, reportSvc, transport.AuthMiddleware(keyRepo), nil, 10*time.Second)
	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:  server,
		DB:      db,
		Tasks:   taskRepo,
		Terms:   termRepo,
		Markers: markerRepo,
		Keys:    keyRepo,
		Token:   token,
		UserID:  userID,
	}

	require.NoError(t, keyRepo.Add(context.Background(), userID, token, "test key"))

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return ts
}
