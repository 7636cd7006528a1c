package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/playpcd/pcdtrainer/internal/database"
	"github.com/playpcd/pcdtrainer/internal/migrations"
	"github.com/playpcd/pcdtrainer/internal/synth"
)

const (
	testAdminEmail    = "admin@playpcd.com"
	testAdminPassword = "changeme"
)

type testEnv struct {
	handler  http.Handler
	store    *DocStore
	loader   *ScenarioLoader
	sessions *Sessions
	broker   *Broker
	clock    *clockwork.FakeClock
	demoID   string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestStore(t *testing.T) *DocStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return NewDocStore(db)
}

// newTestEnv wires a full router on an in-memory database seeded with the
// admin account and the demo scenario.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := discardLogger()

	store := setupTestStore(t)
	loader := NewScenarioLoader(store, nil, time.Hour, logger)
	require.NoError(t, Seed(ctx, logger, store, loader, SeedOptions{
		AdminEmail:    testAdminEmail,
		AdminPassword: testAdminPassword,
		Demo:          true,
	}))
	list, err := store.ListScenarios(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	clock := clockwork.NewFakeClock()
	broker := NewBroker()
	sessions := NewSessions(SessionsOptions{
		Timeout: 30 * time.Second,
		Clock:   clock,
		Logger:  logger,
		Broker:  broker,
	})
	t.Cleanup(sessions.CloseAll)

	srv := New(":0", logger, Deps{
		Store:    store,
		Loader:   loader,
		Sessions: sessions,
		Broker:   broker,
		Synth:    synth.New(synth.Options{}),
	}, nil)

	return &testEnv{
		handler:  srv.Handler(),
		store:    store,
		loader:   loader,
		sessions: sessions,
		broker:   broker,
		clock:    clock,
		demoID:   list[0].ID,
	}
}

func (env *testEnv) do(t *testing.T, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	return w
}

// startGame creates a game on the demo scenario and returns its id.
func (env *testEnv) startGame(t *testing.T) string {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/games", CreateGameRequest{ScenarioID: env.demoID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp GameResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.ID
}

func (env *testEnv) login(t *testing.T) []*http.Cookie {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/admin/login", AdminLoginRequest{Email: testAdminEmail, Password: testAdminPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return w.Result().Cookies()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}
