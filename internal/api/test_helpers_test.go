package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gatekeeper/internal/activity"
	"github.com/nerrad567/gatekeeper/internal/audit"
	"github.com/nerrad567/gatekeeper/internal/auth"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/config"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/database"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/logging"
	"github.com/nerrad567/gatekeeper/migrations"
)

// testPassword is the password of every seeded account.
const testPassword = "test-password"

// testEnv is a server wired to a fresh SQLite database with these accounts:
//
//	admin    rank admin (all roles)
//	editor   rank editor (post:add, post:edit)
//	ranker   rank ranker (user-rank:delete)
//	banned   rank admin, banned
//	pending  rank admin, not activated
//	norank   no rank
type testEnv struct {
	srv     *Server
	handler http.Handler
	store   *auth.SQLiteStore
	audit    *audit.SQLiteRepository
	metrics  *activity.Metrics
	recorder *activity.Recorder
}

func newTestEnv(t *testing.T, mutate func(d *Deps)) *testEnv {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(t.Context(), migrations.SQLite()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}

	store := auth.NewSQLiteStore(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	metrics := activity.NewMetrics()
	log := logging.Discard()

	verifier, err := auth.NewVerifier(store, auth.VerifierConfig{Logger: log.Logger})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		verifier.Close(ctx) //nolint:errcheck // Test cleanup
	})

	seedAccounts(t, store)

	recorder := activity.NewRecorder(activity.RecorderConfig{Logger: log.Logger},
		activity.NewAuditSink(auditRepo), metrics)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		recorder.Close(ctx) //nolint:errcheck // Test cleanup
	})

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Realm:    "gatekeeper-test",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Metrics:        config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Logger:         log,
		Verifier:       verifier,
		Accounts:       store,
		Audit:          auditRepo,
		Recorder:       recorder,
		MetricsHandler: metrics.Handler(),
		Version:        "test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &testEnv{
		srv:      srv,
		handler:  srv.Handler(),
		store:    store,
		audit:    auditRepo,
		metrics:  metrics,
		recorder: recorder,
	}
}

// flush waits for queued activity events to reach the sinks.
func (e *testEnv) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	if err := e.recorder.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func seedAccounts(t *testing.T, store *auth.SQLiteStore) {
	t.Helper()
	ctx := t.Context()

	ranks := map[string]auth.RankPermissions{
		"admin":  auth.AllPermissions(),
		"editor": {PostAdd: true, PostEdit: true},
		"ranker": {UserRankDelete: true},
	}
	rankIDs := make(map[string]string, len(ranks))
	for name, perms := range ranks {
		rank := &auth.Rank{Name: name, Permissions: perms}
		if err := store.CreateRank(ctx, rank); err != nil {
			t.Fatalf("creating rank %s: %v", name, err)
		}
		rankIDs[name] = rank.ID
	}

	users := []struct {
		username  string
		rank      string
		banned    bool
		activated bool
	}{
		{"admin", "admin", false, true},
		{"editor", "editor", false, true},
		{"ranker", "ranker", false, true},
		{"banned", "admin", true, true},
		{"pending", "admin", false, false},
		{"norank", "", false, true},
	}
	for _, u := range users {
		hash, salt, err := auth.NewCredentialSecret(testPassword)
		if err != nil {
			t.Fatalf("hashing password: %v", err)
		}
		cred := &auth.Credential{
			Username:     u.username,
			PasswordHash: hash,
			Salt:         salt,
			Banned:       u.banned,
			Activated:    u.activated,
			RankID:       rankIDs[u.rank],
		}
		if err := store.CreateCredential(ctx, cred); err != nil {
			t.Fatalf("creating user %s: %v", u.username, err)
		}
	}
}

// request performs one request as user (anonymous when user is empty).
func (e *testEnv) request(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.requestWithPassword(t, method, path, user, testPassword, body)
}

func (e *testEnv) requestWithPassword(t *testing.T, method, path, user, password, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.SetBasicAuth(user, password)
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
	return v
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assertStatus(t, rr, status)
	got := decodeJSON[Error](t, rr)
	if got.Code != code || got.Status != status {
		t.Errorf("error = %+v, want status %d code %q", got, status, code)
	}
}
