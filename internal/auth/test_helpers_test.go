package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gatekeeper/internal/infrastructure/database"
	"github.com/nerrad567/gatekeeper/migrations"
)

// testDB creates a temporary SQLite database with the full schema applied.
// It is closed when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
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
	return db.DB
}

// testStore returns an SQLiteStore over a fresh test database.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	return NewSQLiteStore(testDB(t))
}

// seedTestRank inserts a rank with the given permissions.
func seedTestRank(t *testing.T, store AccountStore, name string, perms RankPermissions) *Rank {
	t.Helper()

	rank := &Rank{Name: name, Permissions: perms}
	if err := store.CreateRank(t.Context(), rank); err != nil {
		t.Fatalf("creating test rank %s: %v", name, err)
	}
	return rank
}

// seedTestCredential inserts a user whose password is "test-password".
func seedTestCredential(t *testing.T, store AccountStore, username string, banned, activated bool, rankID string) *Credential {
	t.Helper()

	hash, salt, err := NewCredentialSecret("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	cred := &Credential{
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		Banned:       banned,
		Activated:    activated,
		RankID:       rankID,
	}
	if err := store.CreateCredential(t.Context(), cred); err != nil {
		t.Fatalf("creating test credential %s: %v", username, err)
	}
	return cred
}

// memoryStore is an in-memory CredentialStore used where the test needs to
// observe or fail individual calls.
type memoryStore struct {
	mu         sync.Mutex
	creds      map[string]*Credential
	ranks      map[string]*Rank // keyed by username
	lookupErr  error
	updateErr  error
	updateWait chan struct{} // when non-nil, UpdateLastLogin blocks until closed
	lastLogins map[string]time.Time
	lookups    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		creds:      make(map[string]*Credential),
		ranks:      make(map[string]*Rank),
		lastLogins: make(map[string]time.Time),
	}
}

func (m *memoryStore) add(t *testing.T, username string, banned, activated bool) *Credential {
	t.Helper()
	hash, salt, err := NewCredentialSecret("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	cred := &Credential{
		UserID:       "usr-" + username,
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		Banned:       banned,
		Activated:    activated,
	}
	m.mu.Lock()
	m.creds[username] = cred
	m.mu.Unlock()
	return cred
}

func (m *memoryStore) FindCredentialByUsername(ctx context.Context, username string) (*Credential, error) {
	m.mu.Lock()
	m.lookups++
	lookupErr := m.lookupErr
	cred, ok := m.creds[username]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if lookupErr != nil {
		return nil, lookupErr
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *cred
	return &c, nil
}

func (m *memoryStore) FindRankForUser(_ context.Context, username string) (*Rank, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rank, ok := m.ranks[username]
	if !ok {
		return nil, ErrRankNotFound
	}
	r := *rank
	return &r, nil
}

func (m *memoryStore) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	if m.updateWait != nil {
		select {
		case <-m.updateWait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.lastLogins[userID] = at
	return nil
}

func (m *memoryStore) lastLogin(userID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.lastLogins[userID]
	return at, ok
}
