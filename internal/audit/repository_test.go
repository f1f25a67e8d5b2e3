package audit

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gatekeeper/internal/infrastructure/database"
	"github.com/nerrad567/gatekeeper/migrations"
)

func testRepository(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(t.Context(), migrations.SQLite()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}

	return NewSQLiteRepository(db.DB), db.DB
}

func TestCreate_GeneratesIDAndTime(t *testing.T) {
	repo, _ := testRepository(t)

	entry := &AuditLog{Action: ActionLogin, Outcome: "success", Username: "alice"}
	if err := repo.Create(t.Context(), entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(entry.ID) != len("aud-")+8 || entry.ID[:4] != "aud-" {
		t.Errorf("ID = %q, want aud-XXXXXXXX", entry.ID)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if entry.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt location = %v, want UTC", entry.CreatedAt.Location())
	}
}

func TestCreate_RoundTrip(t *testing.T) {
	repo, _ := testRepository(t)
	at := time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.UTC)

	entry := &AuditLog{
		Action:     ActionUserStatus,
		Outcome:    "success",
		Username:   "admin",
		RemoteAddr: "10.0.0.2:4000",
		Details:    map[string]any{"target": "bob", "banned": true},
		CreatedAt:  at,
	}
	if err := repo.Create(t.Context(), entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result, err := repo.List(t.Context(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(result.Logs) != 1 {
		t.Fatalf("List() returned %d logs, want 1", len(result.Logs))
	}

	got := result.Logs[0]
	if got.ID != entry.ID || got.Action != ActionUserStatus || got.Outcome != "success" {
		t.Errorf("List()[0] = %+v", got)
	}
	if got.Username != "admin" || got.RemoteAddr != "10.0.0.2:4000" {
		t.Errorf("Username/RemoteAddr = %q/%q", got.Username, got.RemoteAddr)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, at)
	}
	if got.Details["target"] != "bob" || got.Details["banned"] != true {
		t.Errorf("Details = %v", got.Details)
	}
}

func TestCreate_NullableColumns(t *testing.T) {
	repo, db := testRepository(t)

	entry := &AuditLog{Action: ActionLogin, Outcome: "anonymous"}
	if err := repo.Create(t.Context(), entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var username, remoteAddr, details sql.NullString
	err := db.QueryRowContext(t.Context(),
		"SELECT username, remote_addr, details FROM audit_logs WHERE id = ?", entry.ID,
	).Scan(&username, &remoteAddr, &details)
	if err != nil {
		t.Fatalf("query error = %v", err)
	}
	if username.Valid || remoteAddr.Valid || details.Valid {
		t.Errorf("empty fields should be NULL: username=%v remote_addr=%v details=%v", username, remoteAddr, details)
	}
}

func TestList_Filters(t *testing.T) {
	repo, _ := testRepository(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	seed := []AuditLog{
		{Action: ActionLogin, Outcome: "success", Username: "alice"},
		{Action: ActionLogin, Outcome: "invalid_credentials", Username: "alice"},
		{Action: ActionLogin, Outcome: "banned", Username: "bob"},
		{Action: ActionRankCreate, Outcome: "success", Username: "admin"},
		{Action: ActionUserCreate, Outcome: "success", Username: "admin"},
	}
	for i := range seed {
		seed[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(t.Context(), &seed[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
	}{
		{"no filter", Filter{}, 5, seed[4].ID},
		{"by action", Filter{Action: ActionLogin}, 3, seed[2].ID},
		{"by outcome", Filter{Outcome: "success"}, 3, seed[4].ID},
		{"by username", Filter{Username: "alice"}, 2, seed[1].ID},
		{"combined", Filter{Action: ActionLogin, Outcome: "success", Username: "alice"}, 1, seed[0].ID},
		{"no match", Filter{Username: "nobody"}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(t.Context(), tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", result.Total, tt.wantTotal)
			}
			if len(result.Logs) != tt.wantTotal {
				t.Errorf("len(Logs) = %d, want %d", len(result.Logs), tt.wantTotal)
			}
			if tt.wantFirst != "" && len(result.Logs) > 0 && result.Logs[0].ID != tt.wantFirst {
				t.Errorf("first log ID = %q, want most recent %q", result.Logs[0].ID, tt.wantFirst)
			}
			if result.Logs == nil {
				t.Error("Logs should be an empty slice, not nil")
			}
		})
	}
}

func TestList_Pagination(t *testing.T) {
	repo, _ := testRepository(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := range 7 {
		entry := &AuditLog{Action: ActionLogin, Outcome: "success", CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := repo.Create(t.Context(), entry); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	page, err := repo.List(t.Context(), Filter{Limit: 3, Offset: 6})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 7 || len(page.Logs) != 1 {
		t.Errorf("Total = %d, len = %d, want 7 and 1", page.Total, len(page.Logs))
	}
	if !page.Logs[0].CreatedAt.Equal(base) {
		t.Errorf("last page holds %v, want oldest %v", page.Logs[0].CreatedAt, base)
	}
}

func TestList_SameTimestampNewestFirst(t *testing.T) {
	repo, _ := testRepository(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := &AuditLog{Action: ActionLogin, Outcome: "success", CreatedAt: at}
	second := &AuditLog{Action: ActionLogin, Outcome: "banned", CreatedAt: at}
	for _, e := range []*AuditLog{first, second} {
		if err := repo.Create(t.Context(), e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := repo.List(t.Context(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Logs[0].ID != second.ID {
		t.Errorf("first log = %q, want last inserted %q", result.Logs[0].ID, second.ID)
	}
}

func TestNormalise(t *testing.T) {
	tests := []struct {
		name       string
		in         Filter
		wantLimit  int
		wantOffset int
	}{
		{"defaults", Filter{}, DefaultLimit, 0},
		{"negative", Filter{Limit: -1, Offset: -5}, DefaultLimit, 0},
		{"over max", Filter{Limit: 1000}, MaxLimit, 0},
		{"in range", Filter{Limit: 10, Offset: 20}, 10, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalise(tt.in)
			if got.Limit != tt.wantLimit || got.Offset != tt.wantOffset {
				t.Errorf("normalise(%+v) = limit %d offset %d, want %d %d",
					tt.in, got.Limit, got.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestBuildWhere(t *testing.T) {
	where, args := buildWhere(Filter{Action: "login", Username: "alice"}, postgresPlaceholder)
	if where != "WHERE action = $1 AND username = $2" {
		t.Errorf("where = %q", where)
	}
	if len(args) != 2 || args[0] != "login" || args[1] != "alice" {
		t.Errorf("args = %v", args)
	}

	where, args = buildWhere(Filter{}, postgresPlaceholder)
	if where != "" || len(args) != 0 {
		t.Errorf("empty filter gave %q %v", where, args)
	}
}
