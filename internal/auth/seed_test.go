package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeedAdmin_CreatesOnEmptyDB(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	password, err := SeedAdmin(ctx, store, "admin", "", discardLogger())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password == "" {
		t.Fatal("SeedAdmin() should return generated password")
	}

	admin, err := store.FindCredentialByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("FindCredentialByUsername(admin) error = %v", err)
	}
	if !admin.Activated || admin.Banned {
		t.Errorf("seed admin Activated=%v Banned=%v, want true/false", admin.Activated, admin.Banned)
	}
	if !VerifyPassword(password, admin.PasswordHash, admin.Salt) {
		t.Error("generated password should verify against stored hash")
	}

	rank, err := store.FindRankForUser(ctx, "admin")
	if err != nil {
		t.Fatalf("FindRankForUser(admin) error = %v", err)
	}
	if rank.Name != AdminRankName || rank.Permissions != AllPermissions() {
		t.Errorf("admin rank = %+v, want every flag", rank)
	}
}

func TestSeedAdmin_ConfiguredPassword(t *testing.T) {
	store := testStore(t)

	password, err := SeedAdmin(t.Context(), store, "root", "configured-secret", discardLogger())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password != "configured-secret" {
		t.Errorf("SeedAdmin() password = %q, want configured value", password)
	}

	v := newTestVerifier(t, store, nil)
	if _, err := v.Authenticate(t.Context(), "root", "configured-secret"); err != nil {
		t.Errorf("seeded admin should authenticate: %v", err)
	}
}

func TestSeedAdmin_ReusesExistingRank(t *testing.T) {
	store := testStore(t)
	existing := seedTestRank(t, store, AdminRankName, RankPermissions{UserAdd: true})

	if _, err := SeedAdmin(t.Context(), store, "admin", "pw", discardLogger()); err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}

	admin, err := store.FindCredentialByUsername(t.Context(), "admin")
	if err != nil {
		t.Fatalf("FindCredentialByUsername() error = %v", err)
	}
	if admin.RankID != existing.ID {
		t.Errorf("RankID = %q, want existing rank %q", admin.RankID, existing.ID)
	}
}

func TestSeedAdmin_SkipsWhenCredentialsExist(t *testing.T) {
	store := testStore(t)
	seedTestCredential(t, store, "existing", false, true, "")

	password, err := SeedAdmin(t.Context(), store, "admin", "", discardLogger())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password != "" {
		t.Error("SeedAdmin() should return empty password when credentials exist")
	}

	count, _ := store.CountCredentials(t.Context())
	if count != 1 {
		t.Errorf("CountCredentials() = %d, want 1", count)
	}
}

func TestSeedAdmin_UniquePasswords(t *testing.T) {
	pw1, _ := SeedAdmin(t.Context(), testStore(t), "admin", "", discardLogger())
	pw2, _ := SeedAdmin(t.Context(), testStore(t), "admin", "", discardLogger())

	if pw1 == pw2 {
		t.Error("seed passwords should be unique across instances")
	}
}

func TestSeedAdmin_RejectsInvalidUsername(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for _, username := range []string{"", "the admin", "admin/root", strings.Repeat("a", 65)} {
		if _, err := SeedAdmin(ctx, store, username, "seed-password", discardLogger()); !errors.Is(err, ErrInvalidUsername) {
			t.Errorf("SeedAdmin(%q) error = %v, want ErrInvalidUsername", username, err)
		}
	}

	count, err := store.CountCredentials(ctx)
	if err != nil {
		t.Fatalf("CountCredentials() error = %v", err)
	}
	if count != 0 {
		t.Errorf("CountCredentials() = %d after rejected seeds, want 0", count)
	}
}
