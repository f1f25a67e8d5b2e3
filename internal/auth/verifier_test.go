package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestVerifier(t *testing.T, store CredentialStore, now func() time.Time) *Verifier {
	t.Helper()
	v, err := NewVerifier(store, VerifierConfig{
		LastLoginTimeout: time.Second,
		Logger:           discardLogger(),
		Now:              now,
	})
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	t.Cleanup(func() { v.Close(context.Background()) }) //nolint:errcheck // Test cleanup
	return v
}

func TestVerifier_Authenticate(t *testing.T) {
	store := testStore(t)
	seedTestCredential(t, store, "admin", false, true, "")
	seedTestCredential(t, store, "bannedUser", true, true, "")
	seedTestCredential(t, store, "notActivatedUser", false, false, "")
	seedTestCredential(t, store, "bannedInactive", true, false, "")

	v := newTestVerifier(t, store, nil)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"active account", "admin", "test-password", nil},
		{"banned account", "bannedUser", "test-password", ErrAccountBanned},
		{"not activated account", "notActivatedUser", "test-password", ErrAccountNotActivated},
		{"banned is checked before activation", "bannedInactive", "test-password", ErrAccountBanned},
		{"wrong password", "admin", "wrong-password", ErrInvalidCredentials},
		{"wrong password on banned account", "bannedUser", "wrong-password", ErrInvalidCredentials},
		{"unknown username", "ghost", "test-password", ErrInvalidCredentials},
		{"username is case sensitive", "ADMIN", "test-password", ErrInvalidCredentials},
		{"empty password", "admin", "", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := v.Authenticate(t.Context(), tt.username, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
				}
				if identity != nil {
					t.Error("Authenticate() returned an identity on failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if identity.Principal != tt.username {
				t.Errorf("Principal = %q, want %q", identity.Principal, tt.username)
			}
			if identity.Anonymous {
				t.Error("authenticated identity should not be anonymous")
			}
			if identity.Roles.Cardinality() != 0 {
				t.Errorf("Roles = %v, want empty before augmentation", SortedRoles(identity.Roles))
			}
		})
	}
}

func TestVerifier_UnknownUserMatchesWrongPassword(t *testing.T) {
	store := newMemoryStore()
	store.add(t, "known", false, true)
	v := newTestVerifier(t, store, nil)

	_, errUnknown := v.Authenticate(t.Context(), "unknown", "whatever")
	_, errWrong := v.Authenticate(t.Context(), "known", "whatever")

	if errUnknown != errWrong { //nolint:errorlint // identical sentinel is the point
		t.Errorf("unknown user error %v differs from wrong password error %v", errUnknown, errWrong)
	}
}

func TestVerifier_UpdatesLastLogin(t *testing.T) {
	store := testStore(t)
	cred := seedTestCredential(t, store, "admin", false, true, "")

	loginAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	v := newTestVerifier(t, store, func() time.Time { return loginAt })

	if _, err := v.Authenticate(t.Context(), "admin", "test-password"); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if err := v.Close(t.Context()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := store.FindCredentialByUsername(t.Context(), cred.Username)
	if err != nil {
		t.Fatalf("FindCredentialByUsername() error = %v", err)
	}
	if got.LastLogin == nil || !got.LastLogin.Equal(loginAt) {
		t.Errorf("LastLogin = %v, want %v", got.LastLogin, loginAt)
	}
}

func TestVerifier_NoLastLoginOnFailure(t *testing.T) {
	store := newMemoryStore()
	cred := store.add(t, "bannedUser", true, true)
	v := newTestVerifier(t, store, nil)

	_, _ = v.Authenticate(t.Context(), "bannedUser", "test-password") //nolint:errcheck // failure expected
	if err := v.Close(t.Context()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, ok := store.lastLogin(cred.UserID); ok {
		t.Error("failed authentication must not write last login")
	}
}

func TestVerifier_LastLoginFailureIgnored(t *testing.T) {
	store := newMemoryStore()
	store.add(t, "admin", false, true)
	store.updateErr = errors.New("disk full")
	v := newTestVerifier(t, store, nil)

	identity, err := v.Authenticate(t.Context(), "admin", "test-password")
	if err != nil {
		t.Fatalf("Authenticate() error = %v, want success despite last-login failure", err)
	}
	if identity.Principal != "admin" {
		t.Errorf("Principal = %q, want admin", identity.Principal)
	}
}

func TestVerifier_LastLoginOutlivesRequest(t *testing.T) {
	store := newMemoryStore()
	cred := store.add(t, "admin", false, true)
	store.updateWait = make(chan struct{})
	v := newTestVerifier(t, store, nil)

	ctx, cancel := context.WithCancel(t.Context())
	if _, err := v.Authenticate(ctx, "admin", "test-password"); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	cancel()
	close(store.updateWait)

	if err := v.Close(t.Context()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := store.lastLogin(cred.UserID); !ok {
		t.Error("last login write should complete after the request context is cancelled")
	}
}

func TestVerifier_CloseTimeout(t *testing.T) {
	store := newMemoryStore()
	store.add(t, "admin", false, true)
	store.updateWait = make(chan struct{})
	defer close(store.updateWait)
	v := newTestVerifier(t, store, nil)

	if _, err := v.Authenticate(t.Context(), "admin", "test-password"); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	if err := v.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close() error = %v, want deadline exceeded", err)
	}
}

func TestVerifier_LookupCancelled(t *testing.T) {
	store := newMemoryStore()
	store.add(t, "admin", false, true)
	v := newTestVerifier(t, store, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := v.Authenticate(ctx, "admin", "test-password")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Authenticate() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("cancellation must not be reported as invalid credentials")
	}
}

func TestVerifier_StoreError(t *testing.T) {
	store := newMemoryStore()
	store.lookupErr = errors.New("connection refused")
	v := newTestVerifier(t, store, nil)

	_, err := v.Authenticate(t.Context(), "admin", "test-password")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate() error = %v, want wrapped store error", err)
	}
}

func TestNewVerifier_NilStore(t *testing.T) {
	if _, err := NewVerifier(nil, VerifierConfig{}); err == nil {
		t.Error("NewVerifier(nil) expected error")
	}
}
