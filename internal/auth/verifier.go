package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// defaultLastLoginTimeout bounds the detached last-login write.
const defaultLastLoginTimeout = 5 * time.Second

// dummyPassword is hashed once at construction so unknown usernames pay the
// same PBKDF2 cost as known ones.
const dummyPassword = "gatekeeper-timing-equaliser"

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	// LastLoginTimeout bounds each last-login write. Zero uses the default.
	LastLoginTimeout time.Duration

	// Logger receives last-login write failures. Nil uses slog.Default().
	Logger *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Verifier runs the credential lookup, password check and account status
// checks for one login attempt.
//
// Thread Safety:
//   - Authenticate is safe for concurrent use; the Verifier holds no
//     per-request state.
type Verifier struct {
	store   CredentialStore
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	dummyHash string
	dummySalt string

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewVerifier creates a Verifier over store.
func NewVerifier(store CredentialStore, cfg VerifierConfig) (*Verifier, error) {
	if store == nil {
		return nil, errors.New("auth: nil credential store")
	}

	hash, salt, err := NewCredentialSecret(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("preparing dummy credential: %w", err)
	}

	v := &Verifier{
		store:     store,
		logger:    cfg.Logger,
		timeout:   cfg.LastLoginTimeout,
		now:       cfg.Now,
		dummyHash: hash,
		dummySalt: salt,
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	if v.timeout <= 0 {
		v.timeout = defaultLastLoginTimeout
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v, nil
}

// Authenticate checks username and password and returns a role-less Identity.
//
// Failure kinds:
//   - ErrInvalidCredentials: unknown username or wrong password (indistinguishable)
//   - ErrAccountBanned: correct password, banned account
//   - ErrAccountNotActivated: correct password, account never activated
//
// Store and context errors are returned wrapped. On success the last-login
// time is written in the background; that write never affects the result.
func (v *Verifier) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	cred, err := v.store.FindCredentialByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			VerifyPassword(password, v.dummyHash, v.dummySalt)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up credential: %w", err)
	}

	if !VerifyPassword(password, cred.PasswordHash, cred.Salt) {
		return nil, ErrInvalidCredentials
	}

	if cred.Banned {
		return nil, ErrAccountBanned
	}
	if !cred.Activated {
		return nil, ErrAccountNotActivated
	}

	v.recordLastLogin(ctx, cred.UserID)

	return NewIdentity(cred.Username), nil
}

// recordLastLogin writes the login time on a goroutine detached from the
// request's cancellation.
func (v *Verifier) recordLastLogin(ctx context.Context, userID string) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.wg.Add(1)
	v.mu.Unlock()

	at := v.now()
	writeCtx := context.WithoutCancel(ctx)

	go func() {
		defer v.wg.Done()

		ctx, cancel := context.WithTimeout(writeCtx, v.timeout)
		defer cancel()

		if err := v.store.UpdateLastLogin(ctx, userID, at); err != nil {
			v.logger.Warn("last login update failed", "user_id", userID, "error", err)
		}
	}()
}

// Close stops scheduling last-login writes and waits for in-flight ones,
// or until ctx is done.
func (v *Verifier) Close(ctx context.Context) error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()

	done := make(chan struct{})
	go func() {
		v.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for last login writes: %w", ctx.Err())
	}
}
