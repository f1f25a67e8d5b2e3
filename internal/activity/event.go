package activity

import (
	"errors"
	"time"

	"github.com/nerrad567/gatekeeper/internal/audit"
	"github.com/nerrad567/gatekeeper/internal/auth"
)

// Outcomes. They are Prometheus label values and InfluxDB tag values, so
// the set stays small and fixed.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeBanned             = "banned"
	OutcomeNotActivated       = "not_activated"
	OutcomeForbidden          = "forbidden"
	OutcomeConflict           = "conflict"
	OutcomeNotFound           = "not_found"
	OutcomeError              = "error"
)

// Event is one recorded occurrence.
type Event struct {
	Action     string         `json:"action"`
	Outcome    string         `json:"outcome"`
	Username   string         `json:"username,omitempty"`
	RemoteAddr string         `json:"remote_addr,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	At         time.Time      `json:"at"`
}

// IsLogin reports whether e is an authentication attempt.
func (e Event) IsLogin() bool {
	return e.Action == audit.ActionLogin
}

// LoginEvent builds the event for an Authenticate result.
func LoginEvent(username, remoteAddr string, err error) Event {
	return Event{
		Action:     audit.ActionLogin,
		Outcome:    OutcomeFor(err),
		Username:   username,
		RemoteAddr: remoteAddr,
	}
}

// OutcomeFor maps an auth error to its outcome label.
func OutcomeFor(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, auth.ErrInvalidCredentials):
		return OutcomeInvalidCredentials
	case errors.Is(err, auth.ErrAccountBanned):
		return OutcomeBanned
	case errors.Is(err, auth.ErrAccountNotActivated):
		return OutcomeNotActivated
	case errors.Is(err, auth.ErrForbidden):
		return OutcomeForbidden
	case errors.Is(err, auth.ErrUsernameExists), errors.Is(err, auth.ErrRankExists):
		return OutcomeConflict
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrRankNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
