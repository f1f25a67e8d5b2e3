package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/nerrad567/gatekeeper/internal/activity"
	"github.com/nerrad567/gatekeeper/internal/auth"
)

// authMiddleware resolves Basic credentials to an Identity.
//
// No credentials yields the anonymous identity. Valid credentials yield
// an identity carrying the roles of the user's rank; a user without a
// rank continues with no roles. Failed logins are answered here and
// never reach the handler.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), auth.AnonymousIdentity())))
			return
		}

		identity, err := s.verifier.Authenticate(r.Context(), username, password)
		s.recorder.Record(r.Context(), activity.LoginEvent(username, r.RemoteAddr, err))
		if err != nil {
			s.writeAuthFailure(w, r, err)
			return
		}

		rank, err := s.accounts.FindRankForUser(r.Context(), identity.Principal)
		switch {
		case err == nil:
			augmented, err := auth.Augment(identity, rank)
			if err != nil {
				s.logger.Error("augmenting identity failed", "username", identity.Principal, "error", err)
				writeInternalError(w, "authentication failed")
				return
			}
			identity = augmented
		case errors.Is(err, auth.ErrRankNotFound):
			s.logger.Warn("authenticated user has no rank", "username", identity.Principal)
		default:
			s.logger.Error("rank lookup failed",
				"username", identity.Principal,
				"request_id", requestIDFromContext(r.Context()),
				"error", err,
			)
			writeInternalError(w, "authentication failed")
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

// writeAuthFailure maps an Authenticate error to a response. Account
// status is only disclosed when the configuration allows it.
func (s *Server) writeAuthFailure(w http.ResponseWriter, r *http.Request, err error) {
	reveal := s.authCfg.RevealAccountStatus

	switch {
	case errors.Is(err, auth.ErrAccountBanned) && reveal:
		writeForbidden(w, "account is banned")
	case errors.Is(err, auth.ErrAccountNotActivated) && reveal:
		writeForbidden(w, "account is not activated")
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrAccountBanned),
		errors.Is(err, auth.ErrAccountNotActivated):
		writeUnauthorized(w, s.cfg.Realm, "invalid credentials")
	default:
		s.logger.Error("authentication error",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		writeInternalError(w, "authentication failed")
	}
}

// requireAuthenticated rejects the anonymous identity with 401.
func (s *Server) requireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := identityFromContext(r.Context())
		if identity == nil || identity.Anonymous {
			writeUnauthorized(w, s.cfg.Realm, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRoles admits callers holding any one of roles.
func (s *Server) requireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := identityFromContext(r.Context())

			switch auth.Authorize(identity, roles...) {
			case auth.Allow:
				next.ServeHTTP(w, r)
			case auth.DenyUnauthenticated:
				writeUnauthorized(w, s.cfg.Realm, "authentication required")
			default:
				s.logger.Info("authorisation denied",
					"username", identity.Principal,
					"path", r.URL.Path,
					"request_id", requestIDFromContext(r.Context()),
				)
				writeForbidden(w, "insufficient permissions")
			}
		})
	}
}

func withIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, identity)
}

// identityFromContext returns the request identity, or nil outside authMiddleware.
func identityFromContext(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(ctxKeyIdentity).(*auth.Identity) //nolint:errcheck // absent means nil
	return identity
}

// meResponse is returned by GET /api/v1/auth/me.
type meResponse struct {
	Username string      `json:"username"`
	Roles    []auth.Role `json:"roles"`
}

// handleMe returns the caller's principal and sorted roles.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	writeJSON(w, http.StatusOK, meResponse{
		Username: identity.Principal,
		Roles:    auth.SortedRoles(identity.Roles),
	})
}

// record hands an admin event for the calling identity to the recorder.
func (s *Server) record(r *http.Request, action string, err error, details map[string]any) {
	var username string
	if identity := identityFromContext(r.Context()); identity != nil {
		username = identity.Principal
	}
	s.recorder.Record(r.Context(), activity.Event{
		Action:     action,
		Outcome:    activity.OutcomeFor(err),
		Username:   username,
		RemoteAddr: r.RemoteAddr,
		Details:    details,
	})
}
