package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gatekeeper/internal/audit"
	"github.com/nerrad567/gatekeeper/internal/auth"
)

// minPasswordLength is the shortest password accepted for new accounts.
const minPasswordLength = 8

// createUserRequest is the body of POST /api/v1/users.
type createUserRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Rank      string `json:"rank,omitempty"`
	Activated *bool  `json:"activated,omitempty"` // defaults to true
}

// statusRequest is the body of PATCH /api/v1/users/{username}/status.
// Omitted fields keep their current value.
type statusRequest struct {
	Banned    *bool `json:"banned,omitempty"`
	Activated *bool `json:"activated,omitempty"`
}

// handleCreateUser creates an account; hash and salt are generated here.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if !auth.IsValidUsername(req.Username) {
		writeBadRequest(w, "invalid username")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	cred := &auth.Credential{
		Username:  req.Username,
		Activated: req.Activated == nil || *req.Activated,
	}

	if req.Rank != "" {
		rank, err := s.accounts.GetRankByName(r.Context(), req.Rank)
		if err != nil {
			if errors.Is(err, auth.ErrRankNotFound) {
				writeValidationError(w, "unknown rank: "+req.Rank)
				return
			}
			s.logger.Error("rank lookup failed", "rank", req.Rank, "error", err)
			writeInternalError(w, "failed to create user")
			return
		}
		cred.RankID = rank.ID
	}

	hash, salt, err := auth.NewCredentialSecret(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}
	cred.PasswordHash, cred.Salt = hash, salt

	err = s.accounts.CreateCredential(r.Context(), cred)
	s.record(r, audit.ActionUserCreate, err, map[string]any{
		"target": req.Username,
		"rank":   req.Rank,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameExists):
			writeConflict(w, "username already exists")
		case errors.Is(err, auth.ErrRankNotFound):
			writeValidationError(w, "unknown rank: "+req.Rank)
		default:
			s.logger.Error("create user failed", "error", err)
			writeInternalError(w, "failed to create user")
		}
		return
	}

	s.logger.Info("user created", "user_id", cred.UserID, "username", cred.Username, "rank", req.Rank)
	writeJSON(w, http.StatusCreated, cred)
}

// handleSetUserStatus updates the banned and activated flags of an account.
// Callers cannot ban or deactivate themselves.
func (s *Server) handleSetUserStatus(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Banned == nil && req.Activated == nil {
		writeBadRequest(w, "banned or activated is required")
		return
	}

	caller := identityFromContext(r.Context())
	if caller.Principal == username && ((req.Banned != nil && *req.Banned) || (req.Activated != nil && !*req.Activated)) {
		writeBadRequest(w, "cannot ban or deactivate your own account")
		return
	}

	cred, err := s.accounts.FindCredentialByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("user lookup failed", "username", username, "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	banned, activated := cred.Banned, cred.Activated
	if req.Banned != nil {
		banned = *req.Banned
	}
	if req.Activated != nil {
		activated = *req.Activated
	}

	err = s.accounts.SetAccountStatus(r.Context(), username, banned, activated)
	s.record(r, audit.ActionUserStatus, err, map[string]any{
		"target":    username,
		"banned":    banned,
		"activated": activated,
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("set account status failed", "username", username, "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	s.logger.Info("account status updated", "username", username, "banned", banned, "activated", activated)
	writeJSON(w, http.StatusOK, map[string]any{
		"username":  username,
		"banned":    banned,
		"activated": activated,
	})
}
