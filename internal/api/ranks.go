package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gatekeeper/internal/audit"
	"github.com/nerrad567/gatekeeper/internal/auth"
)

// rankResponse is a rank with its derived role tokens.
type rankResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Permissions auth.RankPermissions `json:"permissions"`
	Roles       []auth.Role          `json:"roles"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func newRankResponse(rank auth.Rank) rankResponse {
	return rankResponse{
		ID:          rank.ID,
		Name:        rank.Name,
		Permissions: rank.Permissions,
		Roles:       auth.SortedRoles(auth.BuildRoles(rank)),
		CreatedAt:   rank.CreatedAt,
		UpdatedAt:   rank.UpdatedAt,
	}
}

// createRankRequest names the new rank and the role tokens it grants.
type createRankRequest struct {
	Name  string      `json:"name"`
	Roles []auth.Role `json:"roles"`
}

// rolesRequest replaces the role tokens granted by a rank.
type rolesRequest struct {
	Roles []auth.Role `json:"roles"`
}

// handleListRanks returns every rank ordered by name.
func (s *Server) handleListRanks(w http.ResponseWriter, r *http.Request) {
	ranks, err := s.accounts.ListRanks(r.Context())
	if err != nil {
		s.logger.Error("list ranks failed", "error", err)
		writeInternalError(w, "failed to list ranks")
		return
	}

	out := make([]rankResponse, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, newRankResponse(rank))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ranks": out})
}

// handleCreateRank creates a rank from a list of role tokens.
func (s *Server) handleCreateRank(w http.ResponseWriter, r *http.Request) {
	var req createRankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !auth.IsValidRankName(req.Name) {
		writeBadRequest(w, "invalid rank name")
		return
	}

	perms, err := auth.PermissionsFromRoles(req.Roles)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	rank := &auth.Rank{Name: req.Name, Permissions: perms}
	err = s.accounts.CreateRank(r.Context(), rank)
	s.record(r, audit.ActionRankCreate, err, map[string]any{"rank": req.Name})
	if err != nil {
		if errors.Is(err, auth.ErrRankExists) {
			writeConflict(w, "rank already exists")
			return
		}
		s.logger.Error("create rank failed", "rank", req.Name, "error", err)
		writeInternalError(w, "failed to create rank")
		return
	}

	s.logger.Info("rank created", "rank_id", rank.ID, "rank", rank.Name)
	writeJSON(w, http.StatusCreated, newRankResponse(*rank))
}

// handleRankRoles returns the sorted role tokens of the named rank.
func (s *Server) handleRankRoles(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	roles, err := auth.RolesForRankName(r.Context(), s.accounts, name)
	if err != nil {
		if errors.Is(err, auth.ErrRankNotFound) {
			writeNotFound(w, "rank not found")
			return
		}
		s.logger.Error("rank roles lookup failed", "rank", name, "error", err)
		writeInternalError(w, "failed to load rank")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":  name,
		"roles": auth.SortedRoles(roles),
	})
}

// handleUpdateRankPermissions replaces every flag of the named rank.
func (s *Server) handleUpdateRankPermissions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req rolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	perms, err := auth.PermissionsFromRoles(req.Roles)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	err = s.accounts.UpdateRankPermissions(r.Context(), name, perms)
	s.record(r, audit.ActionRankPermissions, err, map[string]any{"rank": name, "roles": req.Roles})
	if err != nil {
		if errors.Is(err, auth.ErrRankNotFound) {
			writeNotFound(w, "rank not found")
			return
		}
		s.logger.Error("update rank permissions failed", "rank", name, "error", err)
		writeInternalError(w, "failed to update rank")
		return
	}

	rank, err := s.accounts.GetRankByName(r.Context(), name)
	if err != nil {
		s.logger.Error("reload rank failed", "rank", name, "error", err)
		writeInternalError(w, "failed to load rank")
		return
	}

	s.logger.Info("rank permissions updated", "rank", name)
	writeJSON(w, http.StatusOK, newRankResponse(*rank))
}
