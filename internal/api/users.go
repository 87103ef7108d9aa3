package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ngocmanh2004/demo-security/internal/auth"
)

// updateUserRequest is the request body for PATCH /admin/users/{username}.
type updateUserRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleProfile returns the calling principal.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	user, err := s.service.User(r.Context(), id.Subject)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("failed to load profile", "subject", id.Subject, "error", err)
		writeInternalError(w, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleListUsers returns all principals.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.service.Users(r.Context())
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	if users == nil {
		users = []auth.User{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleUpdateUser enables or disables an account. Disabling revokes the
// account's renewal token.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Enabled == nil {
		writeBadRequest(w, "enabled is required")
		return
	}

	if id, ok := auth.IdentityFromContext(r.Context()); ok && id.Subject == username && !*req.Enabled {
		writeBadRequest(w, "cannot disable your own account")
		return
	}

	user, err := s.service.SetEnabled(r.Context(), username, *req.Enabled)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("failed to update user", "username", username, "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleLogoutEverywhere revokes every renewal token held by the account.
func (s *Server) handleLogoutEverywhere(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := s.service.LogoutEverywhere(r.Context(), username); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("failed to revoke sessions", "username", username, "error", err)
		writeInternalError(w, "failed to revoke sessions")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "sessions revoked"})
}
