package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ngocmanh2004/demo-security/internal/auth"
)

// Client-facing failure messages. The specific cause is logged, never
// returned.
const (
	msgLoginFailed   = "invalid username or password"
	msgRenewFailed   = "renewal token expired or unknown"
	msgLogoutOK      = "logout successful"
	msgTokenValid    = "token is valid"
	msgTokenRejected = "invalid or expired token"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// renewalRequest is the request body for POST /auth/renew and /auth/logout.
type renewalRequest struct {
	RenewalToken string `json:"renewal_token"`
}

// registerRequest is the request body for POST /auth/register.
type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// tokenResponse is returned by login and renew.
type tokenResponse struct {
	AccessToken       string      `json:"access_token"`
	RenewalToken      string      `json:"renewal_token"`
	TokenType         string      `json:"token_type"`
	AccessTTLSeconds  int64       `json:"access_ttl_seconds"`
	RenewalTTLSeconds int64       `json:"renewal_ttl_seconds"`
	Username          string      `json:"username"`
	Roles             []auth.Role `json:"roles"`
}

// messageResponse is the plain acknowledgement body.
type messageResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func newTokenResponse(sess *auth.Session) tokenResponse {
	roles := sess.Roles
	if roles == nil {
		roles = []auth.Role{}
	}
	return tokenResponse{
		AccessToken:       sess.AccessToken,
		RenewalToken:      sess.RenewalToken,
		TokenType:         "Bearer",
		AccessTTLSeconds:  int64(sess.AccessTTL.Seconds()),
		RenewalTTLSeconds: int64(sess.RenewalTTL.Seconds()),
		Username:          sess.Username,
		Roles:             roles,
	}
}

// handleLogin authenticates a user and returns an access/renewal token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	sess, err := s.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Info("login rejected", "username", req.Username, "reason", err.Error())
			writeUnauthorized(w, msgLoginFailed)
			return
		}
		s.logger.Error("login failed", "username", req.Username, "error", err)
		writeInternalError(w, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(sess))
}

// handleRenew exchanges a renewal token for a fresh access token. The
// renewal token in the response is the one that was presented.
func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	var req renewalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.RenewalToken == "" {
		writeUnauthorized(w, msgRenewFailed)
		return
	}

	sess, err := s.service.Renew(r.Context(), req.RenewalToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRenewalNotFound),
			errors.Is(err, auth.ErrRenewalExpired),
			errors.Is(err, auth.ErrUserNotFound),
			errors.Is(err, auth.ErrUserInactive):
			s.logger.Info("renewal rejected",
				"token", auth.Fingerprint(req.RenewalToken),
				"reason", err.Error(),
			)
			writeUnauthorized(w, msgRenewFailed)
		default:
			s.logger.Error("renewal failed", "error", err)
			writeInternalError(w, "renewal failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(sess))
}

// handleLogout revokes a renewal token. It always succeeds from the
// client's point of view: unknown tokens and unreadable bodies included.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req renewalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RenewalToken != "" {
		if err := s.service.Logout(r.Context(), req.RenewalToken); err != nil {
			s.logger.Error("logout failed", "token", auth.Fingerprint(req.RenewalToken), "error", err)
		}
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: msgLogoutOK})
}

// handleRegister creates a ROLE_USER account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.service.Register(r.Context(), auth.Registration{
		Username:        req.Username,
		Email:           req.Email,
		FullName:        req.FullName,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameExists),
			errors.Is(err, auth.ErrEmailExists),
			errors.Is(err, auth.ErrPasswordMismatch),
			errors.Is(err, auth.ErrInvalidInput):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("registration failed", "username", req.Username, "error", err)
			writeInternalError(w, "registration failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// handleValidate reports whether the bearer token on the request is
// currently valid. The path is public, so the token is verified here
// rather than by the gate.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeUnauthorized(w, "missing bearer token")
		return
	}

	id, err := s.service.Authenticate(token)
	if err != nil {
		s.logTokenRejected(r, token, err)
		writeUnauthorized(w, msgTokenRejected)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: msgTokenValid, Data: id.Subject})
}
