package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/ngocmanh2004/demo-security/internal/audit"
	"github.com/ngocmanh2004/demo-security/internal/auth"
)

// ─── Profile ───────────────────────────────────────────────────────

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "user1", seedPassword).AccessToken

	w := env.do(t, http.MethodGet, "/api/v1/user/profile", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var raw map[string]any
	decodeBody(t, w, &raw)
	if raw["username"] != "user1" {
		t.Errorf("username = %v, want user1", raw["username"])
	}
	if raw["full_name"] != "User One" {
		t.Errorf("full_name = %v, want User One", raw["full_name"])
	}
	if _, leaked := raw["password_hash"]; leaked {
		t.Error("profile must not carry the password hash")
	}
}

func TestProfile_RequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/user/profile", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// ─── Admin: users ──────────────────────────────────────────────────

func TestAdminUsers_Authorisation(t *testing.T) {
	env := newTestEnv(t)
	user := env.login(t, "user1", seedPassword).AccessToken

	routes := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/v1/admin/users", nil},
		{http.MethodPatch, "/api/v1/admin/users/admin", map[string]any{"enabled": false}},
		{http.MethodPost, "/api/v1/admin/users/admin/logout", nil},
		{http.MethodGet, "/api/v1/admin/audit", nil},
		{http.MethodPost, "/api/v1/admin/events/ticket", nil},
	}

	for _, rt := range routes {
		if w := env.do(t, rt.method, rt.path, "", rt.body); w.Code != http.StatusUnauthorized {
			t.Errorf("anonymous %s %s status = %d, want %d", rt.method, rt.path, w.Code, http.StatusUnauthorized)
		}
		if w := env.do(t, rt.method, rt.path, user, rt.body); w.Code != http.StatusForbidden {
			t.Errorf("user1 %s %s status = %d, want %d", rt.method, rt.path, w.Code, http.StatusForbidden)
		}
	}
}

func TestAdminListUsers(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", seedPassword).AccessToken

	w := env.do(t, http.MethodGet, "/api/v1/admin/users", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Users []auth.User `json:"users"`
		Count int         `json:"count"`
	}
	decodeBody(t, w, &resp)

	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
	names := map[string]bool{}
	for _, u := range resp.Users {
		names[u.Username] = true
	}
	if !names["admin"] || !names["user1"] {
		t.Errorf("users = %v, want admin and user1", names)
	}
}

func TestAdminDisableUser_RevokesRenewal(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin", seedPassword).AccessToken
	user := env.login(t, "user1", seedPassword)

	w := env.do(t, http.MethodPatch, "/api/v1/admin/users/user1", admin, map[string]any{"enabled": false})
	if w.Code != http.StatusOK {
		t.Fatalf("disable status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var updated auth.User
	decodeBody(t, w, &updated)
	if updated.Enabled {
		t.Error("user1 should be disabled")
	}

	if w := env.do(t, http.MethodPost, "/api/v1/auth/renew", "", renewalRequest{RenewalToken: user.RenewalToken}); w.Code != http.StatusUnauthorized {
		t.Errorf("renew after disable status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	// Re-enabling restores login but not the revoked renewal token.
	if w := env.do(t, http.MethodPatch, "/api/v1/admin/users/user1", admin, map[string]any{"enabled": true}); w.Code != http.StatusOK {
		t.Fatalf("enable status = %d, want %d", w.Code, http.StatusOK)
	}
	env.login(t, "user1", seedPassword)
	if w := env.do(t, http.MethodPost, "/api/v1/auth/renew", "", renewalRequest{RenewalToken: user.RenewalToken}); w.Code != http.StatusUnauthorized {
		t.Errorf("renew with revoked token status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAdminUpdateUser_Validation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin", seedPassword).AccessToken

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"missing enabled", "/api/v1/admin/users/user1", map[string]any{}, http.StatusBadRequest},
		{"invalid JSON", "/api/v1/admin/users/user1", "{", http.StatusBadRequest},
		{"unknown user", "/api/v1/admin/users/nobody", map[string]any{"enabled": false}, http.StatusNotFound},
		{"disable self", "/api/v1/admin/users/admin", map[string]any{"enabled": false}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPatch, tt.path, admin, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAdminLogoutEverywhere(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin", seedPassword).AccessToken
	user := env.login(t, "user1", seedPassword)

	w := env.do(t, http.MethodPost, "/api/v1/admin/users/user1/logout", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	if w := env.do(t, http.MethodPost, "/api/v1/auth/renew", "", renewalRequest{RenewalToken: user.RenewalToken}); w.Code != http.StatusUnauthorized {
		t.Errorf("renew after logout-everywhere status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	// Already-issued access tokens run to expiry.
	if w := env.do(t, http.MethodGet, "/api/v1/user/profile", user.AccessToken, nil); w.Code != http.StatusOK {
		t.Errorf("profile with live access token status = %d, want %d", w.Code, http.StatusOK)
	}

	if w := env.do(t, http.MethodPost, "/api/v1/admin/users/nobody/logout", admin, nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Admin: audit ──────────────────────────────────────────────────

func TestAdminAudit(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin", seedPassword).AccessToken

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, e := range []audit.AuditLog{
		{Action: "login_succeeded", Subject: "admin"},
		{Action: "login_failed", Subject: "user1", Details: map[string]any{"reason": "bad password"}},
		{Action: "login_failed", Subject: "admin", Details: map[string]any{"reason": "bad password"}},
	} {
		e.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := env.audit.Create(context.Background(), &e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 3},
		{"by action", "?action=login_failed", 2},
		{"by subject", "?subject=admin", 2},
		{"since", "?since=2026-03-01T09:00:00Z", 2},
		{"limited", "?limit=1", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/v1/admin/audit"+tt.query, admin, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			var result audit.ListResult
			decodeBody(t, w, &result)
			if result.Total != tt.want {
				t.Errorf("total = %d, want %d", result.Total, tt.want)
			}
		})
	}

	if w := env.do(t, http.MethodGet, "/api/v1/admin/audit?since=yesterday", admin, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAdminAudit_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.srv.auditRepo = nil
	admin := env.login(t, "admin", seedPassword).AccessToken

	if w := env.do(t, http.MethodGet, "/api/v1/admin/audit", admin, nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
