package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeedDefaults_CreatesOnEmptyDB(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	created, err := SeedDefaults(ctx, repo, discardLogger())
	if err != nil {
		t.Fatalf("SeedDefaults() error = %v", err)
	}
	if diff := cmp.Diff([]string{"admin", "user1"}, created); diff != "" {
		t.Errorf("created mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		username string
		fullName string
		email    string
		role     Role
	}{
		{"admin", "Administrator", "admin@example.com", RoleAdmin},
		{"user1", "User One", "user1@example.com", RoleUser},
	}
	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			u, err := repo.GetByUsername(ctx, tt.username)
			if err != nil {
				t.Fatalf("GetByUsername(%s) error = %v", tt.username, err)
			}
			if u.FullName != tt.fullName || u.Email != tt.email {
				t.Errorf("got %q <%s>, want %q <%s>", u.FullName, u.Email, tt.fullName, tt.email)
			}
			if diff := cmp.Diff([]Role{tt.role}, u.Roles); diff != "" {
				t.Errorf("Roles mismatch (-want +got):\n%s", diff)
			}
			if !u.Enabled {
				t.Error("seed account should be enabled")
			}
			ok, err := VerifyPassword("123456", u.PasswordHash)
			if err != nil || !ok {
				t.Errorf("default password should verify, ok=%v err=%v", ok, err)
			}
		})
	}

	roles, err := repo.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles() error = %v", err)
	}
	if len(roles) != 2 {
		t.Errorf("ListRoles() returned %d roles, want 2", len(roles))
	}
}

func TestSeedDefaults_Idempotent(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if _, err := SeedDefaults(ctx, repo, discardLogger()); err != nil {
		t.Fatalf("first SeedDefaults() error = %v", err)
	}

	created, err := SeedDefaults(ctx, repo, discardLogger())
	if err != nil {
		t.Fatalf("second SeedDefaults() error = %v", err)
	}
	if len(created) != 0 {
		t.Errorf("second run created %v, want nothing", created)
	}

	count, _ := repo.Count(ctx)
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

func TestSeedDefaults_KeepsExistingAccount(t *testing.T) {
	db := testDB(t)
	seedTestRoles(t, db)
	repo := NewUserRepository(db)
	ctx := context.Background()

	existing := seedTestUser(t, db, "admin", RoleAdmin)

	created, err := SeedDefaults(ctx, repo, discardLogger())
	if err != nil {
		t.Fatalf("SeedDefaults() error = %v", err)
	}
	if diff := cmp.Diff([]string{"user1"}, created); diff != "" {
		t.Errorf("created mismatch (-want +got):\n%s", diff)
	}

	admin, _ := repo.GetByUsername(ctx, "admin")
	if admin.ID != existing.ID {
		t.Error("existing admin should not be replaced")
	}
	if ok, _ := VerifyPassword("test-password", admin.PasswordHash); !ok {
		t.Error("existing admin password should be untouched")
	}
}
