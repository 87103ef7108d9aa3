package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// SeedStore is what SeedDefaults needs from the user repository.
type SeedStore interface {
	EnsureRole(ctx context.Context, name Role, description string) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, user *User) error
}

type seedAccount struct {
	username string
	password string
	fullName string
	email    string
	role     Role
}

var (
	defaultRoles = []RoleInfo{
		{Name: RoleAdmin, Description: "Administrator role"},
		{Name: RoleUser, Description: "Standard user role"},
	}

	defaultAccounts = []seedAccount{
		{username: "admin", password: "123456", fullName: "Administrator", email: "admin@example.com", role: RoleAdmin},
		{username: "user1", password: "123456", fullName: "User One", email: "user1@example.com", role: RoleUser},
	}
)

// SeedDefaults ensures the built-in roles and demo accounts exist. Existing
// roles and accounts are left untouched, so it is safe to run on every boot.
// Returns the usernames that were created.
func SeedDefaults(ctx context.Context, store SeedStore, logger *slog.Logger) ([]string, error) {
	for _, r := range defaultRoles {
		if err := store.EnsureRole(ctx, r.Name, r.Description); err != nil {
			return nil, fmt.Errorf("seeding role %s: %w", r.Name, err)
		}
	}

	var created []string
	for _, a := range defaultAccounts {
		_, err := store.GetByUsername(ctx, a.username)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrUserNotFound) {
			return created, fmt.Errorf("checking seed account %s: %w", a.username, err)
		}

		hash, err := HashPassword(a.password)
		if err != nil {
			return created, fmt.Errorf("hashing seed password: %w", err)
		}

		user := &User{
			Username:     a.username,
			FullName:     a.fullName,
			Email:        a.email,
			PasswordHash: hash,
			Enabled:      true,
			Roles:        []Role{a.role},
		}
		if err := store.Create(ctx, user); err != nil {
			return created, fmt.Errorf("creating seed account %s: %w", a.username, err)
		}
		created = append(created, a.username)

		logger.Warn("seed account created",
			"username", a.username,
			"role", string(a.role),
			"action_required", "change the default password before exposing this service",
		)
	}

	if len(created) == 0 {
		logger.Info("seed accounts exist, nothing to create")
	}
	return created, nil
}
