package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ngocmanh2004/demo-security/internal/infrastructure/database"
)

// SQLiteUserRepository stores principals and their roles in SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = "id, username, full_name, email, password_hash, enabled, created_at, updated_at"

// Create inserts a user together with its role grants. The ID is generated
// if empty. Every role must already exist in the roles table.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	user.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	user.UpdatedAt = user.CreatedAt

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID, user.Username, user.FullName, nullString(user.Email),
			user.PasswordHash, boolToInt(user.Enabled), now, now,
		); err != nil {
			return err
		}

		for _, role := range user.Roles {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO user_roles (user_id, role_name) VALUES (?, ?)",
				user.ID, string(role),
			); err != nil {
				return fmt.Errorf("granting role %s: %w", role, err)
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case database.IsUniqueViolation(err, "users.username"):
			return ErrUsernameExists
		case database.IsUniqueViolation(err, "users.email"):
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetByUsername retrieves a user by username.
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
}

// GetByEmail retrieves a user by email address, compared case-insensitively.
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE email = ? COLLATE NOCASE", email)
}

// List returns all users ordered by creation date, with their roles.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at ASC, username ASC")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	grants, err := r.allRoles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Roles = grants[users[i].ID]
		if users[i].Roles == nil {
			users[i].Roles = []Role{}
		}
	}
	return users, nil
}

// SetEnabled enables or disables the user with the given ID.
func (r *SQLiteUserRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return r.updateOne(ctx, "setting enabled flag",
		"UPDATE users SET enabled = ?, updated_at = ? WHERE id = ?",
		boolToInt(enabled), time.Now().UTC().Format(time.RFC3339), id)
}

// UpdatePassword replaces the user's password hash.
func (r *SQLiteUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateOne(ctx, "updating password",
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash, time.Now().UTC().Format(time.RFC3339), id)
}

func (r *SQLiteUserRepository) updateOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Count returns the total number of users.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// EnsureRole creates the role if it does not exist. An existing role keeps
// its description.
func (r *SQLiteUserRepository) EnsureRole(ctx context.Context, name Role, description string) error {
	if _, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO roles (name, description, created_at) VALUES (?, ?, ?)",
		string(name), description, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("ensuring role %s: %w", name, err)
	}
	return nil
}

// ListRoles returns every defined role ordered by name.
func (r *SQLiteUserRepository) ListRoles(ctx context.Context) ([]RoleInfo, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name, description, created_at FROM roles ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	roles := []RoleInfo{}
	for rows.Next() {
		var ri RoleInfo
		var name, createdAt string
		if err := rows.Scan(&name, &ri.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		ri.Name = Role(name)
		ri.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		roles = append(roles, ri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}
	return roles, nil
}

func (r *SQLiteUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}

	if u.Roles, err = r.rolesFor(ctx, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *SQLiteUserRepository) rolesFor(ctx context.Context, userID string) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT role_name FROM user_roles WHERE user_id = ? ORDER BY role_name", userID)
	if err != nil {
		return nil, fmt.Errorf("loading roles: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, Role(name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}
	return roles, nil
}

func (r *SQLiteUserRepository) allRoles(ctx context.Context) (map[string][]Role, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT user_id, role_name FROM user_roles")
	if err != nil {
		return nil, fmt.Errorf("loading role grants: %w", err)
	}
	defer rows.Close()

	grants := make(map[string][]Role)
	for rows.Next() {
		var userID, name string
		if err := rows.Scan(&userID, &name); err != nil {
			return nil, fmt.Errorf("scanning role grant: %w", err)
		}
		grants[userID] = append(grants[userID], Role(name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating role grants: %w", err)
	}

	for _, roles := range grants {
		sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	}
	return grants, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*User, error) {
	var u User
	var email sql.NullString
	var enabled int
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Username, &u.FullName, &email,
		&u.PasswordHash, &enabled, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Enabled = enabled != 0
	u.Email = email.String
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &u, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
