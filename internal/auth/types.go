package auth

import (
	"errors"
	"regexp"
	"slices"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// Role is a named authority granted to a principal.
type Role string

const (
	// RoleAdmin manages accounts and reads the audit trail.
	RoleAdmin Role = "ROLE_ADMIN"

	// RoleUser is the default role for self-registered accounts.
	RoleUser Role = "ROLE_USER"
)

// RoleInfo is a row of the roles table.
type RoleInfo struct {
	Name        Role      `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is a principal that can log in.
//
// Username is the token subject: it is unique and never changes after
// creation.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // never serialised
	Enabled      bool      `json:"enabled"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole reports whether the user currently holds role.
func (u *User) HasRole(role Role) bool {
	return slices.Contains(u.Roles, role)
}

// RenewalToken is the stored form of an opaque renewal token. Only the
// SHA-256 hash of the raw value is kept.
type RenewalToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"` // never serialised
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the token is past its expiry at now.
func (t *RenewalToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Session is the credential pair handed to a client after login or renewal.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	AccessTTL        time.Duration
	RenewalToken     string
	RenewalExpiresAt time.Time
	RenewalTTL       time.Duration
	Username         string
	Roles            []Role
}

// Registration carries a self-service sign-up request.
type Registration struct {
	Username        string
	Email           string
	FullName        string
	Password        string
	ConfirmPassword string
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is disabled")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already registered")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidInput       = errors.New("invalid input")

	ErrTokenMalformed    = errors.New("token is malformed")
	ErrTokenBadSignature = errors.New("token signature is invalid")
	ErrTokenExpired      = errors.New("token has expired")

	ErrRenewalNotFound = errors.New("renewal token not found")
	ErrRenewalExpired  = errors.New("renewal token has expired")
	ErrTokenGeneration = errors.New("could not generate a unique renewal token")
)
