package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ngocmanh2004/demo-security/internal/infrastructure/database"
)

const (
	// renewalTokenBytes is the entropy of a raw renewal token (256-bit).
	renewalTokenBytes = 32

	// maxPutAttempts bounds retries after a token_hash collision.
	maxPutAttempts = 3

	tokenHashColumn = "renewal_tokens.token_hash"
)

// RenewalStore persists at most one renewal token per principal in SQLite.
type RenewalStore struct {
	db       *sql.DB
	generate func() (string, error)
}

// NewRenewalStore creates a SQLite-backed renewal token store.
func NewRenewalStore(db *sql.DB) *RenewalStore {
	return &RenewalStore{db: db, generate: generateRenewalToken}
}

// HashToken computes the SHA-256 hash of a raw token for storage.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

func generateRenewalToken() (string, error) {
	b := make([]byte, renewalTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Put creates a fresh renewal token for userID, replacing any token the
// principal already holds, and returns the raw value. createdAt and
// expiresAt are stored as given, so both come from the caller's clock. The
// replacement is a single transaction so readers never observe zero or two
// live tokens.
func (s *RenewalStore) Put(ctx context.Context, userID string, createdAt, expiresAt time.Time) (string, error) {
	for attempt := 1; attempt <= maxPutAttempts; attempt++ {
		raw, err := s.generate()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrTokenGeneration, err)
		}

		err = s.replace(ctx, userID, raw, createdAt, expiresAt)
		if err == nil {
			return raw, nil
		}
		if !database.IsUniqueViolation(err, tokenHashColumn) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %d attempts collided", ErrTokenGeneration, maxPutAttempts)
}

func (s *RenewalStore) replace(ctx context.Context, userID, raw string, createdAt, expiresAt time.Time) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM renewal_tokens WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("deleting previous renewal token: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO renewal_tokens (id, user_id, token_hash, expires_at, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			"rnw-"+uuid.NewString()[:16], userID, HashToken(raw),
			expiresAt.UTC().Format(time.RFC3339), createdAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("inserting renewal token: %w", err)
		}
		return nil
	})
}

// Get returns the stored record for a raw token, expired or not.
func (s *RenewalStore) Get(ctx context.Context, raw string) (*RenewalToken, error) {
	var t RenewalToken
	var expiresAt, createdAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, created_at
		 FROM renewal_tokens WHERE token_hash = ?`, HashToken(raw),
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRenewalNotFound
		}
		return nil, fmt.Errorf("getting renewal token: %w", err)
	}

	if t.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, fmt.Errorf("parsing renewal token expiry %q: %w", expiresAt, err)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &t, nil
}

// Delete removes the token with the given raw value. Deleting an unknown
// token is not an error.
func (s *RenewalStore) Delete(ctx context.Context, raw string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM renewal_tokens WHERE token_hash = ?", HashToken(raw)); err != nil {
		return fmt.Errorf("deleting renewal token: %w", err)
	}
	return nil
}

// DeleteAllFor removes every renewal token held by userID.
func (s *RenewalStore) DeleteAllFor(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM renewal_tokens WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("deleting renewal tokens for user: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens whose expiry is before now and returns how
// many were removed.
func (s *RenewalStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM renewal_tokens WHERE expires_at < ?", now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("deleting expired renewal tokens: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}
