package auth

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ngocmanh2004/demo-security/internal/infrastructure/config"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/database"
	_ "github.com/ngocmanh2004/demo-security/migrations"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

// testDB opens a temporary SQLite database with every migration applied.
// The database file is removed when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(t.Context()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db.DB
}

// seedTestRoles creates the two built-in roles.
func seedTestRoles(t *testing.T, db *sql.DB) {
	t.Helper()

	repo := NewUserRepository(db)
	for _, r := range []Role{RoleAdmin, RoleUser} {
		if err := repo.EnsureRole(t.Context(), r, string(r)); err != nil {
			t.Fatalf("ensuring role %s: %v", r, err)
		}
	}
}

// seedTestUser inserts an enabled user with password "test-password".
func seedTestUser(t *testing.T, db *sql.DB, username string, roles ...Role) *User {
	t.Helper()

	hash, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	repo := NewUserRepository(db)
	user := &User{
		Username:     username,
		FullName:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Enabled:      true,
		Roles:        roles,
	}
	if err := repo.Create(t.Context(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}

// fakeClock is a settable clock for TTL boundary tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSink collects emitted events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) HandleEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventKind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}
