package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ngocmanh2004/demo-security/internal/infrastructure/config"
)

func TestOpen(t *testing.T) {
	t.Run("creates database file and directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

		db, err := Open(context.Background(), config.DatabaseConfig{
			Path:        dbPath,
			WALMode:     true,
			BusyTimeout: 5,
		})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		info, err := os.Stat(dbPath)
		if err != nil {
			t.Fatalf("database file was not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != filePermissions {
			t.Errorf("file mode = %o, want %o", perm, filePermissions)
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("rejects empty path", func(t *testing.T) {
		if _, err := Open(context.Background(), config.DatabaseConfig{}); err == nil {
			t.Fatal("Open() with empty path should fail")
		}
	})

	t.Run("enables foreign keys", func(t *testing.T) {
		db := openTestDB(t)

		var enabled int
		if err := db.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&enabled); err != nil {
			t.Fatalf("PRAGMA foreign_keys error = %v", err)
		}
		if enabled != 1 {
			t.Errorf("foreign_keys = %d, want 1", enabled)
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %v, want 1", got)
	}
}

func TestWithTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE tx_test (id INTEGER PRIMARY KEY, value TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	count := func() int {
		t.Helper()
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tx_test").Scan(&n); err != nil {
			t.Fatalf("COUNT error = %v", err)
		}
		return n
	}

	t.Run("commits on success", func(t *testing.T) {
		err := WithTx(ctx, db.DB, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO tx_test (value) VALUES ('ok')")
			return err
		})
		if err != nil {
			t.Fatalf("WithTx() error = %v", err)
		}
		if got := count(); got != 1 {
			t.Errorf("rows = %d, want 1", got)
		}
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithTx(ctx, db.DB, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, "INSERT INTO tx_test (value) VALUES ('fail')"); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("WithTx() error = %v, want %v", err, boom)
		}
		if got := count(); got != 1 {
			t.Errorf("rows = %d, want 1 (insert rolled back)", got)
		}
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
			if got := count(); got != 1 {
				t.Errorf("rows = %d, want 1 after panic", got)
			}
		}()

		_ = WithTx(ctx, db.DB, func(tx *sql.Tx) error { //nolint:errcheck // panics
			if _, err := tx.ExecContext(ctx, "INSERT INTO tx_test (value) VALUES ('panic')"); err != nil {
				return err
			}
			panic("kaput")
		})
	})
}

func TestIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE uniq_test (
			id    INTEGER PRIMARY KEY,
			email TEXT UNIQUE,
			code  TEXT UNIQUE
		)`); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO uniq_test (email, code) VALUES ('a@example.com', 'x')"); err != nil {
		t.Fatalf("INSERT error = %v", err)
	}

	_, err := db.ExecContext(ctx, "INSERT INTO uniq_test (email, code) VALUES ('a@example.com', 'y')")
	if err == nil {
		t.Fatal("expected unique violation")
	}

	if !IsUniqueViolation(err, "") {
		t.Errorf("IsUniqueViolation(err, \"\") = false, want true")
	}
	if !IsUniqueViolation(err, "uniq_test.email") {
		t.Errorf("IsUniqueViolation(err, email) = false, want true")
	}
	if IsUniqueViolation(err, "uniq_test.code") {
		t.Errorf("IsUniqueViolation(err, code) = true, want false")
	}
	if IsUniqueViolation(errors.New("UNIQUE constraint failed: uniq_test.email"), "") {
		t.Errorf("plain errors must not be treated as sqlite violations")
	}
	if IsUniqueViolation(nil, "") {
		t.Errorf("IsUniqueViolation(nil) = true, want false")
	}
}

// openTestDB creates a temporary database closed at test cleanup.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	return db
}
