package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ngocmanh2004/demo-security/internal/infrastructure/config"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/database"
)

const testSecret = "test-secret-for-development-only-0123456789"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("DEMOSEC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_ShortSecret verifies run refuses a JWT secret below the minimum length.
func TestRun_ShortSecret(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	t.Setenv("DEMOSEC_CONFIG", writeConfig(t, `
database:
  path: "`+dbPath+`"
security:
  jwt:
    secret: "too-short"
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with a short JWT secret")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	t.Setenv("DEMOSEC_CONFIG", writeConfig(t, `
database:
  path: ""
security:
  jwt:
    secret: "`+testSecret+`"
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_SuccessfulStartupAndShutdown starts the service with MQTT and
// InfluxDB disabled and expects a clean shutdown when the context ends.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	t.Setenv("DEMOSEC_CONFIG", writeConfig(t, `
database:
  path: "`+dbPath+`"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: warn
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18451

security:
  jwt:
    secret: "`+testSecret+`"
    access_token_ttl: 15m
    renewal_token_ttl: 24h
  sweep_interval: 1m
  seed_defaults: true
`))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("DEMOSEC_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("DEMOSEC_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestHealthCheck_OptionalClients verifies nil MQTT and InfluxDB clients are skipped.
func TestHealthCheck_OptionalClients(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "health.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := healthCheck(ctx, db, nil, nil); err != nil {
		t.Errorf("healthCheck() = %v, want nil", err)
	}
}
