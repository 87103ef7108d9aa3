// demo-security - credential issuance and request authentication service
//
// This is the main entry point for the demo-security application. It issues
// short-lived signed access tokens and long-lived opaque renewal tokens,
// and gates the HTTP API on them.
//
// Session events are recorded to the audit log, streamed to administrators
// over WebSocket and, when configured, published to MQTT and written to
// InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/ngocmanh2004/demo-security/migrations"

	"github.com/ngocmanh2004/demo-security/internal/api"
	"github.com/ngocmanh2004/demo-security/internal/audit"
	"github.com/ngocmanh2004/demo-security/internal/auth"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/config"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/database"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/influxdb"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/logging"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/mqtt"
	"github.com/ngocmanh2004/demo-security/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence with matching teardown
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting demo-security",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	users := auth.NewUserRepository(db.DB)
	if cfg.Security.SeedDefaults {
		created, seedErr := auth.SeedDefaults(ctx, users, log.Logger)
		if seedErr != nil {
			return fmt.Errorf("seeding defaults: %w", seedErr)
		}
		if len(created) > 0 {
			log.Warn("default accounts created; change their passwords", "usernames", created)
		}
	}

	codec, err := auth.NewTokenCodec(cfg.Security.JWT.Secret, cfg.Security.JWT.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("creating token codec: %w", err)
	}

	gate, err := auth.NewPathMatcher(cfg.Security.PublicPaths)
	if err != nil {
		return fmt.Errorf("compiling public paths: %w", err)
	}

	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, log.Logger)
	hub := api.NewHub(cfg.WebSocket, log)
	sinks := auth.MultiSink{recorder, hub}
	drainers := []func(context.Context){recorder.Run}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log)
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttSink := telemetry.NewMQTTSink(mqttClient, mqttClient.Topics().AuthEvent, log.Logger)
		drainers = append(drainers, mqttSink.Run)
		sinks = append(sinks, mqttSink)
	} else {
		log.Info("MQTT disabled")
	}

	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		sinks = append(sinks, telemetry.NewInfluxSink(influxClient))
	}

	// Event sinks stop after the API server so events from in-flight
	// requests are still delivered, and before the clients they write to.
	sinkCtx, stopSinks := context.WithCancel(context.Background())
	var sinkWG sync.WaitGroup
	for _, drain := range drainers {
		sinkWG.Add(1)
		go func() {
			defer sinkWG.Done()
			drain(sinkCtx)
		}()
	}
	defer func() {
		stopSinks()
		sinkWG.Wait()
		log.Info("event sinks drained")
	}()

	service, err := auth.NewService(users, auth.NewRenewalStore(db.DB), codec, cfg.Security.JWT.RenewalTokenTTL,
		auth.WithEventSink(sinks),
		auth.WithLogger(log.Logger),
	)
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}

	if cfg.Security.SweepInterval > 0 {
		go service.RunSweeper(ctx, cfg.Security.SweepInterval)
		log.Info("renewal token sweeper started", "interval", cfg.Security.SweepInterval)
	}

	server, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Service: service,
		Gate:    gate,
		Audit:   auditRepo,
		DB:      db,
		Hub:     hub,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"public_paths", len(gate.Patterns()),
		"access_ttl", cfg.Security.JWT.AccessTokenTTL,
		"renewal_ttl", cfg.Security.JWT.RenewalTokenTTL,
	)

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Event sinks
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database
	log.Info("demo-security stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DEMOSEC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DEMOSEC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
