// Package logging provides structured logging for demo-security.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the service.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//	logger.Error("failed to open database", "error", err)
//
// # Security
//
// Never log passwords, access tokens or renewal tokens. The auth package
// exposes Fingerprint for correlating a token across log lines without
// revealing it.
package logging
