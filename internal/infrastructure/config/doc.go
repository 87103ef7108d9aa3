// Package config handles loading and validating demo-security configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with DEMOSEC_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The JWT signing secret should be set via DEMOSEC_JWT_SECRET
//   - Secrets shorter than 32 characters are rejected at startup
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Security.JWT.AccessTokenTTL)
package config
