// Package database provides SQLite connectivity for demo-security.
//
// This package manages:
//   - Database connection with WAL mode and a busy timeout
//   - Embedded schema migrations tracked in schema_migrations
//   - Transaction and constraint-violation helpers shared by the stores
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is chmod 0600
//   - Renewal tokens are stored as SHA-256 hashes, never raw
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are files named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, registered by the migrations package.
package database
