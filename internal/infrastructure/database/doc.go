// Package database provides SQLite connectivity for Gatekeeper.
//
// This package manages:
//   - Database connection with WAL mode so lookups never wait on writers
//   - Schema migrations loaded from an fs.FS (see the migrations package)
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600; it holds password hashes
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/gatekeeper.db", WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.SQLite()); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Migrations are additive: new columns must
// be nullable or carry a default.
package database
