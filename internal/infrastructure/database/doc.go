// Package database provides the SQLite store used to persist keep-open
// switch state across bridge restarts.
//
// The bridge is the only writer, so the pool is pinned to a single
// connection. WAL mode is on by default so an operator can inspect the file
// with the sqlite3 shell while the bridge runs.
//
// Usage:
//
//	db, err := database.Open(database.FromConfig(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations live in the top-level migrations package, which registers
// itself through MigrationsFS when imported. Files are named
// YYYYMMDD_HHMMSS_description.up.sql with a matching .down.sql.
package database
