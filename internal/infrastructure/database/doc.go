// Package database provides SQLite connectivity for the Galaxie bridge.
//
// The bridge persists the device registry (the devices it has announced to
// the home automation side) so that a restart can purge stale live-race
// devices left behind by a crash. This package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Forward and backward schema migrations from an embedded filesystem
//   - Health checks and connection lifecycle
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
