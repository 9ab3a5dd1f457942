// Package database opens the bridge's SQLite store and applies its schema
// migrations.
//
// The store holds config entries only; player state lives in memory and is
// rebuilt by polling. Connections use WAL mode when enabled and a single
// writer, matching SQLite's locking model.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Each file is applied in its own transaction
// and recorded in schema_migrations.
package database
