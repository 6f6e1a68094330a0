package database

import (
	"fmt"
)

// Migration represents a single schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

func migrationsFor(dbType string) []Migration {
	if dbType == "postgres" {
		return postgresMigrations()
	}
	return sqliteMigrations()
}

func postgresMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				id UUID PRIMARY KEY,
				username VARCHAR(255) NOT NULL,
				password VARCHAR(255) NOT NULL,
				favorite_food VARCHAR(255) NOT NULL DEFAULT '',
				pet_name VARCHAR(255) NOT NULL DEFAULT '',
				sibling VARCHAR(255) NOT NULL DEFAULT '',
				email VARCHAR(255) NOT NULL,
				consular_post VARCHAR(255) NOT NULL DEFAULT 'ABU DHABI',
				check_days INTEGER NOT NULL DEFAULT 1000,
				status INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				last_checked TEXT NOT NULL DEFAULT ''
			)`,
		},
		{
			Version:     2,
			Description: "Index pending users by status",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_users_status ON users(status)`,
		},
	}
}

func sqliteMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				username TEXT NOT NULL,
				password TEXT NOT NULL,
				favorite_food TEXT NOT NULL DEFAULT '',
				pet_name TEXT NOT NULL DEFAULT '',
				sibling TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL,
				consular_post TEXT NOT NULL DEFAULT 'ABU DHABI',
				check_days INTEGER NOT NULL DEFAULT 1000,
				status INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				last_checked TEXT NOT NULL DEFAULT ''
			)`,
		},
		{
			Version:     2,
			Description: "Index pending users by status",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_users_status ON users(status)`,
		},
	}
}

// runMigrations applies any schema versions not yet recorded in the
// schema_migrations table.
func (db *DB) runMigrations() error {
	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int
	if err := db.conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrationsFor(db.dbType) {
		if m.Version <= current {
			continue
		}
		db.log.Infow("applying migration", "version", m.Version, "description", m.Description)
		if _, err := db.conn.Exec(m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := db.conn.Exec(db.rebind(`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`),
			m.Version, m.Description); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}

	return nil
}
