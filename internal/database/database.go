package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/visabot-io/visabot/internal/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DB wraps the SQL connection together with the driver flavor so queries can
// pick the right placeholder syntax.
type DB struct {
	conn   *sql.DB
	dbType string
	log    *zap.SugaredLogger
}

// Init opens the configured database, verifies the connection and runs
// migrations.
func Init(cfg *config.Config, log *zap.SugaredLogger) (*DB, error) {
	var (
		conn *sql.DB
		err  error
	)

	switch cfg.DatabaseType {
	case "postgres":
		conn, err = openPostgres(cfg)
	case "sqlite", "":
		conn, err = openSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DatabaseType)
	}
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, dbType: cfg.DatabaseType, log: log}
	if db.dbType == "" {
		db.dbType = "sqlite"
	}

	if err := db.runMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Infow("database initialized", "type", db.dbType)
	return db, nil
}

func openPostgres(cfg *config.Config) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost,
		cfg.DatabasePort,
		cfg.DatabaseUser,
		cfg.DatabasePassword,
		cfg.DatabaseName,
		cfg.DatabaseSSLMode,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	if cfg.DatabaseMaxConns > 0 {
		conn.SetMaxOpenConns(cfg.DatabaseMaxConns)
	}
	if cfg.DatabaseMaxIdle > 0 {
		conn.SetMaxIdleConns(cfg.DatabaseMaxIdle)
	}
	if cfg.DatabaseConnMaxLifetime != "" && cfg.DatabaseConnMaxLifetime != "0" {
		if lifetime, err := time.ParseDuration(cfg.DatabaseConnMaxLifetime); err == nil {
			conn.SetConnMaxLifetime(lifetime)
		}
	}

	return conn, nil
}

func openSQLite(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", cfg.DatabasePath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	// SQLite handles one writer at a time; keep the pool small.
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// rebind converts `?` placeholders to `$N` for postgres.
func (db *DB) rebind(query string) string {
	if db.dbType != "postgres" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
