package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	_ "github.com/lib/pq"
)

// EnsureDatabase creates the database named in dsn when it does not exist
// yet, connecting to the server's default database with the same
// credentials. Meant for development and first-boot convenience;
// production setups normally provision the database out of band.
func EnsureDatabase(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse DSN: %w", err)
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return fmt.Errorf("DSN has no database name")
	}

	admin := *u
	admin.Path = "/postgres"

	db, err := sql.Open("postgres", admin.String())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	var exists bool
	err = db.QueryRow(`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}

	if exists {
		return nil
	}

	slog.Info("creating database", "name", dbName)

	// Database names cannot be bound as parameters; quote the identifier
	if _, err := db.Exec(fmt.Sprintf(`CREATE DATABASE %q`, dbName)); err != nil {
		return fmt.Errorf("failed to create database %s: %w", dbName, err)
	}

	return nil
}
