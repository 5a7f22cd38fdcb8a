// Package db provides the SQLite store behind xowlpack's build history and
// artifact cache index.
package db

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/common/logs"
	"github.com/cenotelie/xowl-toolkit/src/common/paths"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db/migrations"
	_ "github.com/mattn/go-sqlite3"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the db package and its migrations
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
		migrations.SetLogger(l)
	}
}

// Database wraps the SQLite connection
type Database struct {
	db        *sql.DB
	path      string
	closeOnce sync.Once
}

// Config holds the database configuration
type Config struct {
	// Path is the database file; empty keeps the database in memory
	Path string
}

// DefaultConfig returns a default database configuration
func DefaultConfig() Config {
	return Config{
		Path: "~/.xowlpack/history.db",
	}
}

// New opens the database and applies pending migrations
func New(cfg Config) (*Database, error) {
	dsn := ":memory:"
	path := ""
	if cfg.Path != "" {
		path = paths.Expand(cfg.Path)
		if err := paths.EnsureDir(path); err != nil {
			return nil, errors.ErrDirectoryCreation.
				WithMessagef("failed to create database directory for %s", path).
				WithCause(err)
		}
		dsn = "file:" + path + "?_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.ErrDatabaseConnection.WithCause(err)
	}

	// A single connection keeps in-memory databases coherent and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.ErrDatabaseConnection.WithMessage("failed to enable foreign keys").WithCause(err)
	}

	if err := migrations.NewRunner(db).Run(); err != nil {
		db.Close()
		return nil, errors.ErrDatabaseConnection.WithMessage("failed to migrate database").WithCause(err)
	}

	log.Debug("Database opened", "path", dsn)

	return &Database{
		db:   db,
		path: path,
	}, nil
}

// DB returns the underlying database connection
func (d *Database) DB() *sql.DB {
	return d.db
}

// Path returns the database file path, empty for an in-memory database
func (d *Database) Path() string {
	return d.path
}

// Close closes the connection
func (d *Database) Close() error {
	var closeErr error
	d.closeOnce.Do(func() {
		if err := d.db.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close database: %w", err)
		}
	})
	return closeErr
}
