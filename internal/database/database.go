// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package database provides SQLite access for the bespoke relational
// tables: the records table and the legacy voucher index. The content and
// taxonomy tables share the same database file (see internal/content) so
// the record reader can join across both stores in one query.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/herpatlas/herpatlas/internal/config"
)

// DB wraps the SQLite connection and provides data access for the records
// and legacy voucher tables.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database, applies pragmas and creates the records
// schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." && !strings.HasPrefix(cfg.Path, ":memory:") {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	conn, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.configure(cfg.BusyTimeoutMS); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if err := db.createTables(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// NewMemory opens an in-memory database for tests.
func NewMemory() (*DB, error) {
	return New(&config.DatabaseConfig{Path: ":memory:", BusyTimeoutMS: 5000})
}

func (db *DB) configure(busyTimeoutMS int) error {
	if busyTimeoutMS <= 0 {
		busyTimeoutMS = 5000
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	// The allocator serializes writers; a single connection avoids
	// SQLITE_BUSY storms between its max-id read and the insert.
	db.conn.SetMaxOpenConns(1)
	return nil
}

// Conn returns the underlying SQL connection. The content store and the
// record reader share it so cross-store joins stay in one database.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Ping checks that the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}
