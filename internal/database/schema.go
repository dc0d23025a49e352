// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

package database

import (
	"context"
	"database/sql"
)

// createTables creates the records table. The legacy voucher table is NOT
// created here: existing deployments may or may not carry it, and the
// record writer auto-detects its presence (see HasLegacyVoucherTable).
func (db *DB) createTables() error {
	const recordsSchema = `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY,
		external_id TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		entry_id INTEGER,
		group_id INTEGER NOT NULL DEFAULT 0,
		taxon_id INTEGER NOT NULL DEFAULT 0,
		county_id INTEGER NOT NULL DEFAULT 0,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		accuracy REAL NOT NULL DEFAULT 0,
		elevation REAL NOT NULL DEFAULT 0,
		observed_at TEXT NOT NULL DEFAULT '',
		trs_township TEXT NOT NULL DEFAULT '',
		trs_range TEXT NOT NULL DEFAULT '',
		trs_section TEXT NOT NULL DEFAULT '',
		air_temp REAL NOT NULL DEFAULT 0,
		ground_temp REAL NOT NULL DEFAULT 0,
		temp_unit TEXT NOT NULL DEFAULT '',
		humidity REAL NOT NULL DEFAULT 0,
		sky TEXT NOT NULL DEFAULT '',
		moon_phase TEXT NOT NULL DEFAULT '',
		sex TEXT NOT NULL DEFAULT '',
		age TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL DEFAULT 1,
		diseased INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT '',
		visibility TEXT NOT NULL DEFAULT '',
		locale_text TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		admin_notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_records_user ON records(user_id);
	CREATE INDEX IF NOT EXISTS idx_records_entry ON records(entry_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_records_external ON records(external_id);
	`
	_, err := db.conn.Exec(recordsSchema)
	return err
}

// EnsureLegacyVoucherTable creates the legacy voucher-index table.
// Deployments that still serve pre-migration mobile clients call this at
// startup; everything else leaves the table absent and the writer skips
// legacy voucher rows.
func (db *DB) EnsureLegacyVoucherTable(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS record_vouchers (
		vid INTEGER PRIMARY KEY,
		record_id INTEGER NOT NULL,
		filename TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_record_vouchers_record ON record_vouchers(record_id);
	`
	_, err := db.conn.ExecContext(ctx, schema)
	return err
}

// HasLegacyVoucherTable reports whether the legacy voucher-index table
// exists in this database.
func (db *DB) HasLegacyVoucherTable(ctx context.Context) (bool, error) {
	var name string
	err := db.conn.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'record_vouchers'`,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
