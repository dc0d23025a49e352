// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// records.go - CRUD for the records table and the legacy voucher index.
//
// Primary keys come from the namespace allocator, never from SQLite's
// rowid assignment, so every insert passes an explicit id and collisions
// are detected and retried by the writer.
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/herpatlas/herpatlas/internal/models"
)

// InsertRecord inserts a record row with its allocator-assigned id.
// Use IsKeyCollision on the returned error to distinguish a primary-key
// collision (retryable with a fresh id) from other failures.
func (db *DB) InsertRecord(ctx context.Context, r *models.Record) error {
	const query = `
	INSERT INTO records (
		id, external_id, user_id, entry_id,
		group_id, taxon_id, county_id,
		latitude, longitude, accuracy, elevation, observed_at,
		trs_township, trs_range, trs_section,
		air_temp, ground_temp, temp_unit, humidity, sky, moon_phase,
		sex, age, quantity, diseased,
		source, visibility, locale_text, notes, admin_notes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		r.ID, r.ExternalID, r.UserID, r.EntryID,
		r.GroupID, r.TaxonID, r.CountyID,
		r.Latitude, r.Longitude, r.Accuracy, r.Elevation, r.ObservedAt,
		r.Township, r.RangeCode, r.Section,
		r.AirTemp, r.GroundTemp, r.TempUnit, r.Humidity, r.Sky, r.MoonPhase,
		r.Sex, r.Age, r.Quantity, boolToInt(r.Diseased),
		r.Source, r.Visibility, r.LocaleText, r.Notes, r.AdminNotes,
	)
	if err != nil {
		return fmt.Errorf("inserting record %d: %w", r.ID, err)
	}
	return nil
}

// IsKeyCollision reports whether err is a primary-key or unique constraint
// violation. The modernc.org/sqlite driver reports constraint failures as
// "UNIQUE constraint failed: <table>.<column>" text; there is no stable
// typed error to match on across driver versions.
func IsKeyCollision(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// MaxRecordID returns the highest positive record id, or 0 when the table
// holds none. Rows with id 0 are corrupt legacy data and excluded.
func (db *DB) MaxRecordID(ctx context.Context) (int64, error) {
	var maxID int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM records WHERE id > 0`,
	).Scan(&maxID)
	return maxID, err
}

// SetRecordEntryID points a record at its content entry, matching by
// record id. Returns the number of rows updated so the writer can fall
// back to external-id matching when an inconsistent intermediate state
// left the id-based update with nothing to touch.
func (db *DB) SetRecordEntryID(ctx context.Context, recordID, entryID int64) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE records SET entry_id = ? WHERE id = ?`, entryID, recordID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetRecordEntryIDByExternalID is the defensive double-write path: links
// by the random external identifier when the id-based update touched zero
// rows.
func (db *DB) SetRecordEntryIDByExternalID(ctx context.Context, externalID string, entryID int64) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE records SET entry_id = ? WHERE external_id = ?`, entryID, externalID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearRecordEntryID nulls a record's content reference. Called when
// content-entry creation fails after the row exists, so no orphan pointer
// is left dangling.
func (db *DB) ClearRecordEntryID(ctx context.Context, recordID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE records SET entry_id = NULL WHERE id = ?`, recordID)
	return err
}

// GetRecord fetches one record row by id.
func (db *DB) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	const query = `
	SELECT id, external_id, user_id, entry_id,
		group_id, taxon_id, county_id,
		latitude, longitude, accuracy, elevation, observed_at,
		trs_township, trs_range, trs_section,
		air_temp, ground_temp, temp_unit, humidity, sky, moon_phase,
		sex, age, quantity, diseased,
		source, visibility, locale_text, notes, admin_notes, created_at
	FROM records WHERE id = ?`

	r := &models.Record{}
	var diseased int64
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.ExternalID, &r.UserID, &r.EntryID,
		&r.GroupID, &r.TaxonID, &r.CountyID,
		&r.Latitude, &r.Longitude, &r.Accuracy, &r.Elevation, &r.ObservedAt,
		&r.Township, &r.RangeCode, &r.Section,
		&r.AirTemp, &r.GroundTemp, &r.TempUnit, &r.Humidity, &r.Sky, &r.MoonPhase,
		&r.Sex, &r.Age, &r.Quantity, &diseased,
		&r.Source, &r.Visibility, &r.LocaleText, &r.Notes, &r.AdminNotes, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Diseased = diseased != 0
	return r, nil
}

// DeleteRecord removes a record row. Used when the resolving phase already
// passed but a later per-animal stage declared the row unsalvageable.
func (db *DB) DeleteRecord(ctx context.Context, id int64) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	return err
}

// InsertLegacyVoucher inserts a legacy voucher-index row with its
// allocator-assigned vid.
func (db *DB) InsertLegacyVoucher(ctx context.Context, v *models.LegacyVoucher) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO record_vouchers (vid, record_id, filename) VALUES (?, ?, ?)`,
		v.VID, v.RecordID, v.Filename)
	if err != nil {
		return fmt.Errorf("inserting legacy voucher %d: %w", v.VID, err)
	}
	return nil
}

// MaxLegacyVoucherID returns the highest positive vid, or 0 when the table
// is empty or absent.
func (db *DB) MaxLegacyVoucherID(ctx context.Context) (int64, error) {
	exists, err := db.HasLegacyVoucherTable(ctx)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	var maxID int64
	err = db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(vid), 0) FROM record_vouchers WHERE vid > 0`,
	).Scan(&maxID)
	return maxID, err
}

// LegacyVouchersForRecord lists the legacy voucher rows for one record,
// oldest first.
func (db *DB) LegacyVouchersForRecord(ctx context.Context, recordID int64) ([]models.LegacyVoucher, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT vid, record_id, filename FROM record_vouchers WHERE record_id = ? ORDER BY vid`,
		recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vouchers []models.LegacyVoucher
	for rows.Next() {
		var v models.LegacyVoucher
		if err := rows.Scan(&v.VID, &v.RecordID, &v.Filename); err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
