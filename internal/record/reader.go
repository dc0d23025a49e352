// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

package record

import (
	"context"

	"github.com/herpatlas/herpatlas/internal/apperror"
	"github.com/herpatlas/herpatlas/internal/database"
	"github.com/herpatlas/herpatlas/internal/logging"
	"github.com/herpatlas/herpatlas/internal/media"
	"github.com/herpatlas/herpatlas/internal/models"
)

// Reader reconstructs denormalized record views for an owner by joining
// the records table against the content and taxonomy tables in one query.
type Reader struct {
	db      *database.DB
	library *media.Library
}

// NewReader wires a Reader.
func NewReader(db *database.DB, library *media.Library) *Reader {
	return &Reader{db: db, library: library}
}

// listQuery joins each record to its content entry (record type only, not
// trashed, owned by the requested user), left-joins the taxon and its
// parent for subspecies display, the group entry and the county term, and
// aggregates secondary-taxonomy terms attached to the taxon or its parent.
const listQuery = `
SELECT
	r.id, r.external_id, r.user_id,
	e.id, e.title, e.status,
	COALESCE(t.title, ''), COALESCE(pt.title, ''), COALESCE(g.title, ''), COALESCE(ct.name, ''),
	COALESCE((
		SELECT GROUP_CONCAT(st.name, ', ')
		FROM term_relationships tr
		JOIN terms st ON st.id = tr.term_id AND st.taxonomy = 'secondary'
		WHERE tr.entry_id = r.taxon_id
		   OR (t.parent_id > 0 AND tr.entry_id = t.parent_id)
	), ''),
	r.latitude, r.longitude, r.accuracy, r.elevation, r.observed_at,
	r.trs_township, r.trs_range, r.trs_section,
	r.air_temp, r.ground_temp, r.temp_unit, r.humidity, r.sky, r.moon_phase,
	r.sex, r.age, r.quantity, r.diseased,
	r.source, r.visibility, r.locale_text, r.notes
FROM records r
JOIN entries e ON e.id = r.entry_id AND e.type = 'record' AND e.status != 'trash'
LEFT JOIN entries t ON t.id = r.taxon_id AND t.status != 'trash'
LEFT JOIN entries pt ON pt.id = t.parent_id AND t.parent_id > 0
LEFT JOIN entries g ON g.id = r.group_id AND g.status != 'trash'
LEFT JOIN terms ct ON ct.id = r.county_id AND ct.taxonomy = 'county'
WHERE e.author_id = ?
ORDER BY r.id DESC`

// ListByOwner returns the owner's records, newest first, each with its
// normalized voucher list attached.
func (rd *Reader) ListByOwner(ctx context.Context, ownerID int64) ([]models.RecordView, error) {
	if ownerID <= 0 {
		return nil, apperror.Validation("user_id must be a positive integer")
	}

	rows, err := rd.db.Conn().QueryContext(ctx, listQuery, ownerID)
	if err != nil {
		return nil, apperror.StorageWrite("querying records", err)
	}
	defer rows.Close()

	views := make([]models.RecordView, 0)
	for rows.Next() {
		var v models.RecordView
		var diseased int64
		if err := rows.Scan(
			&v.ID, &v.ExternalID, &v.UserID,
			&v.PostID, &v.Title, &v.Status,
			&v.Species, &v.ParentSpecies, &v.Group, &v.County,
			&v.SecondaryTerms,
			&v.Latitude, &v.Longitude, &v.Accuracy, &v.Elevation, &v.ObservedAt,
			&v.Township, &v.Range, &v.Section,
			&v.AirTemp, &v.GroundTemp, &v.TempUnit, &v.Humidity, &v.Sky, &v.MoonPhase,
			&v.Sex, &v.Age, &v.Quantity, &diseased,
			&v.Source, &v.Visibility, &v.Locale, &v.Notes,
		); err != nil {
			return nil, apperror.StorageWrite("scanning record row", err)
		}
		v.Diseased = diseased != 0
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StorageWrite("iterating record rows", err)
	}

	for i := range views {
		items, err := rd.library.Items(ctx, views[i].ID, views[i].PostID)
		if err != nil {
			// A record without browsable media is better than no record.
			logging.Err(err).Int64("record_id", views[i].ID).Msg("failed to load voucher media")
			items = nil
		}
		if items == nil {
			items = []models.MediaItem{}
		}
		views[i].Vouchers = items
	}
	return views, nil
}
