// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package models defines the domain types shared across the record
// pipeline and the HTTP layer.
package models

import "time"

// Record is one animal-observation row in the relational store. Its id is
// assigned by the namespace allocator, never by storage auto-increment.
// EntryID points at the corresponding content entry and is nil until that
// entry has been created; a non-nil EntryID implies a content entry whose
// author matches UserID.
type Record struct {
	ID         int64  // allocator-assigned primary key
	ExternalID string // random identifier handed to external consumers
	UserID     int64  // owner
	EntryID    *int64 // cross-store reference, nullable

	// Resolved references into the content/taxonomy store.
	GroupID  int64
	TaxonID  int64
	CountyID int64

	// Spatio-temporal.
	Latitude   float64
	Longitude  float64
	Accuracy   float64
	Elevation  float64
	ObservedAt string // "2006-01-02 15:04:05", empty when unknown
	Township   string
	RangeCode  string
	Section    string

	// Environmental.
	AirTemp    float64
	GroundTemp float64
	TempUnit   string // "F", "C" or ""
	Humidity   float64
	Sky        string
	MoonPhase  string

	// Biological.
	Sex      string
	Age      string
	Quantity int64
	Diseased bool

	// Provenance and free text.
	Source     string
	Visibility string
	LocaleText string
	Notes      string
	AdminNotes string

	CreatedAt time.Time
}

// LegacyVoucher is a row in the backward-compatible voucher-index table.
// The content entry owns the attachment; this table is a secondary index
// keyed by record id that preserves the {record_id}-{voucher_id}.ext
// filename convention.
type LegacyVoucher struct {
	VID      int64
	RecordID int64
	Filename string
}

// MediaItem is a normalized view of one voucher asset attached to a
// record's content entry.
type MediaItem struct {
	ID          int64             `json:"id"`
	Type        string            `json:"type"` // image, audio or file
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Caption     string            `json:"caption,omitempty"`
	Description string            `json:"description,omitempty"`
	Alt         string            `json:"alt,omitempty"`      // images only
	Sizes       map[string]string `json:"sizes,omitempty"`    // images only
	Duration    string            `json:"duration,omitempty"` // audio only, formatted
}

// RecordView is the denormalized record returned by the reader: the
// relational row joined with its content entry, taxon, group and county.
type RecordView struct {
	ID             int64       `json:"id"`
	ExternalID     string      `json:"external_id"`
	UserID         int64       `json:"user_id"`
	PostID         int64       `json:"post_id"`
	Title          string      `json:"title"`
	Status         string      `json:"status"`
	Species        string      `json:"species,omitempty"`
	ParentSpecies  string      `json:"parent_species,omitempty"`
	Group          string      `json:"group,omitempty"`
	County         string      `json:"county,omitempty"`
	SecondaryTerms string      `json:"secondary_terms,omitempty"` // comma list
	Latitude       float64     `json:"latitude"`
	Longitude      float64     `json:"longitude"`
	Accuracy       float64     `json:"accuracy,omitempty"`
	Elevation      float64     `json:"elevation,omitempty"`
	ObservedAt     string      `json:"observed_at,omitempty"`
	Township       string      `json:"township,omitempty"`
	Range          string      `json:"range,omitempty"`
	Section        string      `json:"section,omitempty"`
	AirTemp        float64     `json:"air_temp,omitempty"`
	GroundTemp     float64     `json:"ground_temp,omitempty"`
	TempUnit       string      `json:"temp_unit,omitempty"`
	Humidity       float64     `json:"humidity,omitempty"`
	Sky            string      `json:"sky,omitempty"`
	MoonPhase      string      `json:"moon_phase,omitempty"`
	Sex            string      `json:"sex,omitempty"`
	Age            string      `json:"age,omitempty"`
	Quantity       int64       `json:"quantity,omitempty"`
	Diseased       bool        `json:"diseased,omitempty"`
	Source         string      `json:"source,omitempty"`
	Visibility     string      `json:"visibility,omitempty"`
	Locale         string      `json:"locale,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	Vouchers       []MediaItem `json:"vouchers"`
}

// CreatedRecord describes one successfully created animal record in the
// POST /records response.
type CreatedRecord struct {
	RecordID             int64   `json:"record_id"`
	PostID               int64   `json:"post_id"`
	VoucherAttachmentIDs []int64 `json:"voucher_attachment_ids"`
	VoucherLegacyVIDs    []int64 `json:"voucher_legacy_vids"`
}

// CreateResponse is the POST /records success body.
type CreateResponse struct {
	Success bool            `json:"success"`
	Created []CreatedRecord `json:"created"`

	// Diagnostics carries per-file voucher warnings and other non-fatal
	// detail, populated only for privileged callers or in debug mode.
	Diagnostics []string `json:"diagnostics,omitempty"`
}
