// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/herpatlas/herpatlas/internal/models"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewMemory()
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleRecord(id int64, externalID string) *models.Record {
	return &models.Record{
		ID:         id,
		ExternalID: externalID,
		UserID:     7,
		TaxonID:    501,
		Latitude:   41.08,
		Longitude:  -85.14,
		ObservedAt: "2026-05-14 21:30:00",
		Township:   "12N",
		RangeCode:  "9E",
		Section:    "14",
		Quantity:   1,
		Diseased:   true,
		Notes:      "calling from the cattails",
	}
}

func TestInsertRecord_RoundTrip(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	want := sampleRecord(1, "ext-1")
	if err := db.InsertRecord(ctx, want); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	got, err := db.GetRecord(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.ExternalID != "ext-1" || got.UserID != 7 || got.TaxonID != 501 {
		t.Errorf("identity fields wrong: %+v", got)
	}
	if got.Township != "12N" || got.RangeCode != "9E" || got.Section != "14" {
		t.Errorf("grid fields wrong: %+v", got)
	}
	if !got.Diseased {
		t.Error("diseased flag lost")
	}
	if got.EntryID != nil {
		t.Errorf("EntryID = %v, want nil before linking", *got.EntryID)
	}
}

func TestInsertRecord_KeyCollision(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	if err := db.InsertRecord(ctx, sampleRecord(1, "ext-1")); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	err := db.InsertRecord(ctx, sampleRecord(1, "ext-2"))
	if err == nil {
		t.Fatal("duplicate id should fail")
	}
	if !IsKeyCollision(err) {
		t.Errorf("IsKeyCollision(%v) = false, want true", err)
	}
	if IsKeyCollision(nil) || IsKeyCollision(errors.New("disk I/O error")) {
		t.Error("IsKeyCollision misclassifies unrelated errors")
	}
}

func TestMaxRecordID(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	max, err := db.MaxRecordID(ctx)
	if err != nil {
		t.Fatalf("MaxRecordID: %v", err)
	}
	if max != 0 {
		t.Errorf("empty table max = %d, want 0", max)
	}

	for i, id := range []int64{3, 17, 5} {
		if err := db.InsertRecord(ctx, sampleRecord(id, "ext-"+string(rune('a'+i)))); err != nil {
			t.Fatalf("InsertRecord(%d): %v", id, err)
		}
	}
	max, err = db.MaxRecordID(ctx)
	if err != nil {
		t.Fatalf("MaxRecordID: %v", err)
	}
	if max != 17 {
		t.Errorf("max = %d, want 17", max)
	}
}

func TestEntryLinking(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	if err := db.InsertRecord(ctx, sampleRecord(1, "ext-1")); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	n, err := db.SetRecordEntryID(ctx, 1, 900)
	if err != nil || n != 1 {
		t.Fatalf("SetRecordEntryID = (%d, %v), want (1, nil)", n, err)
	}
	r, err := db.GetRecord(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if r.EntryID == nil || *r.EntryID != 900 {
		t.Errorf("EntryID = %v, want 900", r.EntryID)
	}

	// An id miss reports zero rows; the external id is the fallback.
	n, err = db.SetRecordEntryID(ctx, 99, 901)
	if err != nil || n != 0 {
		t.Errorf("SetRecordEntryID(miss) = (%d, %v), want (0, nil)", n, err)
	}
	n, err = db.SetRecordEntryIDByExternalID(ctx, "ext-1", 901)
	if err != nil || n != 1 {
		t.Fatalf("SetRecordEntryIDByExternalID = (%d, %v), want (1, nil)", n, err)
	}

	if err := db.ClearRecordEntryID(ctx, 1); err != nil {
		t.Fatalf("ClearRecordEntryID: %v", err)
	}
	r, err = db.GetRecord(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if r.EntryID != nil {
		t.Errorf("EntryID = %v after clear, want nil", *r.EntryID)
	}
}

func TestLegacyVoucherTable(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	exists, err := db.HasLegacyVoucherTable(ctx)
	if err != nil {
		t.Fatalf("HasLegacyVoucherTable: %v", err)
	}
	if exists {
		t.Fatal("fresh database should not carry the legacy table")
	}
	// Absent table reads as an empty namespace, not an error.
	max, err := db.MaxLegacyVoucherID(ctx)
	if err != nil || max != 0 {
		t.Errorf("MaxLegacyVoucherID without table = (%d, %v), want (0, nil)", max, err)
	}

	if err := db.EnsureLegacyVoucherTable(ctx); err != nil {
		t.Fatalf("EnsureLegacyVoucherTable: %v", err)
	}
	if err := db.EnsureLegacyVoucherTable(ctx); err != nil {
		t.Errorf("EnsureLegacyVoucherTable should be idempotent: %v", err)
	}

	for _, v := range []models.LegacyVoucher{
		{VID: 2, RecordID: 42, Filename: "42-2.jpg"},
		{VID: 1, RecordID: 42, Filename: "42-1.jpg"},
		{VID: 3, RecordID: 7, Filename: "7-3.jpg"},
	} {
		voucher := v
		if err := db.InsertLegacyVoucher(ctx, &voucher); err != nil {
			t.Fatalf("InsertLegacyVoucher(%d): %v", v.VID, err)
		}
	}

	max, err = db.MaxLegacyVoucherID(ctx)
	if err != nil {
		t.Fatalf("MaxLegacyVoucherID: %v", err)
	}
	if max != 3 {
		t.Errorf("max vid = %d, want 3", max)
	}

	vouchers, err := db.LegacyVouchersForRecord(ctx, 42)
	if err != nil {
		t.Fatalf("LegacyVouchersForRecord: %v", err)
	}
	if len(vouchers) != 2 || vouchers[0].VID != 1 || vouchers[1].VID != 2 {
		t.Errorf("vouchers = %+v, want vids 1, 2 in order", vouchers)
	}
}

func TestDeleteRecord(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	if err := db.InsertRecord(ctx, sampleRecord(1, "ext-1")); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	if err := db.DeleteRecord(ctx, 1); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if _, err := db.GetRecord(ctx, 1); err == nil {
		t.Error("record still present after delete")
	}
}
