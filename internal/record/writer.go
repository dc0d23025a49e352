// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package record orchestrates the dual-store commit that turns a client
// observation payload into relational record rows plus content entries:
// resolve names, normalize fields, allocate ids, insert, create the
// content entry, link the two, attach taxonomy and voucher media.
package record

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/herpatlas/herpatlas/internal/allocator"
	"github.com/herpatlas/herpatlas/internal/apperror"
	"github.com/herpatlas/herpatlas/internal/content"
	"github.com/herpatlas/herpatlas/internal/database"
	"github.com/herpatlas/herpatlas/internal/logging"
	"github.com/herpatlas/herpatlas/internal/media"
	"github.com/herpatlas/herpatlas/internal/metrics"
	"github.com/herpatlas/herpatlas/internal/models"
	"github.com/herpatlas/herpatlas/internal/normalize"
	"github.com/herpatlas/herpatlas/internal/resolve"
)

// NamespaceRecords is the allocator namespace for record primary keys.
const NamespaceRecords = "records"

// FileAssignment pairs one uploaded voucher with the 0-based index of the
// animal it belongs to.
type FileAssignment struct {
	Upload      media.Upload
	AnimalIndex int
}

// CreateInput is one POST /records request after payload-shape parsing.
// Shared holds the record-level fields; each entry in Animals overrides or
// extends them for one animal.
type CreateInput struct {
	OwnerID int64
	Shared  normalize.Payload
	Animals []normalize.Payload
	Files   []FileAssignment
}

// Writer runs the record creation state machine.
type Writer struct {
	db            *database.DB
	store         content.Store
	resolver      *resolve.Resolver
	alloc         *allocator.Allocator
	library       *media.Library
	replacementID int64
	insertRetries int
}

// NewWriter wires a Writer. replacementID is the identity used for content
// entry creation when the owner lacks the create capability; insertRetries
// bounds the allocate/insert loop on primary-key collisions.
func NewWriter(db *database.DB, store content.Store, resolver *resolve.Resolver,
	alloc *allocator.Allocator, library *media.Library, replacementID int64, insertRetries int) *Writer {
	if insertRetries <= 0 {
		insertRetries = 5
	}
	return &Writer{
		db: db, store: store, resolver: resolver, alloc: alloc, library: library,
		replacementID: replacementID, insertRetries: insertRetries,
	}
}

// resolved carries one animal's fully resolved and normalized record plus
// the names needed to build its content entry.
type resolved struct {
	record      *models.Record
	speciesName string
}

// Create runs the full pipeline for one request. The resolving phase is
// fail-fast: any resolver or normalizer failure aborts before anything is
// written, so a multi-animal request never half-commits across resolution.
// Past resolving, animals commit independently and sequentially; the first
// commit failure stops the loop. A failure with no prior successes is the
// request's error; with at least one success the created records are
// returned and the failure is reported through Diagnostics.
func (w *Writer) Create(ctx context.Context, in *CreateInput) (*models.CreateResponse, error) {
	if in.OwnerID <= 0 {
		return nil, apperror.Validation("owner id is required")
	}
	if len(in.Animals) == 0 {
		return nil, apperror.Validation("at least one animal is required")
	}

	// Resolving. Shared fields resolve once; county applies to every animal.
	var countyID int64
	if name := in.Shared.String("county"); name != "" {
		id, err := w.resolver.County(ctx, name)
		if err != nil {
			return nil, err
		}
		countyID = id
	}

	animals := make([]resolved, 0, len(in.Animals))
	for i, animal := range in.Animals {
		res, err := w.resolveAnimal(ctx, in.OwnerID, countyID, in.Shared, animal)
		if err != nil {
			return nil, fmt.Errorf("animal %d: %w", i, err)
		}
		animals = append(animals, *res)
	}

	resp := &models.CreateResponse{Success: true}
	for i, res := range animals {
		start := time.Now()
		created, warnings, err := w.commitAnimal(ctx, in, i, res)
		resp.Diagnostics = append(resp.Diagnostics, warnings...)
		if err != nil {
			if len(resp.Created) == 0 {
				return nil, err
			}
			// Later-animal failure after a success: report what was
			// created and surface the failure as a diagnostic.
			logging.Err(err).Int("animal_index", i).Msg("abandoning remaining animals after commit failure")
			resp.Diagnostics = append(resp.Diagnostics,
				fmt.Sprintf("animal %d failed: %s", i, apperror.From(err).Message))
			return resp, nil
		}
		metrics.RecordCreation(time.Since(start), "")
		resp.Created = append(resp.Created, *created)
	}
	return resp, nil
}

func (w *Writer) resolveAnimal(ctx context.Context, ownerID, countyID int64, shared, animal normalize.Payload) (*resolved, error) {
	p := merge(shared, animal)

	var groupID int64
	if name := p.String("group"); name != "" {
		id, err := w.resolver.Group(ctx, name)
		if err != nil {
			return nil, err
		}
		groupID = id
	}

	speciesName := p.String("species")
	if speciesName == "" {
		return nil, apperror.Validation("species name is required")
	}
	var taxonID int64
	var err error
	if sub := p.String("subspecies"); sub != "" {
		taxonID, err = w.resolver.Species(ctx, sub, speciesName)
		speciesName = sub
	} else {
		taxonID, err = w.resolver.Species(ctx, speciesName, "")
	}
	if err != nil {
		return nil, err
	}

	sp := &normalize.Spillover{}
	r := &models.Record{
		ExternalID: uuid.NewString(),
		UserID:     ownerID,
		GroupID:    groupID,
		TaxonID:    taxonID,
		CountyID:   countyID,
		ObservedAt: normalize.DateTime(p.String("datetime"), p.String("date"), p.String("time")),
		Township:   normalize.Township(p.String("township"), sp),
		RangeCode:  normalize.Range(p.String("range"), sp),
		Section:    normalize.Section(p.String("section"), sp),
		TempUnit:   normalize.TemperatureUnit(p.String("temp_unit")),
		MoonPhase:  normalize.MoonPhase(p.String("moon_phase")),
		Sky:        p.String("sky"),
		Sex:        p.String("sex"),
		Age:        p.String("age"),
		Diseased:   p.Bool("diseased"),
		Source:     p.String("source"),
		Visibility: p.String("visibility"),
		Notes:      p.String("notes"),
		AdminNotes: p.String("admin_notes"),
	}
	r.Latitude, _ = p.Float("latitude")
	r.Longitude, _ = p.Float("longitude")
	r.Accuracy, _ = p.Float("accuracy")
	r.Elevation, _ = p.Float("elevation")
	r.AirTemp, _ = p.Float("air_temp")
	r.GroundTemp, _ = p.Float("ground_temp")
	r.Humidity, _ = p.Float("humidity")
	if q, ok := p.Int("quantity"); ok {
		r.Quantity = q
	} else {
		r.Quantity = 1
	}
	// Unparseable grid references land in the locale text so nothing the
	// client sent is silently lost.
	r.LocaleText = sp.AppendTo(p.String("locale"))

	return &resolved{record: r, speciesName: speciesName}, nil
}

// merge overlays an animal payload on the shared record-level payload.
func merge(shared, animal normalize.Payload) normalize.Payload {
	p := make(normalize.Payload, len(shared)+len(animal))
	for k, v := range shared {
		p[k] = v
	}
	for k, v := range animal {
		if v != nil {
			p[k] = v
		}
	}
	return p
}

// commitAnimal drives one animal through allocate → insert → content
// entry → link → taxonomy and media. Voucher failures are collected as
// warnings; everything else fails the animal.
func (w *Writer) commitAnimal(ctx context.Context, in *CreateInput, index int, res resolved) (*models.CreatedRecord, []string, error) {
	r := res.record

	if err := w.insertWithRetry(ctx, r); err != nil {
		metrics.RecordCreateFailures.WithLabelValues("inserting").Inc()
		return nil, nil, err
	}

	entry, err := w.createContentEntry(ctx, r, res.speciesName)
	if err != nil {
		metrics.RecordCreateFailures.WithLabelValues("content_entry").Inc()
		// The row exists but its entry does not; clear the reference so
		// no dangling pointer survives the failure.
		if clearErr := w.db.ClearRecordEntryID(ctx, r.ID); clearErr != nil {
			logging.Err(clearErr).Int64("record_id", r.ID).Msg("failed to clear entry reference after entry creation failure")
		}
		return nil, nil, err
	}

	if err := w.link(ctx, r, entry.ID); err != nil {
		metrics.RecordCreateFailures.WithLabelValues("linking").Inc()
		return nil, nil, err
	}

	created := &models.CreatedRecord{
		RecordID:             r.ID,
		PostID:               entry.ID,
		VoucherAttachmentIDs: []int64{},
		VoucherLegacyVIDs:    []int64{},
	}

	if r.CountyID > 0 {
		if err := w.store.AttachTerm(ctx, entry.ID, r.CountyID); err != nil {
			return nil, nil, apperror.StorageWrite("attaching county term", err)
		}
	}

	var warnings []string
	for _, f := range in.Files {
		if f.AnimalIndex != index {
			continue
		}
		ing, err := w.library.Ingest(ctx, r.ID, entry.ID, w.actorFor(ctx, r.UserID), f.Upload)
		if err != nil {
			metrics.VoucherFailures.Inc()
			logging.Err(err).Int64("record_id", r.ID).Str("filename", f.Upload.Filename).Msg("voucher ingestion failed")
			warnings = append(warnings, fmt.Sprintf("voucher %s: %s", f.Upload.Filename, apperror.From(err).Message))
			continue
		}
		metrics.VouchersIngested.WithLabelValues(f.Upload.Kind).Inc()
		created.VoucherAttachmentIDs = append(created.VoucherAttachmentIDs, ing.AttachmentID)
		if ing.LegacyVID > 0 {
			created.VoucherLegacyVIDs = append(created.VoucherLegacyVIDs, ing.LegacyVID)
		}
	}
	if len(created.VoucherAttachmentIDs) > 0 {
		if err := w.library.AttachVouchers(ctx, entry.ID, created.VoucherAttachmentIDs); err != nil {
			return nil, warnings, err
		}
	}

	logging.Info().
		Int64("record_id", r.ID).
		Int64("entry_id", entry.ID).
		Int64("owner_id", r.UserID).
		Int("vouchers", len(created.VoucherAttachmentIDs)).
		Msg("record created")
	return created, warnings, nil
}

// insertWithRetry allocates a fresh id and inserts, retrying only on
// primary-key collisions. Other insert failures are final.
func (w *Writer) insertWithRetry(ctx context.Context, r *models.Record) error {
	var lastErr error
	for attempt := 0; attempt < w.insertRetries; attempt++ {
		id, err := w.alloc.Allocate(ctx, NamespaceRecords)
		if err != nil {
			if apperror.IsCode(err, apperror.CodeLockTimeout) {
				metrics.AllocatorLockTimeouts.WithLabelValues(NamespaceRecords).Inc()
			}
			return err
		}
		r.ID = id
		err = w.db.InsertRecord(ctx, r)
		if err == nil {
			return nil
		}
		if !database.IsKeyCollision(err) {
			return apperror.StorageWrite("inserting record", err)
		}
		metrics.AllocatorRetries.WithLabelValues(NamespaceRecords).Inc()
		logging.Warn().Int64("id", id).Int("attempt", attempt+1).Msg("record id collision, reallocating")
		lastErr = err
	}
	return apperror.StorageWrite(
		fmt.Sprintf("record insert failed after %d id allocations", w.insertRetries), lastErr)
}

// actorFor picks the acting identity for content writes: the owner when
// they can create entries, otherwise the configured replacement author.
// The entry's authorship always stays with the true owner.
func (w *Writer) actorFor(ctx context.Context, ownerID int64) int64 {
	ok, err := w.store.UserCan(ctx, ownerID, content.CapCreateRecords)
	if err != nil || !ok {
		return w.replacementID
	}
	return ownerID
}

func (w *Writer) createContentEntry(ctx context.Context, r *models.Record, title string) (*content.Entry, error) {
	actorID := w.actorFor(ctx, r.UserID)
	if actorID != r.UserID {
		if ok, err := w.store.UserCan(ctx, actorID, content.CapCreateRecords); err != nil || !ok {
			return nil, apperror.IdentityMismatch("no identity available with record creation capability")
		}
		logging.Debug().Int64("owner_id", r.UserID).Int64("actor_id", actorID).
			Msg("creating entry via replacement author")
	}

	status := content.StatusPending
	if ok, _ := w.store.UserCan(ctx, actorID, content.CapPublishRecords); ok {
		status = content.StatusPublished
	}

	entryID, err := w.alloc.Allocate(ctx, media.NamespaceEntries)
	if err != nil {
		if apperror.IsCode(err, apperror.CodeLockTimeout) {
			metrics.AllocatorLockTimeouts.WithLabelValues(media.NamespaceEntries).Inc()
		}
		return nil, err
	}

	entry := &content.Entry{
		ID:       entryID,
		Type:     content.TypeRecord,
		Title:    title,
		Slug:     fmt.Sprintf("record-%d", r.ID),
		Status:   status,
		AuthorID: r.UserID,
	}
	if err := w.store.CreateEntry(ctx, entry); err != nil {
		return nil, apperror.From(err)
	}
	return entry, nil
}

// link points the record row at its entry by id, falling back to the
// random external id when the id-based update touched nothing.
func (w *Writer) link(ctx context.Context, r *models.Record, entryID int64) error {
	n, err := w.db.SetRecordEntryID(ctx, r.ID, entryID)
	if err != nil {
		return apperror.StorageWrite("linking record to entry", err)
	}
	if n == 0 {
		n, err = w.db.SetRecordEntryIDByExternalID(ctx, r.ExternalID, entryID)
		if err != nil {
			return apperror.StorageWrite("linking record to entry by external id", err)
		}
		if n == 0 {
			return apperror.StorageWrite("record row vanished before linking", nil)
		}
	}
	r.EntryID = &entryID
	return nil
}
