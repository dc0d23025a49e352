// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package media manages voucher assets: ingesting uploaded files into blob
// storage under the legacy filename convention, registering them as
// attachment entries in the content store, and normalizing them back into
// typed media items for record views.
package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/herpatlas/herpatlas/internal/allocator"
	"github.com/herpatlas/herpatlas/internal/apperror"
	"github.com/herpatlas/herpatlas/internal/blob"
	"github.com/herpatlas/herpatlas/internal/content"
	"github.com/herpatlas/herpatlas/internal/database"
	"github.com/herpatlas/herpatlas/internal/models"
)

// Entry meta keys used on attachment entries and record entries.
const (
	MetaVoucherIDs  = "voucher_media_ids" // on record entries: JSON int array
	MetaBlobKey     = "blob_key"          // on attachments: storage key
	MetaCaption     = "caption"
	MetaDescription = "description"
	MetaAltText     = "alt_text"
	MetaDuration    = "duration_seconds"
)

// Allocator namespaces consumed by voucher ingestion.
const (
	NamespaceEntries  = "entries"
	NamespaceVouchers = "vouchers"
)

// imageSizeNames is the fixed set of named size variants reported for
// image vouchers.
var imageSizeNames = []string{"thumbnail", "medium", "large", "full"}

// Upload is one client-submitted voucher file.
type Upload struct {
	Filename    string
	Kind        string // image|video|audio, client-declared
	ContentType string
	Duration    float64 // seconds, audio only, 0 when unknown
	Data        io.Reader
}

// Ingested reports the identifiers produced by storing one voucher.
type Ingested struct {
	AttachmentID int64
	LegacyVID    int64 // 0 when the legacy voucher table is absent
	Key          string
}

// Library wires blob storage, the content store, the legacy voucher table,
// and the id allocator into the voucher pipeline.
type Library struct {
	store  content.Store
	blobs  blob.Store
	db     *database.DB
	alloc  *allocator.Allocator
	subdir string
}

// NewLibrary returns a Library storing vouchers under subdir in blobs.
func NewLibrary(store content.Store, blobs blob.Store, db *database.DB, alloc *allocator.Allocator, subdir string) *Library {
	return &Library{store: store, blobs: blobs, db: db, alloc: alloc, subdir: strings.Trim(subdir, "/")}
}

// Ingest stores one voucher for a record: allocates a legacy voucher id
// when the legacy table exists, writes the blob under the
// {record_id}-{voucher_id}.ext convention, and creates an attachment
// entry parented to the record's content entry.
func (l *Library) Ingest(ctx context.Context, recordID, entryID, actorID int64, up Upload) (*Ingested, error) {
	ext := strings.ToLower(path.Ext(up.Filename))

	var vid int64
	hasLegacy, err := l.db.HasLegacyVoucherTable(ctx)
	if err != nil {
		return nil, apperror.StorageWrite("checking legacy voucher table", err)
	}
	if hasLegacy {
		vid, err = l.alloc.Allocate(ctx, NamespaceVouchers)
		if err != nil {
			return nil, err
		}
	} else {
		// No legacy table: the attachment id itself keeps filenames unique.
		vid, err = l.alloc.Allocate(ctx, NamespaceEntries)
		if err != nil {
			return nil, err
		}
	}

	filename := fmt.Sprintf("%d-%d%s", recordID, vid, ext)
	key := filename
	if l.subdir != "" {
		key = l.subdir + "/" + filename
	}

	contentType := up.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if _, err := l.blobs.Put(ctx, key, up.Data, blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"record_id": strconv.FormatInt(recordID, 10)},
	}); err != nil {
		return nil, apperror.StorageWrite(fmt.Sprintf("storing voucher %s", filename), err)
	}

	attachmentID, err := l.alloc.Allocate(ctx, NamespaceEntries)
	if err != nil {
		return nil, err
	}
	entry := &content.Entry{
		ID:       attachmentID,
		Type:     content.TypeAttachment,
		Title:    strings.TrimSuffix(up.Filename, ext),
		Slug:     resolveSlug(filename),
		Status:   content.StatusPublished,
		AuthorID: actorID,
		ParentID: entryID,
		MimeType: contentType,
	}
	if err := l.store.CreateEntry(ctx, entry); err != nil {
		// Orphan blob is acceptable; an orphan attachment entry is not.
		_, _ = l.blobs.Delete(ctx, key)
		return nil, apperror.From(err)
	}
	if err := l.store.SetMeta(ctx, attachmentID, MetaBlobKey, key); err != nil {
		return nil, apperror.StorageWrite("recording voucher storage key", err)
	}
	if up.Duration > 0 {
		_ = l.store.SetMeta(ctx, attachmentID, MetaDuration, strconv.FormatFloat(up.Duration, 'f', -1, 64))
	}

	ing := &Ingested{AttachmentID: attachmentID, Key: key}
	if hasLegacy {
		if err := l.db.InsertLegacyVoucher(ctx, &models.LegacyVoucher{VID: vid, RecordID: recordID, Filename: filename}); err != nil {
			return nil, apperror.StorageWrite("indexing legacy voucher", err)
		}
		ing.LegacyVID = vid
	}
	return ing, nil
}

// AttachVouchers merges attachment ids into the record entry's voucher
// list. The union is idempotent: re-attaching an existing id never
// duplicates it, and existing ids are never dropped.
func (l *Library) AttachVouchers(ctx context.Context, entryID int64, ids []int64) error {
	existing, err := l.voucherIDs(ctx, entryID)
	if err != nil {
		return err
	}
	seen := make(map[int64]bool, len(existing))
	merged := existing
	for _, id := range existing {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	if err := l.store.SetMeta(ctx, entryID, MetaVoucherIDs, string(raw)); err != nil {
		return apperror.StorageWrite("updating voucher list", err)
	}
	return nil
}

func (l *Library) voucherIDs(ctx context.Context, entryID int64) ([]int64, error) {
	raw, err := l.store.GetMeta(ctx, entryID, MetaVoucherIDs)
	if err != nil {
		return nil, apperror.StorageWrite("reading voucher list", err)
	}
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		// A corrupt list is treated as empty rather than failing the read.
		return nil, nil
	}
	return ids, nil
}

// Items returns the normalized media items for a record's content entry,
// falling back to the legacy voucher table when the entry carries no
// voucher list.
func (l *Library) Items(ctx context.Context, recordID, entryID int64) ([]models.MediaItem, error) {
	ids, err := l.voucherIDs(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		items := make([]models.MediaItem, 0, len(ids))
		for _, id := range ids {
			item, err := l.item(ctx, id)
			if err != nil {
				continue // missing attachments are skipped, not fatal
			}
			items = append(items, *item)
		}
		return items, nil
	}
	return l.legacyItems(ctx, recordID)
}

func (l *Library) item(ctx context.Context, attachmentID int64) (*models.MediaItem, error) {
	entry, err := l.store.GetEntry(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	if entry.Type != content.TypeAttachment || entry.Status == content.StatusTrash {
		return nil, content.ErrNotFound
	}

	item := &models.MediaItem{
		ID:    entry.ID,
		Type:  TypeFromMime(entry.MimeType),
		Title: entry.Title,
	}
	if key, _ := l.store.GetMeta(ctx, attachmentID, MetaBlobKey); key != "" {
		if u, err := l.blobs.URL(ctx, key); err == nil {
			item.URL = u
		}
	}
	item.Caption, _ = l.store.GetMeta(ctx, attachmentID, MetaCaption)
	item.Description, _ = l.store.GetMeta(ctx, attachmentID, MetaDescription)

	switch item.Type {
	case "image":
		item.Alt, _ = l.store.GetMeta(ctx, attachmentID, MetaAltText)
		item.Sizes = make(map[string]string, len(imageSizeNames))
		for _, name := range imageSizeNames {
			item.Sizes[name] = item.URL
		}
	case "audio":
		if raw, _ := l.store.GetMeta(ctx, attachmentID, MetaDuration); raw != "" {
			if secs, err := strconv.ParseFloat(raw, 64); err == nil {
				item.Duration = FormatDuration(secs)
			}
		}
	}
	return item, nil
}

func (l *Library) legacyItems(ctx context.Context, recordID int64) ([]models.MediaItem, error) {
	vouchers, err := l.db.LegacyVouchersForRecord(ctx, recordID)
	if err != nil {
		return nil, apperror.StorageWrite("reading legacy vouchers", err)
	}
	items := make([]models.MediaItem, 0, len(vouchers))
	for _, v := range vouchers {
		key := v.Filename
		if l.subdir != "" {
			key = l.subdir + "/" + v.Filename
		}
		item := models.MediaItem{
			ID:    v.VID,
			Type:  TypeFromMime(mime.TypeByExtension(strings.ToLower(path.Ext(v.Filename)))),
			Title: strings.TrimSuffix(v.Filename, path.Ext(v.Filename)),
		}
		if u, err := l.blobs.URL(ctx, key); err == nil {
			item.URL = u
		}
		items = append(items, item)
	}
	return items, nil
}

// TypeFromMime collapses a MIME type to the coarse media kind clients
// switch on.
func TypeFromMime(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	default:
		return "file"
	}
}

// FormatDuration renders a duration in seconds as M:SS (or H:MM:SS past
// the hour), the shape audio players expect.
func FormatDuration(seconds float64) string {
	total := int(seconds + 0.5)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func resolveSlug(filename string) string {
	slug := strings.ToLower(strings.TrimSuffix(filename, path.Ext(filename)))
	return strings.ReplaceAll(slug, " ", "-")
}
