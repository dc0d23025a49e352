// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

package record

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/herpatlas/herpatlas/internal/allocator"
	"github.com/herpatlas/herpatlas/internal/apperror"
	"github.com/herpatlas/herpatlas/internal/blob"
	"github.com/herpatlas/herpatlas/internal/content"
	"github.com/herpatlas/herpatlas/internal/database"
	"github.com/herpatlas/herpatlas/internal/media"
	"github.com/herpatlas/herpatlas/internal/models"
	"github.com/herpatlas/herpatlas/internal/namedlock"
	"github.com/herpatlas/herpatlas/internal/normalize"
	"github.com/herpatlas/herpatlas/internal/resolve"
)

// Seeded users.
const (
	ownerAuthor      = int64(1) // author: create + publish
	ownerContributor = int64(2) // contributor: create only
	ownerSubscriber  = int64(3) // subscriber: nothing
	replacementUser  = int64(9) // editor, stands in for incapable owners
)

type fixture struct {
	db     *database.DB
	store  content.Store
	sqlite *content.SQLiteStore
	alloc  *allocator.Allocator
	blobs  *blob.Memory
	writer *Writer
	reader *Reader
}

// setup builds the full pipeline on an in-memory database. wrap, when
// non-nil, decorates the content store seen by the writer so tests can
// inject failures.
func setup(t *testing.T, wrap func(content.Store) content.Store) *fixture {
	t.Helper()
	db, err := database.NewMemory()
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := db.EnsureLegacyVoucherTable(ctx); err != nil {
		t.Fatalf("creating legacy voucher table: %v", err)
	}

	sqlite, err := content.NewSQLiteStore(db.Conn())
	if err != nil {
		t.Fatalf("creating content store: %v", err)
	}
	for _, typ := range []string{content.TypeRecord, content.TypeSpecies, content.TypeGroup, content.TypeAttachment} {
		sqlite.RegisterType(typ)
	}

	users := []content.User{
		{ID: ownerAuthor, Login: "amber", Role: "author"},
		{ID: ownerContributor, Login: "carlos", Role: "contributor"},
		{ID: ownerSubscriber, Login: "sal", Role: "subscriber"},
		{ID: replacementUser, Login: "atlasbot", Role: "editor"},
	}
	for i := range users {
		if err := sqlite.CreateUser(ctx, &users[i]); err != nil {
			t.Fatalf("seeding user %s: %v", users[i].Login, err)
		}
	}

	entries := []content.Entry{
		{ID: 500, Type: content.TypeGroup, Title: "Frogs"},
		{ID: 501, Type: content.TypeSpecies, Title: "Green Frog"},
		{ID: 502, Type: content.TypeSpecies, Title: "Wood Frog"},
		{ID: 503, Type: content.TypeSpecies, Title: "Northern Green Frog", ParentID: 501},
	}
	for i := range entries {
		if err := sqlite.CreateEntry(ctx, &entries[i]); err != nil {
			t.Fatalf("seeding entry %d: %v", entries[i].ID, err)
		}
	}
	county := content.Term{Taxonomy: content.TaxonomyCounty, Name: "Allen County", Slug: "allen-county"}
	if err := sqlite.CreateTerm(ctx, &county); err != nil {
		t.Fatalf("seeding county: %v", err)
	}

	var store content.Store = sqlite
	if wrap != nil {
		store = wrap(sqlite)
	}

	alloc := allocator.New(namedlock.New(), time.Second)
	alloc.Register(NamespaceRecords, db.MaxRecordID)
	alloc.Register(media.NamespaceEntries, sqlite.MaxEntryID)
	alloc.Register(media.NamespaceVouchers, db.MaxLegacyVoucherID)

	blobs := blob.NewMemory()
	library := media.NewLibrary(store, blobs, db, alloc, "vouchers")
	resolver := resolve.New(store)

	return &fixture{
		db:     db,
		store:  store,
		sqlite: sqlite,
		alloc:  alloc,
		blobs:  blobs,
		writer: NewWriter(db, store, resolver, alloc, library, replacementUser, 5),
		reader: NewReader(db, library),
	}
}

func basicInput(ownerID int64) *CreateInput {
	return &CreateInput{
		OwnerID: ownerID,
		Shared: normalize.Payload{
			"county":   "Allen",
			"date":     "2026-05-14",
			"time":     "21:30",
			"locale":   "pond behind the barn",
			"township": "12N",
			"range":    "9E",
			"section":  "14",
		},
		Animals: []normalize.Payload{{
			"species":  "Green Frog",
			"group":    "Frogs",
			"quantity": 3,
			"sex":      "male",
		}},
	}
}

func TestCreate_EndToEnd(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	resp, err := f.writer.Create(ctx, basicInput(ownerAuthor))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !resp.Success || len(resp.Created) != 1 {
		t.Fatalf("resp = %+v, want one created record", resp)
	}
	created := resp.Created[0]
	if created.RecordID != 1 {
		t.Errorf("RecordID = %d, want 1", created.RecordID)
	}
	if created.PostID == 0 {
		t.Fatal("PostID not assigned")
	}

	// The content entry: published (author can publish), owned by the
	// owner, titled after the species.
	entry, err := f.sqlite.GetEntry(ctx, created.PostID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if entry.Status != content.StatusPublished {
		t.Errorf("entry status = %q, want publish", entry.Status)
	}
	if entry.AuthorID != ownerAuthor {
		t.Errorf("entry author = %d, want %d", entry.AuthorID, ownerAuthor)
	}
	if entry.Title != "Green Frog" {
		t.Errorf("entry title = %q", entry.Title)
	}
	if entry.Slug != "record-1" {
		t.Errorf("entry slug = %q, want record-1", entry.Slug)
	}

	// The record row is linked back to the entry.
	r, err := f.db.GetRecord(ctx, created.RecordID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if r.EntryID == nil || *r.EntryID != created.PostID {
		t.Errorf("record entry link = %v, want %d", r.EntryID, created.PostID)
	}
	if r.Quantity != 3 || r.Township != "12N" || r.ObservedAt != "2026-05-14 21:30:00" {
		t.Errorf("record fields wrong: %+v", r)
	}

	// Read back through the joined view.
	views, err := f.reader.ListByOwner(ctx, ownerAuthor)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d views, want 1", len(views))
	}
	v := views[0]
	if v.Species != "Green Frog" || v.Group != "Frogs" || v.County != "Allen County" {
		t.Errorf("view names wrong: species=%q group=%q county=%q", v.Species, v.Group, v.County)
	}
	if v.Sex != "male" || v.Quantity != 3 || v.Locale != "pond behind the barn" {
		t.Errorf("view fields wrong: %+v", v)
	}
	if len(v.Vouchers) != 0 {
		t.Errorf("vouchers = %+v, want empty", v.Vouchers)
	}
}

func TestCreate_SubspeciesAndDefaults(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	in := &CreateInput{
		OwnerID: ownerAuthor,
		Shared:  normalize.Payload{},
		Animals: []normalize.Payload{{
			"species":    "Green Frog",
			"subspecies": "Northern Green Frog",
		}},
	}
	resp, err := f.writer.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	r, err := f.db.GetRecord(ctx, resp.Created[0].RecordID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if r.TaxonID != 503 {
		t.Errorf("TaxonID = %d, want subspecies 503", r.TaxonID)
	}
	if r.Quantity != 1 {
		t.Errorf("Quantity = %d, want default 1", r.Quantity)
	}

	entry, err := f.sqlite.GetEntry(ctx, resp.Created[0].PostID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if entry.Title != "Northern Green Frog" {
		t.Errorf("entry title = %q, want the subspecies name", entry.Title)
	}
}

func TestCreate_PendingWithoutPublishCapability(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	resp, err := f.writer.Create(ctx, basicInput(ownerContributor))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	entry, err := f.sqlite.GetEntry(ctx, resp.Created[0].PostID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if entry.Status != content.StatusPending {
		t.Errorf("entry status = %q, want pending", entry.Status)
	}
}

func TestCreate_ReplacementAuthorKeepsOwnership(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	// Subscriber cannot create entries; the replacement editor acts, but
	// the entry still belongs to the subscriber.
	resp, err := f.writer.Create(ctx, basicInput(ownerSubscriber))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	entry, err := f.sqlite.GetEntry(ctx, resp.Created[0].PostID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if entry.AuthorID != ownerSubscriber {
		t.Errorf("entry author = %d, want the true owner %d", entry.AuthorID, ownerSubscriber)
	}
	// The acting editor can publish, so the entry goes live.
	if entry.Status != content.StatusPublished {
		t.Errorf("entry status = %q, want publish", entry.Status)
	}

	views, err := f.reader.ListByOwner(ctx, ownerSubscriber)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(views) != 1 {
		t.Errorf("owner should see their record, got %d views", len(views))
	}
}

func TestCreate_NoCapableIdentity(t *testing.T) {
	f := setup(t, nil)
	// Rewire with a replacement id that has no capabilities either.
	f.writer.replacementID = 999
	ctx := context.Background()

	in := basicInput(ownerSubscriber)
	in.Shared = normalize.Payload{} // skip county to keep the writes minimal
	_, err := f.writer.Create(ctx, in)
	if !apperror.IsCode(err, apperror.CodeAuthorization) {
		t.Fatalf("Create = %v, want authorization_error", err)
	}

	// The record row survives without a dangling entry pointer.
	r, err := f.db.GetRecord(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if r.EntryID != nil {
		t.Errorf("EntryID = %v, want nil after entry creation failure", *r.EntryID)
	}
}

func TestCreate_ResolvingFailFast(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	in := basicInput(ownerAuthor)
	in.Animals = append(in.Animals, normalize.Payload{"species": "Chupacabra"})

	_, err := f.writer.Create(ctx, in)
	if !apperror.IsCode(err, apperror.CodeNotFound) {
		t.Fatalf("Create = %v, want not_found", err)
	}
	if !strings.Contains(err.Error(), "animal 1") {
		t.Errorf("error should name the failing animal: %v", err)
	}

	// Nothing was written for either animal.
	max, err := f.db.MaxRecordID(ctx)
	if err != nil {
		t.Fatalf("MaxRecordID: %v", err)
	}
	if max != 0 {
		t.Errorf("records written during fail-fast resolve: max id %d", max)
	}
}

func TestCreate_MultiAnimal(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	in := basicInput(ownerAuthor)
	in.Animals = append(in.Animals, normalize.Payload{"species": "Wood Frog", "quantity": 2})

	resp, err := f.writer.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(resp.Created) != 2 {
		t.Fatalf("created %d records, want 2", len(resp.Created))
	}
	if resp.Created[0].RecordID == resp.Created[1].RecordID {
		t.Error("animals share a record id")
	}
	if resp.Created[0].PostID == resp.Created[1].PostID {
		t.Error("animals share a content entry")
	}

	views, err := f.reader.ListByOwner(ctx, ownerAuthor)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d views, want 2", len(views))
	}
	// Newest first.
	if views[0].ID < views[1].ID {
		t.Errorf("views not ordered newest first: %d before %d", views[0].ID, views[1].ID)
	}
	if views[0].Species != "Wood Frog" {
		t.Errorf("first view species = %q, want Wood Frog", views[0].Species)
	}
}

// failNthEntry passes everything through to the wrapped store but fails
// record-entry creation from the nth call on.
type failNthEntry struct {
	content.Store
	n     int
	calls int
}

func (s *failNthEntry) CreateEntry(ctx context.Context, e *content.Entry) error {
	if e.Type == content.TypeRecord {
		s.calls++
		if s.calls >= s.n {
			return errors.New("content platform unavailable")
		}
	}
	return s.Store.CreateEntry(ctx, e)
}

func TestCreate_PartialSuccessReportsDiagnostic(t *testing.T) {
	var failing *failNthEntry
	f := setup(t, func(s content.Store) content.Store {
		failing = &failNthEntry{Store: s, n: 2}
		return failing
	})
	ctx := context.Background()

	in := basicInput(ownerAuthor)
	in.Animals = append(in.Animals, normalize.Payload{"species": "Wood Frog"})

	resp, err := f.writer.Create(ctx, in)
	if err != nil {
		t.Fatalf("a failure after a success should not error the request: %v", err)
	}
	if len(resp.Created) != 1 {
		t.Fatalf("created %d records, want 1", len(resp.Created))
	}
	found := false
	for _, d := range resp.Diagnostics {
		if strings.Contains(d, "animal 1 failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %v, want an animal 1 failure note", resp.Diagnostics)
	}

	// The second animal's row has no dangling entry pointer.
	r, err := f.db.GetRecord(ctx, resp.Created[0].RecordID+1)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if r.EntryID != nil {
		t.Errorf("orphaned row still points at entry %d", *r.EntryID)
	}
}

func TestCreate_FirstAnimalFailureErrors(t *testing.T) {
	f := setup(t, func(s content.Store) content.Store {
		return &failNthEntry{Store: s, n: 1}
	})

	_, err := f.writer.Create(context.Background(), basicInput(ownerAuthor))
	if err == nil {
		t.Fatal("Create should fail when the only animal cannot commit")
	}
}

func TestCreate_IDCollisionRetries(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	// A row the allocator does not know about: the stale max function
	// reports 0, so the first allocation collides with it.
	pre := &models.Record{ID: 1, ExternalID: "pre-existing", UserID: ownerAuthor, Quantity: 1}
	if err := f.db.InsertRecord(ctx, pre); err != nil {
		t.Fatalf("pre-inserting record: %v", err)
	}
	f.alloc.Register(NamespaceRecords, func(ctx context.Context) (int64, error) {
		return 0, nil
	})

	resp, err := f.writer.Create(ctx, basicInput(ownerAuthor))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if resp.Created[0].RecordID != 2 {
		t.Errorf("RecordID = %d, want 2 after collision retry", resp.Created[0].RecordID)
	}
}

func TestCreate_Vouchers(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	in := basicInput(ownerAuthor)
	in.Files = []FileAssignment{{
		AnimalIndex: 0,
		Upload: media.Upload{
			Filename:    "dorsal.jpg",
			Kind:        "image",
			ContentType: "image/jpeg",
			Data:        strings.NewReader("jpeg-bytes"),
		},
	}}

	resp, err := f.writer.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	created := resp.Created[0]
	if len(created.VoucherAttachmentIDs) != 1 {
		t.Fatalf("attachments = %v, want one", created.VoucherAttachmentIDs)
	}
	if len(created.VoucherLegacyVIDs) != 1 || created.VoucherLegacyVIDs[0] != 1 {
		t.Errorf("legacy vids = %v, want [1]", created.VoucherLegacyVIDs)
	}

	views, err := f.reader.ListByOwner(ctx, ownerAuthor)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(views) != 1 || len(views[0].Vouchers) != 1 {
		t.Fatalf("view vouchers = %+v, want one", views)
	}
	item := views[0].Vouchers[0]
	if item.Type != "image" || item.URL == "" {
		t.Errorf("unexpected voucher item: %+v", item)
	}
}

func TestCreate_ValidatesInput(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	if _, err := f.writer.Create(ctx, &CreateInput{OwnerID: 0, Animals: []normalize.Payload{{}}}); !apperror.IsCode(err, apperror.CodeValidation) {
		t.Errorf("missing owner = %v, want validation_error", err)
	}
	if _, err := f.writer.Create(ctx, &CreateInput{OwnerID: 1}); !apperror.IsCode(err, apperror.CodeValidation) {
		t.Errorf("no animals = %v, want validation_error", err)
	}
	if _, err := f.writer.Create(ctx, &CreateInput{OwnerID: 1, Animals: []normalize.Payload{{}}}); !apperror.IsCode(err, apperror.CodeValidation) {
		t.Errorf("missing species = %v, want validation_error", err)
	}
}

func TestListByOwner_Validation(t *testing.T) {
	f := setup(t, nil)

	if _, err := f.reader.ListByOwner(context.Background(), 0); !apperror.IsCode(err, apperror.CodeValidation) {
		t.Errorf("ListByOwner(0) = %v, want validation_error", err)
	}
	views, err := f.reader.ListByOwner(context.Background(), ownerAuthor)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if views == nil || len(views) != 0 {
		t.Errorf("empty owner should yield empty non-nil slice, got %#v", views)
	}
}
