// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package content defines the read/write contracts of the content
// management platform the records API is bolted onto: typed content
// entries, taxonomy terms, multi-value entry meta, and the user/capability
// registry. The record pipeline consumes these contracts only; the SQLite
// implementation in this package shares the records database so reads can
// join across both stores.
package content

import (
	"context"
	"errors"
	"time"
)

// Entry types used by the record pipeline.
const (
	TypeRecord     = "record"
	TypeSpecies    = "species"
	TypeGroup      = "group"
	TypeAttachment = "attachment"
)

// Entry statuses. Trash is a soft delete: trashed entries are excluded
// from every lookup and join.
const (
	StatusPublished = "publish"
	StatusPending   = "pending"
	StatusTrash     = "trash"
)

// Taxonomies used by the record pipeline.
const (
	TaxonomyCounty    = "county"
	TaxonomySecondary = "secondary"
)

// Capabilities checked by the record writer.
const (
	CapCreateRecords     = "create_records"
	CapPublishRecords    = "publish_records"
	CapEditOthersRecords = "edit_others_records"
	CapViewDebug         = "view_debug"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("content: not found")

// Entry is a typed, author-owned document in the content store.
type Entry struct {
	ID        int64
	Type      string
	Title     string
	Slug      string
	Status    string
	AuthorID  int64
	ParentID  int64 // 0 means top-level
	MimeType  string
	CreatedAt time.Time
}

// Term is a taxonomy term. Terms are pre-existing reference data; the
// record pipeline only reads and attaches them.
type Term struct {
	ID       int64
	Taxonomy string
	Name     string
	Slug     string
}

// User is an identity in the platform's user registry.
type User struct {
	ID    int64
	Login string
	Role  string
}

// ParentFilter scopes an entry-title lookup by parent.
type ParentFilter struct {
	kind int // 0 any, 1 top-level only, 2 specific parent
	id   int64
}

// AnyParent matches entries regardless of parent.
func AnyParent() ParentFilter { return ParentFilter{kind: 0} }

// TopLevel matches only entries without a parent.
func TopLevel() ParentFilter { return ParentFilter{kind: 1} }

// ChildOf matches only direct children of the given entry.
func ChildOf(id int64) ParentFilter { return ParentFilter{kind: 2, id: id} }

// Store is the content platform's contract as consumed by the record
// pipeline. All lookups exclude trashed entries.
type Store interface {
	// CreateEntry inserts an entry with an explicit, caller-allocated id.
	// The entry type must have been registered (see RegisterType); creating
	// an entry of an unregistered type is an external-dependency failure.
	CreateEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	TrashEntry(ctx context.Context, id int64) error
	MaxEntryID(ctx context.Context) (int64, error)

	// FindEntriesByTitle returns exact title matches of the given type,
	// scoped by parent, ordered by id descending (most recent first).
	FindEntriesByTitle(ctx context.Context, entryType, title string, parent ParentFilter) ([]Entry, error)

	// ListEntries returns all live entries of the given type scoped by
	// parent, for heuristic (phonetic) matching.
	ListEntries(ctx context.Context, entryType string, parent ParentFilter) ([]Entry, error)

	// SuggestTitles returns up to limit distinct titles of the given type
	// containing the substring, ordered alphabetically.
	SuggestTitles(ctx context.Context, entryType, substring string, limit int) ([]string, error)

	// Terms.
	FindTermByName(ctx context.Context, taxonomy, name string) (*Term, error)
	FindTermBySlug(ctx context.Context, taxonomy, slug string) (*Term, error)
	AttachTerm(ctx context.Context, entryID, termID int64) error

	// Entry meta (multi-value custom fields).
	GetMeta(ctx context.Context, entryID int64, key string) (string, error)
	SetMeta(ctx context.Context, entryID int64, key, value string) error

	// User registry and capability checks.
	GetUser(ctx context.Context, id int64) (*User, error)
	UserCan(ctx context.Context, userID int64, capability string) (bool, error)
}

// roleCapabilities maps platform roles to their capability sets.
var roleCapabilities = map[string]map[string]bool{
	"subscriber": {},
	"contributor": {
		CapCreateRecords: true,
	},
	"author": {
		CapCreateRecords:  true,
		CapPublishRecords: true,
	},
	"editor": {
		CapCreateRecords:     true,
		CapPublishRecords:    true,
		CapEditOthersRecords: true,
	},
	"admin": {
		CapCreateRecords:     true,
		CapPublishRecords:    true,
		CapEditOthersRecords: true,
		CapViewDebug:         true,
	},
}

// RoleCan reports whether a role carries a capability.
func RoleCan(role, capability string) bool {
	return roleCapabilities[role][capability]
}
