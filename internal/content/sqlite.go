// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// sqlite.go - SQLite-backed implementation of the content store contracts.
//
// The content tables live in the same database file as the records table,
// which is what allows the record reader to reconstruct denormalized
// record views in a single join.
package content

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/herpatlas/herpatlas/internal/apperror"
)

// SQLiteStore implements Store on a shared SQLite connection.
type SQLiteStore struct {
	conn  *sql.DB
	types map[string]bool
}

// NewSQLiteStore creates the content schema on conn and returns a store
// with no registered entry types. Callers register the types they own
// before creating entries.
func NewSQLiteStore(conn *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{conn: conn, types: make(map[string]bool)}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("content: initializing schema: %w", err)
	}
	return s, nil
}

// RegisterType registers an entry type for creation. Registration happens
// at wiring time; it is not safe to race with CreateEntry.
func (s *SQLiteStore) RegisterType(entryType string) {
	s.types[entryType] = true
}

func (s *SQLiteStore) createTables() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY,
		type TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'publish',
		author_id INTEGER NOT NULL DEFAULT 0,
		parent_id INTEGER NOT NULL DEFAULT 0,
		mime_type TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_entries_type_title ON entries(type, title);
	CREATE INDEX IF NOT EXISTS idx_entries_author ON entries(author_id);
	CREATE INDEX IF NOT EXISTS idx_entries_slug ON entries(slug);

	CREATE TABLE IF NOT EXISTS entry_meta (
		entry_id INTEGER NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (entry_id, key)
	);

	CREATE TABLE IF NOT EXISTS terms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		taxonomy TEXT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_terms_taxonomy_name ON terms(taxonomy, name);
	CREATE INDEX IF NOT EXISTS idx_terms_taxonomy_slug ON terms(taxonomy, slug);

	CREATE TABLE IF NOT EXISTS term_relationships (
		entry_id INTEGER NOT NULL,
		term_id INTEGER NOT NULL,
		PRIMARY KEY (entry_id, term_id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		login TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'subscriber'
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// CreateEntry inserts an entry with its caller-allocated id.
func (s *SQLiteStore) CreateEntry(ctx context.Context, e *Entry) error {
	if !s.types[e.Type] {
		return apperror.ExternalDependency("content type %q is not registered", e.Type)
	}
	if e.Status == "" {
		e.Status = StatusPublished
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO entries (id, type, title, slug, status, author_id, parent_id, mime_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.Title, e.Slug, e.Status, e.AuthorID, e.ParentID, e.MimeType)
	if err != nil {
		return fmt.Errorf("content: inserting entry %d: %w", e.ID, err)
	}
	return nil
}

// GetEntry fetches one entry by id, trashed or not.
func (s *SQLiteStore) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	e := &Entry{}
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, type, title, slug, status, author_id, parent_id, mime_type, created_at
		 FROM entries WHERE id = ?`, id).
		Scan(&e.ID, &e.Type, &e.Title, &e.Slug, &e.Status, &e.AuthorID, &e.ParentID, &e.MimeType, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// TrashEntry soft-deletes an entry.
func (s *SQLiteStore) TrashEntry(ctx context.Context, id int64) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE entries SET status = ? WHERE id = ?`, StatusTrash, id)
	return err
}

// MaxEntryID returns the highest positive entry id, or 0 when empty.
// The platform's own id sequence is not trusted, so entry ids come from
// the namespace allocator like record ids do.
func (s *SQLiteStore) MaxEntryID(ctx context.Context) (int64, error) {
	var maxID int64
	err := s.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM entries WHERE id > 0`).Scan(&maxID)
	return maxID, err
}

func (f ParentFilter) clause() (string, []any) {
	switch f.kind {
	case 1:
		return " AND parent_id = 0", nil
	case 2:
		return " AND parent_id = ?", []any{f.id}
	default:
		return "", nil
	}
}

// FindEntriesByTitle returns exact title matches, most recent (highest id)
// first, excluding trashed entries.
func (s *SQLiteStore) FindEntriesByTitle(ctx context.Context, entryType, title string, parent ParentFilter) ([]Entry, error) {
	query := `SELECT id, type, title, slug, status, author_id, parent_id, mime_type, created_at
		FROM entries WHERE type = ? AND title = ? AND status != ?`
	args := []any{entryType, title, StatusTrash}
	clause, extra := parent.clause()
	query += clause + " ORDER BY id DESC"
	args = append(args, extra...)
	return s.queryEntries(ctx, query, args...)
}

// ListEntries returns all live entries of a type scoped by parent.
func (s *SQLiteStore) ListEntries(ctx context.Context, entryType string, parent ParentFilter) ([]Entry, error) {
	query := `SELECT id, type, title, slug, status, author_id, parent_id, mime_type, created_at
		FROM entries WHERE type = ? AND status != ?`
	args := []any{entryType, StatusTrash}
	clause, extra := parent.clause()
	query += clause + " ORDER BY id DESC"
	args = append(args, extra...)
	return s.queryEntries(ctx, query, args...)
}

func (s *SQLiteStore) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Type, &e.Title, &e.Slug, &e.Status,
			&e.AuthorID, &e.ParentID, &e.MimeType, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SuggestTitles returns up to limit distinct live titles containing the
// substring, alphabetically ordered, for diagnostics on failed lookups.
func (s *SQLiteStore) SuggestTitles(ctx context.Context, entryType, substring string, limit int) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT DISTINCT title FROM entries
		 WHERE type = ? AND status != ? AND title LIKE ? ESCAPE '\'
		 ORDER BY title LIMIT ?`,
		entryType, StatusTrash, "%"+escapeLike(substring)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// FindTermByName looks up a taxonomy term by exact name.
func (s *SQLiteStore) FindTermByName(ctx context.Context, taxonomy, name string) (*Term, error) {
	return s.findTerm(ctx, `SELECT id, taxonomy, name, slug FROM terms WHERE taxonomy = ? AND name = ? ORDER BY id DESC LIMIT 1`, taxonomy, name)
}

// FindTermBySlug looks up a taxonomy term by exact slug.
func (s *SQLiteStore) FindTermBySlug(ctx context.Context, taxonomy, slug string) (*Term, error) {
	return s.findTerm(ctx, `SELECT id, taxonomy, name, slug FROM terms WHERE taxonomy = ? AND slug = ? ORDER BY id DESC LIMIT 1`, taxonomy, slug)
}

func (s *SQLiteStore) findTerm(ctx context.Context, query string, args ...any) (*Term, error) {
	t := &Term{}
	err := s.conn.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.Taxonomy, &t.Name, &t.Slug)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTerm inserts a taxonomy term. Terms are reference data seeded at
// deployment time, not created by the record pipeline.
func (s *SQLiteStore) CreateTerm(ctx context.Context, t *Term) error {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO terms (taxonomy, name, slug) VALUES (?, ?, ?)`,
		t.Taxonomy, t.Name, t.Slug)
	if err != nil {
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

// AttachTerm associates a term with an entry. Idempotent.
func (s *SQLiteStore) AttachTerm(ctx context.Context, entryID, termID int64) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO term_relationships (entry_id, term_id) VALUES (?, ?)`,
		entryID, termID)
	return err
}

// GetMeta reads one meta value. A missing key yields "" with no error:
// meta fields are optional by contract.
func (s *SQLiteStore) GetMeta(ctx context.Context, entryID int64, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM entry_meta WHERE entry_id = ? AND key = ?`, entryID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMeta writes one meta value, replacing any previous value.
func (s *SQLiteStore) SetMeta(ctx context.Context, entryID int64, key, value string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO entry_meta (entry_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (entry_id, key) DO UPDATE SET value = excluded.value`,
		entryID, key, value)
	return err
}

// GetUser fetches a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	u := &User{}
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, login, role FROM users WHERE id = ?`, id).Scan(&u.ID, &u.Login, &u.Role)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a user. Like terms, users are managed by the
// platform; this exists for seeding and tests.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (id, login, role) VALUES (?, ?, ?)`, u.ID, u.Login, u.Role)
	return err
}

// UserCan checks a capability for a user via the platform role model.
// Unknown users hold no capabilities.
func (s *SQLiteStore) UserCan(ctx context.Context, userID int64, capability string) (bool, error) {
	u, err := s.GetUser(ctx, userID)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return RoleCan(u.Role, capability), nil
}

var _ Store = (*SQLiteStore)(nil)
