// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package resolve turns the human-supplied names in an observation
// payload (taxonomic group, species/subspecies, county) into content
// store identifiers. Exact matches always win; species lookups fall back
// to phonetic matching and attach alphabetical title suggestions to the
// not-found error when everything misses.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/herpatlas/herpatlas/internal/apperror"
	"github.com/herpatlas/herpatlas/internal/content"
)

// maxSuggestions caps the diagnostic title list on a failed species lookup.
const maxSuggestions = 10

// Resolver resolves names against the content and taxonomy stores.
type Resolver struct {
	store content.Store
}

// New returns a Resolver reading from store.
func New(store content.Store) *Resolver {
	return &Resolver{store: store}
}

// Group resolves a taxonomic group name by exact content-entry title.
// When several live entries share the title, the most recent (highest id)
// wins.
func (r *Resolver) Group(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, apperror.Validation("group name is required")
	}
	entries, err := r.store.FindEntriesByTitle(ctx, content.TypeGroup, name, content.AnyParent())
	if err != nil {
		return 0, fmt.Errorf("resolve: looking up group %q: %w", name, err)
	}
	if len(entries) == 0 {
		return 0, apperror.NotFound("group %q not found", name)
	}
	return entries[0].ID, nil
}

var countyWord = regexp.MustCompile(`(?i)\bcounty\b`)

// County resolves a county name to its taxonomy term id. It tries exact
// name, then slug; if the input does not already contain the word
// "county" it retries both forms with " County" appended.
func (r *Resolver) County(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, apperror.Validation("county name is required")
	}

	if id, ok, err := r.countyOnce(ctx, name); err != nil || ok {
		return id, err
	}
	if !countyWord.MatchString(name) {
		if id, ok, err := r.countyOnce(ctx, name+" County"); err != nil || ok {
			return id, err
		}
	}
	return 0, apperror.NotFound("county %q not found", name)
}

func (r *Resolver) countyOnce(ctx context.Context, name string) (int64, bool, error) {
	term, err := r.store.FindTermByName(ctx, content.TaxonomyCounty, name)
	if err == nil {
		return term.ID, true, nil
	}
	if !errors.Is(err, content.ErrNotFound) {
		return 0, false, fmt.Errorf("resolve: looking up county term %q: %w", name, err)
	}
	term, err = r.store.FindTermBySlug(ctx, content.TaxonomyCounty, Slugify(name))
	if err == nil {
		return term.ID, true, nil
	}
	if !errors.Is(err, content.ErrNotFound) {
		return 0, false, fmt.Errorf("resolve: looking up county slug %q: %w", name, err)
	}
	return 0, false, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a name and collapses non-alphanumeric runs to
// hyphens, matching how the content platform slugs terms and entries.
func Slugify(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// Species resolves a species (or subspecies under parentName) to its
// content entry id.
//
// With a parent: the parent must exist by exact title, and the child is
// matched among the parent's direct children. The two misses produce
// distinct errors so the caller can tell which name was wrong.
//
// Without a parent: a top-level exact match is preferred, then any exact
// match. When exact matching misses, a phonetic match on the same parent
// scope is accepted only if it is unique; two phonetic candidates are
// ambiguous and treated as no match.
func (r *Resolver) Species(ctx context.Context, name, parentName string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, apperror.Validation("species name is required")
	}
	parentName = strings.TrimSpace(parentName)

	if parentName != "" {
		return r.subspecies(ctx, name, parentName)
	}

	// Top-level match preferred over a same-titled subspecies.
	for _, scope := range []content.ParentFilter{content.TopLevel(), content.AnyParent()} {
		entries, err := r.store.FindEntriesByTitle(ctx, content.TypeSpecies, name, scope)
		if err != nil {
			return 0, fmt.Errorf("resolve: looking up species %q: %w", name, err)
		}
		if len(entries) > 0 {
			return entries[0].ID, nil
		}
	}

	for _, scope := range []content.ParentFilter{content.TopLevel(), content.AnyParent()} {
		if id, ok, err := r.phonetic(ctx, name, scope); err != nil || ok {
			return id, err
		}
	}

	return 0, r.notFound(ctx, name)
}

func (r *Resolver) subspecies(ctx context.Context, name, parentName string) (int64, error) {
	parents, err := r.store.FindEntriesByTitle(ctx, content.TypeSpecies, parentName, content.AnyParent())
	if err != nil {
		return 0, fmt.Errorf("resolve: looking up parent species %q: %w", parentName, err)
	}
	if len(parents) == 0 {
		return 0, apperror.NotFound("parent species %q not found", parentName)
	}
	scope := content.ChildOf(parents[0].ID)

	entries, err := r.store.FindEntriesByTitle(ctx, content.TypeSpecies, name, scope)
	if err != nil {
		return 0, fmt.Errorf("resolve: looking up subspecies %q: %w", name, err)
	}
	if len(entries) > 0 {
		return entries[0].ID, nil
	}

	if id, ok, err := r.phonetic(ctx, name, scope); err != nil || ok {
		return id, err
	}

	return 0, r.notFound(ctx, name)
}

// phonetic returns the single entry in scope whose title is phonetically
// equivalent to name. More than one candidate is ambiguous: no match.
func (r *Resolver) phonetic(ctx context.Context, name string, scope content.ParentFilter) (int64, bool, error) {
	key := phoneticKey(name)
	if key == "" {
		return 0, false, nil
	}
	entries, err := r.store.ListEntries(ctx, content.TypeSpecies, scope)
	if err != nil {
		return 0, false, fmt.Errorf("resolve: listing species for phonetic match: %w", err)
	}
	var match int64
	var count int
	for _, e := range entries {
		if phoneticKey(e.Title) == key {
			count++
			if count > 1 {
				return 0, false, nil
			}
			match = e.ID
		}
	}
	if count == 1 {
		return match, true, nil
	}
	return 0, false, nil
}

func (r *Resolver) notFound(ctx context.Context, name string) error {
	suggestions, err := r.store.SuggestTitles(ctx, content.TypeSpecies, name, maxSuggestions)
	if err != nil {
		// Diagnostics are best-effort; the lookup failure stands on its own.
		suggestions = nil
	}
	return apperror.NotFound("species %q not found", name).WithSuggestions(suggestions)
}
