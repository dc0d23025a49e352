// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package allocator produces collision-free primary keys for stores whose
// native auto-increment cannot be trusted.
//
// Each key namespace ("records", "entries", "vouchers") registers a max-id
// query. Allocation takes the namespace lock, computes max+1, and releases
// the lock on every exit path. Rows with id 0 are corrupt legacy data and
// are excluded by the registered max functions.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/herpatlas/herpatlas/internal/apperror"
	"github.com/herpatlas/herpatlas/internal/namedlock"
)

// MaxIDFunc returns the highest positive id currently present in a
// namespace, or 0 when the namespace is empty.
type MaxIDFunc func(ctx context.Context) (int64, error)

// Allocator allocates monotonically increasing ids per namespace.
type Allocator struct {
	locks      *namedlock.Manager
	wait       time.Duration
	namespaces map[string]MaxIDFunc

	mu     sync.Mutex
	issued map[string]int64
}

// New returns an allocator whose lock acquisitions wait at most wait.
func New(locks *namedlock.Manager, wait time.Duration) *Allocator {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &Allocator{
		locks:      locks,
		wait:       wait,
		namespaces: make(map[string]MaxIDFunc),
		issued:     make(map[string]int64),
	}
}

// Register binds a namespace to its max-id query. Registration happens at
// wiring time, before any Allocate call; it is not safe to race with
// Allocate.
func (a *Allocator) Register(namespace string, maxID MaxIDFunc) {
	a.namespaces[namespace] = maxID
}

// Allocate returns a fresh id for namespace, unique and monotonically
// increasing even under concurrent callers. On lock contention past the
// wait bound it fails with a LockTimeout error, signaling that retry is
// advisable rather than fatal.
func (a *Allocator) Allocate(ctx context.Context, namespace string) (int64, error) {
	maxID, ok := a.namespaces[namespace]
	if !ok {
		return 0, fmt.Errorf("allocator: unknown namespace %q", namespace)
	}

	release, err := a.locks.Acquire(ctx, "allocate:"+namespace, a.wait)
	if err != nil {
		if errors.Is(err, namedlock.ErrTimeout) {
			return 0, apperror.LockTimeout(namespace)
		}
		return 0, fmt.Errorf("allocator: acquiring lock for %q: %w", namespace, err)
	}
	defer release()

	current, err := maxID(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocator: reading max id for %q: %w", namespace, err)
	}
	if current < 0 {
		current = 0
	}

	// Ids handed out but not yet inserted don't show up in the store's
	// max; the high-water mark keeps concurrent callers from receiving
	// the same id while their inserts are still in flight.
	a.mu.Lock()
	if a.issued[namespace] > current {
		current = a.issued[namespace]
	}
	next := current + 1
	a.issued[namespace] = next
	a.mu.Unlock()

	return next, nil
}
