// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package namedlock provides mutual-exclusion locks keyed by name with a
// bounded acquisition wait.
//
// The id allocator uses one lock per key namespace so concurrent writers
// never read the same max id. Locks are process-local; the single API
// process is the only writer of the backing database.
package namedlock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock cannot be acquired within the wait
// bound. Callers should treat it as retryable.
var ErrTimeout = errors.New("namedlock: acquisition timed out")

// Manager hands out named locks. The zero value is not usable; call New.
type Manager struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// New returns an empty lock manager.
func New() *Manager {
	return &Manager{locks: make(map[string]chan struct{})}
}

// lockChan returns the semaphore channel for name, creating it on first use.
func (m *Manager) lockChan(name string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[name] = ch
	}
	return ch
}

// Acquire takes the lock for name, waiting at most wait. It returns a
// release function that must be called exactly once; releasing is safe on
// every exit path including after errors from the guarded work.
func (m *Manager) Acquire(ctx context.Context, name string, wait time.Duration) (func(), error) {
	ch := m.lockChan(name)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() { <-ch })
		}
		return release, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
