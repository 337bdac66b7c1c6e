// Package keymutex provides a mutex keyed by string, used to serialize all
// capacity-mutating operations on one ride while letting different rides
// proceed in parallel.
package keymutex

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// KeyMutex is a set of mutexes addressed by key. Entries are created on
// first use and dropped once no goroutine holds or waits for them, so the
// map does not grow with the number of rides ever seen.
type KeyMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *KeyMutex {
	return &KeyMutex{entries: make(map[string]*entry)}
}

// Lock acquires the section for key, waiting at most until ctx is done.
// On ctx expiry the section is not held and ctx.Err() is returned.
func (m *KeyMutex) Lock(ctx context.Context, key string) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.put(key, e)
		return ctx.Err()
	}
}

// Unlock releases the section for key. Unlocking a key that is not held is
// a programming error and panics, matching sync.Mutex behavior.
func (m *KeyMutex) Unlock(key string) {
	m.mu.Lock()
	e, ok := m.entries[key]
	m.mu.Unlock()
	if !ok {
		panic("keymutex: unlock of unheld key " + key)
	}

	select {
	case <-e.sem:
	default:
		panic("keymutex: unlock of unheld key " + key)
	}
	m.put(key, e)
}

func (m *KeyMutex) put(key string, e *entry) {
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
	m.mu.Unlock()
}
