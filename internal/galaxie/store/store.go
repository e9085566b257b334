// Package store holds the last successful payload of each Galaxie feed.
//
// Each feed kind owns its own slot, so the slow and fast polling cycles
// never contend. Only successful fetches are put; a failed fetch leaves the
// slot untouched and readers keep seeing the stale payload.
package store

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/feed"
)

// Entry is a stored payload and the time it was put.
type Entry struct {
	Payload   feed.Payload
	FetchedAt time.Time
}

// Store is safe for concurrent use. The zero value is not usable; use New.
type Store struct {
	slots map[feed.Kind]*atomic.Pointer[Entry]
	now   func() time.Time
}

// New creates an empty store with one slot per feed kind.
func New() *Store {
	s := &Store{
		slots: make(map[feed.Kind]*atomic.Pointer[Entry], len(feed.Kinds())),
		now:   time.Now,
	}
	for _, k := range feed.Kinds() {
		s.slots[k] = &atomic.Pointer[Entry]{}
	}
	return s
}

// Get returns the last payload put for kind. ok is false until the first
// successful Put.
//
// The returned payload is shared with other readers and must not be modified.
func (s *Store) Get(kind feed.Kind) (Entry, bool) {
	slot, exists := s.slots[kind]
	if !exists {
		return Entry{}, false
	}
	e := slot.Load()
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// Put replaces the payload for kind. The payload is copied so later changes
// by the caller are not visible to readers.
func (s *Store) Put(kind feed.Kind, p feed.Payload) error {
	slot, exists := s.slots[kind]
	if !exists {
		return fmt.Errorf("%w: %d", feed.ErrUnknownKind, int(kind))
	}
	if p == nil {
		p = feed.Payload{}
	}
	slot.Store(&Entry{Payload: p.Clone(), FetchedAt: s.now()})
	return nil
}
