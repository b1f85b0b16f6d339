package triage

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a record lookup misses. Callers are
// expected to check existence before display; this error never reaches
// the presentation surface.
var ErrNotFound = errors.New("email record not found")

// Store is the in-memory working set of analyzed emails for the
// authenticated user. Records keep insertion order; replacing a record
// by ID keeps its original position. All methods are safe for
// concurrent use, and every mutation completes under a single write
// lock so aggregation never observes a partial update.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]int // ID -> index into records
	records []EmailRecord
	subs    []chan struct{}
}

// NewStore creates an empty record store.
func NewStore() *Store {
	return &Store{
		byID: make(map[string]int),
	}
}

// Upsert inserts the record, or replaces the record with the same ID in
// place without disturbing insertion order.
func (s *Store) Upsert(record EmailRecord) {
	s.mu.Lock()
	if i, ok := s.byID[record.ID]; ok {
		s.records[i] = record
	} else {
		s.byID[record.ID] = len(s.records)
		s.records = append(s.records, record)
	}
	s.mu.Unlock()

	s.notify()
}

// Remove deletes the record with the given ID. Removing an unknown ID
// returns ErrNotFound and leaves the store untouched.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	i, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("remove %q: %w", id, ErrNotFound)
	}

	s.records = append(s.records[:i], s.records[i+1:]...)
	delete(s.byID, id)
	for j := i; j < len(s.records); j++ {
		s.byID[s.records[j].ID] = j
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Get returns the record with the given ID, or ErrNotFound.
func (s *Store) Get(id string) (EmailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return EmailRecord{}, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	return s.records[i], nil
}

// All returns a copy of the full working set in insertion order.
func (s *Store) All() []EmailRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EmailRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear drops every record, e.g. on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	s.byID = make(map[string]int)
	s.records = nil
	s.mu.Unlock()

	s.notify()
}

// Subscribe returns a channel that receives a signal after every
// mutation. Signals are coalesced: a slow consumer sees at least one
// signal for any burst of mutations, not one per mutation.
func (s *Store) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
