package outbox

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrStoreClosed is returned when operations are attempted on a closed store.
var ErrStoreClosed = errors.New("store is closed")

// FilterOptions specifies criteria for listing entries.
type FilterOptions struct {
	Since  time.Duration // Only entries newer than now-since (0=all)
	Status string        // sent, failed, or empty for any
	Limit  int           // Maximum results (0=unlimited)
}

// Store holds submission entries in memory, backed by optional persistence.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int // id -> slice index

	persistence Persistence
	closed      bool
}

// NewStore creates a new Store.
// If persistence is not nil, it will be used to persist entries.
func NewStore(persistence Persistence) *Store {
	return &Store{
		index:       make(map[string]int),
		persistence: persistence,
	}
}

// Hydrate replaces the in-memory entries with those in persistence.
func (s *Store) Hydrate() error {
	if s.persistence == nil {
		return nil
	}

	entries, err := s.persistence.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = s.entries[:0]
	s.index = make(map[string]int, len(entries))
	for _, e := range entries {
		if _, exists := s.index[e.ID]; exists {
			continue
		}
		s.index[e.ID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return nil
}

// Add records an entry. Entries with an existing ID are ignored.
func (s *Store) Add(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, exists := s.index[e.ID]; exists {
		return nil
	}

	if s.persistence != nil {
		if err := s.persistence.Append(e); err != nil {
			return err
		}
	}

	s.index[e.ID] = len(s.entries)
	s.entries = append(s.entries, e)
	return nil
}

// Get returns the entry with id, or nil.
func (s *Store) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.index[id]
	if !ok {
		return nil
	}
	e := s.entries[idx]
	return &e
}

// List returns matching entries, newest first.
func (s *Store) List(opts FilterOptions) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cutoff int64
	if opts.Since > 0 {
		cutoff = time.Now().Add(-opts.Since).Unix()
	}

	result := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if cutoff > 0 && e.CreatedAt < cutoff {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		result = append(result, e)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

// Count returns the number of entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Prune removes entries older than olderThan (0 = no age limit) and then
// keeps at most keep of the newest (0 = unlimited). It returns the number
// removed.
func (s *Store) Prune(olderThan time.Duration, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var cutoff int64
	if olderThan > 0 {
		cutoff = time.Now().Add(-olderThan).Unix()
	}

	kept := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if cutoff > 0 && e.CreatedAt < cutoff {
			continue
		}
		kept = append(kept, e)
	}

	if keep > 0 && len(kept) > keep {
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].CreatedAt < kept[j].CreatedAt
		})
		kept = kept[len(kept)-keep:]
	}

	removed := len(s.entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if s.persistence != nil {
		if err := s.persistence.Rewrite(kept); err != nil {
			return 0, err
		}
	}

	s.entries = kept
	s.index = make(map[string]int, len(kept))
	for i, e := range kept {
		s.index[e.ID] = i
	}
	return removed, nil
}

// Close closes the store and its persistence.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.persistence != nil {
		return s.persistence.Close()
	}
	return nil
}
