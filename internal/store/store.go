package store

import (
	"sync"
	"time"

	"github.com/virtualhems/fleet-relay/internal/types"
)

// Entry is a point-in-time view of one fleet member: its latest record
// and how long ago it was received.
type Entry struct {
	UserID string
	Record types.TelemetryRecord
	Age    time.Duration
}

type liveEntry struct {
	record     types.TelemetryRecord
	receivedAt time.Time
}

// Store is the live fleet state: a keyed overwrite cache mapping
// participant identity to its most recent telemetry record. It retains
// no history and never expires entries on its own; staleness is the
// reader's concern, evaluated against the receipt time. All operations
// are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]liveEntry
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates a store with a custom clock (useful for testing).
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		entries: make(map[string]liveEntry),
		now:     now,
	}
}

// Upsert inserts or replaces the entry for userID, stamping the receipt
// time. Last write wins regardless of the record's embedded origin
// timestamp; unknown identities are created on demand.
func (s *Store) Upsert(userID string, rec types.TelemetryRecord) {
	s.mu.Lock()
	s.entries[userID] = liveEntry{record: rec, receivedAt: s.now()}
	s.mu.Unlock()
}

// Get returns the latest record for userID. The second return value is
// false if no upsert has ever occurred for that identity; staleness does
// not affect it.
func (s *Store) Get(userID string) (types.TelemetryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[userID]
	if !ok {
		return types.TelemetryRecord{}, false
	}
	return e.record, true
}

// Snapshot returns a consistent copy of all entries with their ages.
// Order is unspecified. Mutating the result never affects the store.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	out := make([]Entry, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, Entry{
			UserID: id,
			Record: e.record,
			Age:    now.Sub(e.receivedAt),
		})
	}
	return out
}

// IsFresh reports whether userID was upserted within the last threshold.
// An absent identity is never fresh.
func (s *Store) IsFresh(userID string, threshold time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[userID]
	if !ok {
		return false
	}
	return s.now().Sub(e.receivedAt) < threshold
}

// Remove evicts the entry for userID. Removing an absent identity is a
// no-op.
func (s *Store) Remove(userID string) {
	s.mu.Lock()
	delete(s.entries, userID)
	s.mu.Unlock()
}

// Len returns the number of retained entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
