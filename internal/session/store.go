// Package session holds per-conversation state: the sticky escalation flag,
// the rolling short history, and the last triage outcome used to resolve
// follow-up messages. One session id maps to exactly one mutable record.
package session

import (
	"sync"
	"time"
)

// DefaultHistoryCap is the maximum number of (message, verdict) turns kept
// per session.
const DefaultHistoryCap = 10

// DefaultTTL is how long an idle session survives before the expiry sweep
// removes it.
const DefaultTTL = 30 * time.Minute

// Turn is one prior exchange kept in the short history.
type Turn struct {
	Role    string    `json:"role"` // "user" or "assistant"
	Content string    `json:"content"`
	Urgency string    `json:"urgency,omitempty"`
	At      time.Time `json:"at"`
}

// Record is the mutable per-session state. It must only be touched while
// holding the record's lock via Store.WithSession.
type Record struct {
	ID          string
	Escalated   bool
	LastUrgency string
	LastTags    []string

	history  []Turn
	lastSeen time.Time
	mu       sync.Mutex
}

// History returns a copy of the short history, oldest first.
func (r *Record) History() []Turn {
	out := make([]Turn, len(r.history))
	copy(out, r.history)
	return out
}

// Append adds a turn to the short history, evicting the oldest entries
// beyond the cap.
func (r *Record) Append(t Turn, cap int) {
	r.history = append(r.history, t)
	if len(r.history) > cap {
		r.history = r.history[len(r.history)-cap:]
	}
}

// Store is the process-wide session registry. The registry lock only guards
// the map; each record carries its own mutex so two concurrent messages in
// the same conversation serialize against each other while requests for
// different sessions proceed in parallel.
type Store struct {
	mu         sync.RWMutex
	records    map[string]*Record
	historyCap int
	ttl        time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithHistoryCap overrides the per-session history cap.
func WithHistoryCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyCap = n
		}
	}
}

// WithTTL overrides the idle session time-to-live used by Sweep.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		records:    make(map[string]*Record),
		historyCap: DefaultHistoryCap,
		ttl:        DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HistoryCap returns the configured per-session history cap.
func (s *Store) HistoryCap() int { return s.historyCap }

// get returns the record for id, creating it on first use.
func (s *Store) get(id string) *Record {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if ok {
		return rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok = s.records[id]; ok {
		return rec
	}
	rec = &Record{ID: id, lastSeen: time.Now()}
	s.records[id] = rec
	return rec
}

// WithSession runs fn with exclusive access to the session's record. The
// whole read-modify-write sequence for one chat turn executes inside this
// section, so concurrent messages for the same session cannot race on the
// escalation flag or the history. The registry lock is not held while fn
// runs.
func (s *Store) WithSession(id string, fn func(rec *Record) error) error {
	rec := s.get(id)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.lastSeen = time.Now()
	return fn(rec)
}

// Reset clears the session's state, including the escalation lock. Returns
// false if the session did not exist.
func (s *Store) Reset(id string) bool {
	s.mu.Lock()
	rec, ok := s.records[id]
	if ok {
		delete(s.records, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	// Wait for any in-flight turn so the caller observes a quiesced session.
	rec.mu.Lock()
	rec.mu.Unlock() //nolint:staticcheck // lock/unlock pair is a barrier
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed. Intended to run on a schedule from the serve command. The
// registry lock is never held while waiting on a record lock: a session with
// a turn in flight is by definition not idle, so it is skipped and picked up
// on a later pass. Other sessions keep proceeding in parallel throughout.
func (s *Store) Sweep(now time.Time) int {
	s.mu.RLock()
	snapshot := make(map[string]*Record, len(s.records))
	for id, rec := range s.records {
		snapshot[id] = rec
	}
	s.mu.RUnlock()

	var expired []string
	for id, rec := range snapshot {
		if !rec.mu.TryLock() {
			continue
		}
		idle := now.Sub(rec.lastSeen)
		rec.mu.Unlock()
		if idle > s.ttl {
			expired = append(expired, id)
		}
	}
	if len(expired) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, id := range expired {
		rec, ok := s.records[id]
		if !ok {
			continue
		}
		// Recheck without blocking; the session may have been touched since
		// the snapshot.
		if !rec.mu.TryLock() {
			continue
		}
		idle := now.Sub(rec.lastSeen)
		rec.mu.Unlock()
		if idle > s.ttl {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}
