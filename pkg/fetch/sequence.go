package fetch

import "sync"

// Ticket identifies one issued request for a logical key.
type Ticket struct {
	Key string
	Seq uint64
}

// Sequencer hands out monotonically increasing request numbers and remembers
// the newest one per key. Only the newest ticket of a key may commit.
type Sequencer struct {
	mu     sync.Mutex
	next   uint64
	latest map[string]uint64
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{latest: make(map[string]uint64)}
}

// Issue starts a new request for key, superseding every earlier one.
func (s *Sequencer) Issue(key string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.latest[key] = s.next
	return Ticket{Key: key, Seq: s.next}
}

// IsLatest reports whether t is still the newest request for its key.
func (s *Sequencer) IsLatest(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[t.Key] == t.Seq
}

// Commit runs apply only if t is still the newest ticket for its key. The
// check and apply happen under the same lock, so an older response can never
// overwrite a newer one.
func (s *Sequencer) Commit(t Ticket, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest[t.Key] != t.Seq {
		return false
	}
	if apply != nil {
		apply()
	}
	return true
}

// Cancel drops interest in every outstanding request for key.
func (s *Sequencer) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.latest[key] = s.next
}
