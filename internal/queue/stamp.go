package queue

import (
	"sync"
	"time"
)

// stamper hands out strictly increasing creation times so jobs inserted in one
// call keep their insertion order even when the clock does not advance.
type stamper struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func (s *stamper) next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	return now
}
