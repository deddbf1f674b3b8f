package serialmux

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

// subscriberSet fans lines out to subscriber channels. A subscriber whose
// buffer is full misses the line; the miss is counted in dropped.
type subscriberSet struct {
	mu      sync.Mutex
	subs    map[string]chan string
	closed  bool
	dropped atomic.Uint64
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// subscribe registers a new channel. After closeAll the returned channel is
// already closed so callers never block on it.
func (s *subscriberSet) subscribe(buffer int) (string, chan string) {
	id := randomID()
	ch := make(chan string, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return id, ch
	}
	if s.subs == nil {
		s.subs = make(map[string]chan string)
	}
	s.subs[id] = ch
	return id, ch
}

func (s *subscriberSet) unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// broadcast offers line to every subscriber without blocking. It reports
// false once the set has been closed.
func (s *subscriberSet) broadcast(line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for _, ch := range s.subs {
		select {
		case ch <- line:
		default:
			s.dropped.Add(1)
		}
	}
	return true
}

// closeAll closes and forgets every subscriber. It reports whether this
// call did the closing.
func (s *subscriberSet) closeAll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	return true
}

func (s *subscriberSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
