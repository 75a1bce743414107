package reliability

import (
	"fmt"
	"sync"
	"time"
)

// Outcome is the result of a CheckAndRecord call
type Outcome int

const (
	// Accepted means the message ID was not known and is now recorded
	Accepted Outcome = iota
	// Duplicate means the message ID was already accepted within the
	// disposal horizon
	Duplicate
)

func (o Outcome) String() string {
	if o == Accepted {
		return "Accepted"
	}
	return "Duplicate"
}

// DuplicateMessageError reports a message rejected as a duplicate. The
// transport layer maps it to the EBMS:0004 Other error code.
type DuplicateMessageError struct {
	MessageID string
}

func (e *DuplicateMessageError) Error() string {
	return fmt.Sprintf("message %s already received within the duplicate detection window", e.MessageID)
}

// DefaultDisposalHorizon is how long message IDs are remembered when no
// horizon is configured
const DefaultDisposalHorizon = 48 * time.Hour

const sweepDivisor = 8

// DuplicateSuppressor tracks recently accepted message identifiers.
// Safe for concurrent use; the check-and-insert is atomic, so exactly
// one of any number of racing callers for the same ID observes
// Accepted.
type DuplicateSuppressor struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	horizon time.Duration

	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewDuplicateSuppressor creates a suppressor with the given disposal
// horizon and starts its background sweep. Stop must be called to
// release the sweep goroutine.
func NewDuplicateSuppressor(horizon time.Duration) *DuplicateSuppressor {
	if horizon <= 0 {
		horizon = DefaultDisposalHorizon
	}
	s := &DuplicateSuppressor{
		seen:    make(map[string]time.Time),
		horizon: horizon,
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go s.sweep()
	return s
}

// CheckAndRecord atomically tests whether the message ID was accepted
// within the disposal horizon and records it if not. An entry whose
// horizon has elapsed counts as unseen and is replaced.
func (s *DuplicateSuppressor) CheckAndRecord(messageID string) Outcome {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if firstSeen, ok := s.seen[messageID]; ok {
		if now.Sub(firstSeen) <= s.horizon {
			return Duplicate
		}
		// expired entry, evict lazily and accept again
	}
	s.seen[messageID] = now
	return Accepted
}

// Seen reports whether the message ID is currently within the horizon
// without recording it
func (s *DuplicateSuppressor) Seen(messageID string) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	firstSeen, ok := s.seen[messageID]
	return ok && now.Sub(firstSeen) <= s.horizon
}

// Len returns the number of retained entries, expired ones included
func (s *DuplicateSuppressor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Evict drops every entry whose horizon has elapsed and returns how
// many were removed
func (s *DuplicateSuppressor) Evict() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, firstSeen := range s.seen {
		if now.Sub(firstSeen) > s.horizon {
			delete(s.seen, id)
			evicted++
		}
	}
	return evicted
}

// Stop ends the background sweep. Idempotent; CheckAndRecord keeps
// working after Stop, relying on lazy eviction only.
func (s *DuplicateSuppressor) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *DuplicateSuppressor) sweep() {
	interval := s.horizon / sweepDivisor
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Evict()
		case <-s.done:
			return
		}
	}
}
