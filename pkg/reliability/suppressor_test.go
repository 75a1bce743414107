package reliability

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestSuppressor(horizon time.Duration) (*DuplicateSuppressor, *time.Time) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &DuplicateSuppressor{
		seen:    make(map[string]time.Time),
		horizon: horizon,
		done:    make(chan struct{}),
		now:     func() time.Time { return now },
	}
	return s, &now
}

func TestCheckAndRecord(t *testing.T) {
	s, _ := newTestSuppressor(time.Hour)

	if got := s.CheckAndRecord("msg-1"); got != Accepted {
		t.Fatalf("first CheckAndRecord = %v, want Accepted", got)
	}
	if got := s.CheckAndRecord("msg-1"); got != Duplicate {
		t.Fatalf("second CheckAndRecord = %v, want Duplicate", got)
	}
	if got := s.CheckAndRecord("msg-2"); got != Accepted {
		t.Fatalf("distinct ID CheckAndRecord = %v, want Accepted", got)
	}
}

func TestHorizonReopensID(t *testing.T) {
	s, now := newTestSuppressor(time.Hour)

	if got := s.CheckAndRecord("msg-1"); got != Accepted {
		t.Fatalf("CheckAndRecord = %v, want Accepted", got)
	}

	*now = now.Add(30 * time.Minute)
	if got := s.CheckAndRecord("msg-1"); got != Duplicate {
		t.Fatalf("within horizon CheckAndRecord = %v, want Duplicate", got)
	}

	*now = now.Add(31 * time.Minute)
	if got := s.CheckAndRecord("msg-1"); got != Accepted {
		t.Fatalf("after horizon CheckAndRecord = %v, want Accepted", got)
	}
}

func TestSeen(t *testing.T) {
	s, now := newTestSuppressor(time.Hour)

	if s.Seen("msg-1") {
		t.Fatal("Seen reported an unknown ID")
	}
	s.CheckAndRecord("msg-1")
	if !s.Seen("msg-1") {
		t.Fatal("Seen missed a recorded ID")
	}

	*now = now.Add(2 * time.Hour)
	if s.Seen("msg-1") {
		t.Fatal("Seen reported an expired ID")
	}
}

func TestEvict(t *testing.T) {
	s, now := newTestSuppressor(time.Hour)

	for i := 0; i < 5; i++ {
		s.CheckAndRecord(fmt.Sprintf("old-%d", i))
	}
	*now = now.Add(2 * time.Hour)
	for i := 0; i < 3; i++ {
		s.CheckAndRecord(fmt.Sprintf("new-%d", i))
	}

	if got := s.Evict(); got != 5 {
		t.Fatalf("Evict removed %d entries, want 5", got)
	}
	if got := s.Len(); got != 3 {
		t.Fatalf("Len = %d after eviction, want 3", got)
	}
}

func TestConcurrentCheckAndRecord(t *testing.T) {
	s := NewDuplicateSuppressor(time.Hour)
	defer s.Stop()

	const callers = 64
	var accepted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.CheckAndRecord("msg-1") == Accepted {
				accepted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := accepted.Load(); got != 1 {
		t.Fatalf("%d callers observed Accepted, want exactly 1", got)
	}
}

func TestStopIdempotent(t *testing.T) {
	s := NewDuplicateSuppressor(time.Hour)
	s.Stop()
	s.Stop()

	// CheckAndRecord keeps working after Stop.
	if got := s.CheckAndRecord("msg-1"); got != Accepted {
		t.Fatalf("CheckAndRecord after Stop = %v, want Accepted", got)
	}
}

func TestDefaultHorizon(t *testing.T) {
	s := NewDuplicateSuppressor(0)
	defer s.Stop()

	if s.horizon != DefaultDisposalHorizon {
		t.Fatalf("horizon = %v, want %v", s.horizon, DefaultDisposalHorizon)
	}
}

func TestDuplicateMessageError(t *testing.T) {
	err := &DuplicateMessageError{MessageID: "msg-1"}
	want := "message msg-1 already received within the duplicate detection window"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
