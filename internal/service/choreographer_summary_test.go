package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edirooss/choreo/internal/choreographer"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type countingSnapshots struct {
	calls atomic.Int32
	stats []choreographer.Stats
	delay time.Duration
}

func (s *countingSnapshots) Snapshot() []choreographer.Stats {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.stats
}

func newTestSummary(src SnapshotSource) (*SummaryService, *time.Time) {
	s := NewSummaryService(zap.NewNop(), src, SummaryOptions{TTL: time.Second})
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestSummary_CachesWithinTTL(t *testing.T) {
	src := &countingSnapshots{stats: []choreographer.Stats{{LoopID: uuid.New(), State: "idle"}}}
	s, now := newTestSummary(src)

	first := s.Get()
	if first.CacheHit || len(first.Data) != 1 {
		t.Fatalf("first Get = %+v, want a miss with one entry", first)
	}

	*now = now.Add(500 * time.Millisecond)
	second := s.Get()
	if !second.CacheHit {
		t.Fatal("second Get within TTL missed the cache")
	}
	if !second.GeneratedAt.Equal(first.GeneratedAt) {
		t.Fatal("cache hit reported a different generation time")
	}

	*now = now.Add(time.Second)
	if third := s.Get(); third.CacheHit {
		t.Fatal("Get after TTL hit the cache")
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("snapshot calls = %d, want 2", got)
	}
}

func TestSummary_Invalidate(t *testing.T) {
	src := &countingSnapshots{stats: []choreographer.Stats{}}
	s, _ := newTestSummary(src)

	s.Get()
	s.Invalidate()
	if res := s.Get(); res.CacheHit {
		t.Fatal("Get after Invalidate hit the cache")
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("snapshot calls = %d, want 2", got)
	}
}

func TestSummary_ResultIsACopy(t *testing.T) {
	src := &countingSnapshots{stats: []choreographer.Stats{{State: "idle"}}}
	s, _ := newTestSummary(src)

	res := s.Get()
	res.Data[0].State = "mutated"

	if again := s.Get(); again.Data[0].State != "idle" {
		t.Fatal("caller mutation leaked into the cache")
	}
}

func TestSummary_EmptyDataIsNotNil(t *testing.T) {
	s, _ := newTestSummary(&countingSnapshots{stats: []choreographer.Stats{}})

	if res := s.Get(); res.Data == nil {
		t.Fatal("empty snapshot returned nil data")
	}
}

func TestSummary_CoalescesConcurrentRefreshes(t *testing.T) {
	src := &countingSnapshots{stats: []choreographer.Stats{}, delay: 50 * time.Millisecond}
	s := NewSummaryService(zap.NewNop(), src, SummaryOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Get()
		}()
	}
	wg.Wait()

	if got := src.calls.Load(); got > 2 {
		t.Fatalf("snapshot calls = %d, want concurrent refreshes coalesced", got)
	}
}
