package service

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/edirooss/choreo/internal/choreographer"
	"go.uber.org/zap"
)

// SnapshotSource lists per-loop choreographer stats.
type SnapshotSource interface {
	Snapshot() []choreographer.Stats
}

type SummaryOptions struct {
	// TTL controls how long the in-memory snapshot is served; default 250ms.
	TTL time.Duration
}

func (o *SummaryOptions) setDefaults() {
	if o.TTL <= 0 {
		o.TTL = 250 * time.Millisecond
	}
}

// SummaryResult lets the handler set headers.
type SummaryResult struct {
	Data        []choreographer.Stats
	CacheHit    bool
	GeneratedAt time.Time
}

// SummaryService caches registry snapshots briefly, so polling dashboards do
// not contend with the choreographer locks.
type SummaryService struct {
	log *zap.Logger
	src SnapshotSource

	mu      sync.RWMutex
	cache   []choreographer.Stats
	expires time.Time
	genAt   time.Time

	opts SummaryOptions
	now  func() time.Time

	sg singleflight.Group
}

// NewSummaryService wires the snapshot source and cache policy.
func NewSummaryService(log *zap.Logger, src SnapshotSource, opts SummaryOptions) *SummaryService {
	opts.setDefaults()
	return &SummaryService{
		log:  log.Named("summary_service"),
		src:  src,
		opts: opts,
		now:  time.Now,
	}
}

// Get returns the cached snapshot or refreshes it when expired.
// Concurrent refreshes are coalesced.
func (s *SummaryService) Get() SummaryResult {
	if res, ok := s.fresh(); ok {
		return res
	}

	v, _, _ := s.sg.Do("summary-refresh", func() (any, error) {
		// Double-check freshness after winning the flight
		if res, ok := s.fresh(); ok {
			return res, nil
		}

		start := s.now()
		data := s.src.Snapshot()

		s.mu.Lock()
		s.cache = data
		s.expires = start.Add(s.opts.TTL)
		s.genAt = start
		s.mu.Unlock()

		s.log.Debug("summary refreshed", zap.Int("choreographers", len(data)))
		return SummaryResult{Data: cloneStats(data), GeneratedAt: start}, nil
	})
	return v.(SummaryResult)
}

// Invalidate drops the cached snapshot.
func (s *SummaryService) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.expires = time.Time{}
	s.genAt = time.Time{}
	s.mu.Unlock()
}

func (s *SummaryService) fresh() (SummaryResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cache == nil || !s.now().Before(s.expires) {
		return SummaryResult{}, false
	}
	return SummaryResult{Data: cloneStats(s.cache), CacheHit: true, GeneratedAt: s.genAt}, true
}

func cloneStats(in []choreographer.Stats) []choreographer.Stats {
	if len(in) == 0 {
		return []choreographer.Stats{}
	}
	out := make([]choreographer.Stats, len(in))
	copy(out, in)
	return out
}
