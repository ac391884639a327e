package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/edirooss/choreo/pkg/achoreographer"
	"go.uber.org/zap"
)

var (
	ErrFrameSchedulingUnavailable = errors.New("frame scheduling unavailable on this loop")
	ErrFrameStatsRunning          = errors.New("frame stats already running")
)

// recentIntervals is how many intervals a snapshot reports and averages.
const recentIntervals = 60

// FrameStats is a snapshot of the frame statistics.
type FrameStats struct {
	Running            bool            `json:"running"`
	Frames             uint64          `json:"frames"`
	LastFrameTime      int64           `json:"last_frame_time_ns"`
	MeanInterval       time.Duration   `json:"mean_interval_ns"`
	FPS                float64         `json:"fps"`
	VsyncPeriod        int64           `json:"vsync_period_ns"`
	RefreshRateChanges uint64          `json:"refresh_rate_changes"`
	RecentIntervals    []time.Duration `json:"recent_intervals_ns"` // newest → oldest
}

// FrameStatsService is a frame callback client: it re-posts itself on every
// frame and measures the intervals between frame times.
//
// Start must be called on an event loop; Snapshot and Stop may be called from
// any goroutine.
//
// Run at most one per loop: refresh-rate listeners are keyed by code pointer,
// so Stop removes the listener of every FrameStatsService on the same loop.
type FrameStatsService struct {
	log     *zap.Logger
	history frameHistory

	mu          sync.Mutex
	ch          *achoreographer.AChoreographer
	loopCtx     context.Context // only used on the loop goroutine
	running     bool
	gen         uint64 // tags frame callbacks of the current run
	frames      uint64
	lastFrame   int64
	vsyncPeriod int64
	rateChanges uint64
}

func NewFrameStatsService(log *zap.Logger) *FrameStatsService {
	return &FrameStatsService{log: log.Named("frame-stats")}
}

// Start begins measuring on the loop carried by ctx.
func (s *FrameStatsService) Start(ctx context.Context) error {
	ch := achoreographer.GetInstance(ctx)
	if ch == nil {
		return ErrFrameSchedulingUnavailable
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrFrameStatsRunning
	}
	s.running = true
	s.gen++
	s.ch = ch
	s.loopCtx = ctx
	s.lastFrame = 0
	gen := s.gen
	s.mu.Unlock()

	achoreographer.RegisterRefreshRateCallback(ch, s.onRefreshRate, nil)
	achoreographer.PostFrameCallback64(ctx, ch, s.onFrame, gen)

	s.log.Info("frame stats started")
	return nil
}

// Stop ends measuring. A frame callback already queued fires once more and
// is ignored.
func (s *FrameStatsService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	ch := s.ch
	s.mu.Unlock()

	achoreographer.UnregisterRefreshRateCallback(ch, s.onRefreshRate)
	s.log.Info("frame stats stopped")
}

// Snapshot returns the current statistics.
func (s *FrameStatsService) Snapshot() FrameStats {
	s.mu.Lock()
	out := FrameStats{
		Running:            s.running,
		Frames:             s.frames,
		LastFrameTime:      s.lastFrame,
		VsyncPeriod:        s.vsyncPeriod,
		RefreshRateChanges: s.rateChanges,
	}
	s.mu.Unlock()

	out.RecentIntervals = s.history.Read(recentIntervals)
	out.MeanInterval = s.history.Mean(recentIntervals)
	if out.MeanInterval > 0 {
		out.FPS = float64(time.Second) / float64(out.MeanInterval)
	}
	return out
}

func (s *FrameStatsService) onFrame(frameTimeNanos int64, data any) {
	s.mu.Lock()
	if gen, _ := data.(uint64); !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	if s.lastFrame != 0 && frameTimeNanos > s.lastFrame {
		s.history.Append(time.Duration(frameTimeNanos - s.lastFrame))
	}
	s.lastFrame = frameTimeNanos
	s.frames++
	ch, ctx, gen := s.ch, s.loopCtx, s.gen
	s.mu.Unlock()

	achoreographer.PostFrameCallback64(ctx, ch, s.onFrame, gen)
}

func (s *FrameStatsService) onRefreshRate(vsyncPeriodNanos int64, _ any) {
	s.mu.Lock()
	s.vsyncPeriod = vsyncPeriodNanos
	s.rateChanges++
	s.mu.Unlock()

	s.log.Info("refresh rate changed", zap.Duration("vsync_period", time.Duration(vsyncPeriodNanos)))
}
