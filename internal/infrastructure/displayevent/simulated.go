package displayevent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edirooss/choreo/pkg/monotime"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultVsyncPeriod is a 60Hz refresh.
const DefaultVsyncPeriod = time.Second / 60

// SimulatedOptions configures a SimulatedSource.
type SimulatedOptions struct {
	Period    time.Duration // defaults to DefaultVsyncPeriod
	DisplayID uint64        // reported on every event
	Buffer    int           // event channel capacity; default 16
	Now       func() int64  // monotonic nanoseconds; default monotime.Now
}

func (o *SimulatedOptions) setDefaults() {
	if o.Period <= 0 {
		o.Period = DefaultVsyncPeriod
	}
	if o.Buffer <= 0 {
		o.Buffer = 16
	}
	if o.Now == nil {
		o.Now = monotime.Now
	}
}

// SimulatedSource is a software display: it produces a vsync pulse on the
// next period boundary after each request wave, and never unrequested.
type SimulatedSource struct {
	log    *zap.Logger
	now    func() int64
	events chan Event
	req    chan struct{} // coalescing wake-up
	done   chan struct{}

	displayID uint64

	mu             sync.Mutex
	period         time.Duration
	configID       int32
	configDelivery bool
	closed         bool
	count          uint32

	closeOnce sync.Once
}

// NewSimulatedSource starts the pulse generator and reports the display as
// connected.
func NewSimulatedSource(log *zap.Logger, opts SimulatedOptions) *SimulatedSource {
	opts.setDefaults()

	s := &SimulatedSource{
		log:       log.Named("simulated-display").With(zap.Uint64("display_id", opts.DisplayID)),
		now:       opts.Now,
		events:    make(chan Event, opts.Buffer),
		req:       make(chan struct{}, 1),
		done:      make(chan struct{}),
		displayID: opts.DisplayID,
		period:    opts.Period,
	}

	s.emit(Event{Kind: KindHotplug, Timestamp: s.now(), DisplayID: s.displayID, Connected: true})
	go s.run()
	return s
}

// SimulatedFactory returns a Factory that opens one SimulatedSource per loop.
// onOpen, when non-nil, observes each opened source.
func SimulatedFactory(log *zap.Logger, opts SimulatedOptions, onOpen func(*SimulatedSource)) Factory {
	return func(_ context.Context, _ uuid.UUID) (Source, error) {
		s := NewSimulatedSource(log, opts)
		if onOpen != nil {
			onOpen(s)
		}
		return s, nil
	}
}

// Events implements Source.
func (s *SimulatedSource) Events() <-chan Event { return s.events }

// RequestNextVsync implements Source.
func (s *SimulatedSource) RequestNextVsync() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSourceClosed
	}

	select {
	case s.req <- struct{}{}:
	default:
	}
	return nil
}

// SetConfigChangedDelivery implements Source.
func (s *SimulatedSource) SetConfigChangedDelivery(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSourceClosed
	}
	s.configDelivery = enabled
	return nil
}

// Period returns the current vsync period.
func (s *SimulatedSource) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

// SetPeriod switches the display to a new refresh period. A config-changed
// event is emitted when delivery is enabled, even if the period is unchanged,
// as a real pipeline reports every mode switch.
func (s *SimulatedSource) SetPeriod(period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("invalid vsync period %s", period)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSourceClosed
	}
	s.period = period
	s.configID++
	ev := Event{
		Kind:        KindConfigChanged,
		Timestamp:   s.now(),
		DisplayID:   s.displayID,
		ConfigID:    s.configID,
		VsyncPeriod: int64(period),
	}
	deliver := s.configDelivery
	s.mu.Unlock()

	s.log.Info("display mode changed", zap.Duration("vsync_period", period), zap.Bool("delivered", deliver))
	if deliver {
		s.emit(ev)
	}
	return nil
}

// Close stops the generator. Pending requests are dropped.
func (s *SimulatedSource) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}

func (s *SimulatedSource) run() {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.req:
		}

		// Align the pulse to the next period boundary.
		s.mu.Lock()
		period := int64(s.period)
		s.mu.Unlock()

		now := s.now()
		next := (now/period + 1) * period
		timer.Reset(time.Duration(next - now))

		select {
		case <-s.done:
			return
		case <-timer.C:
		}

		// requests made while waiting are served by this pulse
		select {
		case <-s.req:
		default:
		}

		s.mu.Lock()
		s.count++
		ev := Event{Kind: KindVsync, Timestamp: next, DisplayID: s.displayID, Count: s.count}
		s.mu.Unlock()

		s.emit(ev)
	}
}

func (s *SimulatedSource) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

var _ Source = (*SimulatedSource)(nil)
