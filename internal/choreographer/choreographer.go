package choreographer

import (
	"context"
	"sync"
	"time"

	"github.com/edirooss/choreo/internal/infrastructure/displayevent"
	"github.com/edirooss/choreo/internal/infrastructure/looper"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State describes what the choreographer is waiting for.
type State int32

const (
	// StateIdle: nothing requested from the display or the loop.
	StateIdle State = iota
	// StateAwaitingVsync: a callback is due and a vsync has been requested.
	StateAwaitingVsync
	// StateAwaitingRecheck: callbacks are pending but not due; a re-check
	// message is armed on the loop.
	StateAwaitingRecheck
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingVsync:
		return "awaiting_vsync"
	case StateAwaitingRecheck:
		return "awaiting_recheck"
	default:
		return "unknown"
	}
}

// Clock reads the monotonic clock that due times and vsync timestamps share.
type Clock interface {
	Now() int64
}

// DisplayEvents is the owning-loop side of a display-event connection.
// RequestNextVsync may only be called on the owning loop.
type DisplayEvents interface {
	RequestNextVsync() error
	ToggleConfigEvents(enabled bool) error
}

// Loop messages.
const (
	msgScheduleCallbacks = iota // re-check whether the earliest callback is due
	msgScheduleVsync            // request a vsync from the owning loop
)

// Choreographer schedules frame callbacks for one event loop and runs them on
// vsync pulses, earliest due first.
//
// Concurrency model
//
//   - any goroutine may post callbacks and (un)register listeners
//   - vsync, config and loop messages arrive on the owning loop only
//   - mu guards the queue, the listener set and the recorded period; it is
//     never held while client callbacks run, so callbacks may post again
type Choreographer struct {
	log     *zap.Logger
	loop    looper.Queue
	display DisplayEvents
	clock   Clock

	mu          sync.Mutex
	callbacks   deadlineQueue
	refreshRate refreshRateObservers
	state       State
	counters    counters
}

type counters struct {
	posted              uint64
	dispatched          uint64
	vsyncRequests       uint64
	configNotifications uint64
}

// New returns a choreographer owned by loop. display receives vsync requests
// and config-delivery toggles; clock must share the display's timebase.
func New(log *zap.Logger, loop looper.Queue, display DisplayEvents, clock Clock) *Choreographer {
	return &Choreographer{
		log:     log.Named("choreographer").With(zap.Stringer("loop_id", loop.ID())),
		loop:    loop,
		display: display,
		clock:   clock,
	}
}

// LoopID returns the identity of the owning loop.
func (c *Choreographer) LoopID() uuid.UUID { return c.loop.ID() }

// PostFrameCallbackDelayed queues a callback to run on the first vsync after
// delay has elapsed. Zero or negative delay means as soon as possible. ctx
// tells whether the caller runs on the owning loop.
func (c *Choreographer) PostFrameCallbackDelayed(ctx context.Context, cb FrameCallback, cb64 FrameCallback64, data any, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}

	now := c.clock.Now()
	callback := frameCallback{
		handler: newFrameHandler(cb, cb64),
		data:    data,
		dueTime: now + int64(delay),
	}

	c.mu.Lock()
	c.callbacks.push(callback)
	c.counters.posted++

	if callback.dueTime <= now {
		// Sources coalesce duplicate requests, so request even with one in flight.
		c.state = StateAwaitingVsync
		c.mu.Unlock()

		c.requestVsync(ctx)
		return
	}

	if c.state == StateIdle {
		c.state = StateAwaitingRecheck
	}
	c.mu.Unlock()

	c.loop.SendMessageDelayed(delay, c, looper.Message{What: msgScheduleCallbacks})
}

// RegisterRefreshRateCallback adds a listener for vsync period changes.
// Registering the same handler twice yields two entries. A nil handler is
// ignored.
func (c *Choreographer) RegisterRefreshRateCallback(cb RefreshRateCallback, data any) {
	if cb == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refreshRate.add(refreshRateListener{key: handlerKey(cb), fn: cb, data: data}) {
		if err := c.display.ToggleConfigEvents(true); err != nil {
			c.log.Warn("failed to enable config events", zap.Error(err))
		}
	}
}

// UnregisterRefreshRateCallback removes every listener registered with cb.
// Handlers are matched by code pointer, so s1.OnRate and s2.OnRate are the
// same handler and both are removed. Unknown handlers are ignored. Safe to
// call from within a listener.
func (c *Choreographer) UnregisterRefreshRateCallback(cb RefreshRateCallback) {
	if cb == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refreshRate.remove(handlerKey(cb)) {
		if err := c.display.ToggleConfigEvents(false); err != nil {
			c.log.Warn("failed to suppress config events", zap.Error(err))
		}
	}
}

// HandleMessage implements looper.Handler.
func (c *Choreographer) HandleMessage(ctx context.Context, msg looper.Message) {
	switch msg.What {
	case msgScheduleCallbacks:
		c.scheduleCallbacks()
	case msgScheduleVsync:
		c.scheduleVsync()
	}
}

// DispatchVsync runs every callback due strictly before timestamp, in due
// order, outside the lock. Callbacks posted meanwhile wait for the next pulse.
func (c *Choreographer) DispatchVsync(ctx context.Context, timestamp int64, displayID uint64, count uint32) {
	var batch []frameCallback

	c.mu.Lock()
	for c.callbacks.len() > 0 {
		cb, _ := c.callbacks.peekEarliest()
		if cb.dueTime >= timestamp {
			break
		}
		c.callbacks.popEarliest()
		batch = append(batch, cb)
	}
	c.counters.dispatched += uint64(len(batch))

	// A callback posted after the pulse but before its dispatch is already
	// due and would otherwise wait for an unrelated post.
	rerequest := false
	next, err := c.callbacks.peekEarliest()
	switch {
	case err != nil:
		c.state = StateIdle
	case next.dueTime <= c.clock.Now():
		rerequest = true
		c.state = StateAwaitingVsync
	default:
		c.state = StateAwaitingRecheck
	}
	c.mu.Unlock()

	if ce := c.log.Check(zap.DebugLevel, "vsync"); ce != nil {
		ce.Write(
			zap.Int64("timestamp", timestamp),
			zap.Uint32("count", count),
			zap.Int("callbacks", len(batch)),
		)
	}

	if rerequest {
		c.requestVsyncOnLoop()
	}

	for _, cb := range batch {
		cb.handler.invoke(timestamp, cb.data)
	}
}

// DispatchHotplug is logged only: there is a single implicit display.
func (c *Choreographer) DispatchHotplug(ctx context.Context, timestamp int64, displayID uint64, connected bool) {
	c.log.Debug("received hotplug event, ignoring",
		zap.Uint64("display_id", displayID),
		zap.Bool("connected", connected),
	)
}

// DispatchConfigChanged notifies refresh-rate listeners when the vsync period
// differs from the last one seen. The display ID is ignored.
func (c *Choreographer) DispatchConfigChanged(ctx context.Context, timestamp int64, displayID uint64, configID int32, vsyncPeriod int64) {
	c.mu.Lock()
	listeners := c.refreshRate.notifyIfChanged(vsyncPeriod)
	if len(listeners) > 0 {
		c.counters.configNotifications++
	}
	c.mu.Unlock()

	if len(listeners) > 0 {
		c.log.Debug("refresh rate changed",
			zap.Duration("vsync_period", time.Duration(vsyncPeriod)),
			zap.Int32("config_id", configID),
			zap.Int("listeners", len(listeners)),
		)
	}

	for _, l := range listeners {
		l.fn(vsyncPeriod, l.data)
	}
}

// requestVsync issues the request directly on the owning loop, otherwise
// marshals it there without waiting.
func (c *Choreographer) requestVsync(ctx context.Context) {
	if !c.onOwningLoop(ctx) {
		c.loop.SendMessage(c, looper.Message{What: msgScheduleVsync})
		return
	}
	c.requestVsyncOnLoop()
}

// scheduleVsync handles a marshaled request on the owning loop.
func (c *Choreographer) scheduleVsync() {
	c.mu.Lock()
	c.state = StateAwaitingVsync
	c.mu.Unlock()

	c.requestVsyncOnLoop()
}

// scheduleCallbacks handles a re-check: request a vsync if the earliest
// callback is now due. The queue may already have been drained.
func (c *Choreographer) scheduleCallbacks() {
	c.mu.Lock()
	cb, err := c.callbacks.peekEarliest()
	if err != nil {
		if c.state == StateAwaitingRecheck {
			c.state = StateIdle
		}
		c.mu.Unlock()
		return
	}

	now := c.clock.Now()
	if cb.dueTime > now {
		// Early: re-arm for the remainder so the callback cannot be stranded.
		c.mu.Unlock()
		c.loop.SendMessageDelayed(time.Duration(cb.dueTime-now), c, looper.Message{What: msgScheduleCallbacks})
		return
	}

	// Request even if one is in flight; it may have been lost.
	c.state = StateAwaitingVsync
	c.mu.Unlock()

	c.log.Debug("scheduling vsync")
	c.requestVsyncOnLoop()
}

// requestVsyncOnLoop must run on the owning loop.
func (c *Choreographer) requestVsyncOnLoop() {
	c.mu.Lock()
	c.counters.vsyncRequests++
	c.mu.Unlock()

	if err := c.display.RequestNextVsync(); err != nil {
		c.log.Warn("failed to request vsync", zap.Error(err))

		// Let the next post or re-check try again.
		c.mu.Lock()
		if c.state == StateAwaitingVsync {
			c.state = StateIdle
		}
		c.mu.Unlock()
	}
}

func (c *Choreographer) onOwningLoop(ctx context.Context) bool {
	q, ok := looper.FromContext(ctx)
	return ok && q.ID() == c.loop.ID()
}

// Stats is a point-in-time view of a choreographer.
type Stats struct {
	LoopID               uuid.UUID `json:"loop_id"`
	State                string    `json:"state"`
	PendingCallbacks     int       `json:"pending_callbacks"`
	RefreshRateListeners int       `json:"refresh_rate_listeners"`
	VsyncPeriod          int64     `json:"vsync_period_ns"`
	Posted               uint64    `json:"posted"`
	Dispatched           uint64    `json:"dispatched"`
	VsyncRequests        uint64    `json:"vsync_requests"`
	ConfigNotifications  uint64    `json:"config_notifications"`
}

// Stats returns a snapshot of the choreographer's state.
func (c *Choreographer) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		LoopID:               c.loop.ID(),
		State:                c.state.String(),
		PendingCallbacks:     c.callbacks.len(),
		RefreshRateListeners: c.refreshRate.len(),
		VsyncPeriod:          c.refreshRate.vsyncPeriod,
		Posted:               c.counters.posted,
		Dispatched:           c.counters.dispatched,
		VsyncRequests:        c.counters.vsyncRequests,
		ConfigNotifications:  c.counters.configNotifications,
	}
}

var (
	_ looper.Handler        = (*Choreographer)(nil)
	_ displayevent.Receiver = (*Choreographer)(nil)
)
