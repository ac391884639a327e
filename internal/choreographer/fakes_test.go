package choreographer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edirooss/choreo/internal/infrastructure/looper"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// fakeClock is a manually advanced monotonic clock.
type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fakeClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now += int64(d)
	c.mu.Unlock()
}

type sentMessage struct {
	delay   time.Duration
	handler looper.Handler
	msg     looper.Message
}

// fakeLoop records messages instead of running them.
type fakeLoop struct {
	id uuid.UUID

	mu   sync.Mutex
	sent []sentMessage
}

func newFakeLoop() *fakeLoop { return &fakeLoop{id: uuid.New()} }

func (l *fakeLoop) ID() uuid.UUID { return l.id }

func (l *fakeLoop) SendMessage(h looper.Handler, msg looper.Message) {
	l.SendMessageDelayed(0, h, msg)
}

func (l *fakeLoop) SendMessageDelayed(delay time.Duration, h looper.Handler, msg looper.Message) {
	l.mu.Lock()
	l.sent = append(l.sent, sentMessage{delay: delay, handler: h, msg: msg})
	l.mu.Unlock()
}

// ctx returns a context that places the caller on this loop.
func (l *fakeLoop) ctx() context.Context {
	return looper.WithQueue(context.Background(), l)
}

// take removes and returns every recorded message.
func (l *fakeLoop) take() []sentMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.sent
	l.sent = nil
	return out
}

// deliver runs every recorded message on the loop, ignoring delays.
func (l *fakeLoop) deliver() int {
	msgs := l.take()
	for _, m := range msgs {
		m.handler.HandleMessage(l.ctx(), m.msg)
	}
	return len(msgs)
}

// fakeDisplay records requests and toggles.
type fakeDisplay struct {
	mu            sync.Mutex
	vsyncRequests int
	toggles       []bool
	err           error
}

func (d *fakeDisplay) RequestNextVsync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vsyncRequests++
	return d.err
}

func (d *fakeDisplay) ToggleConfigEvents(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.toggles = append(d.toggles, enabled)
	return d.err
}

func (d *fakeDisplay) requests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vsyncRequests
}

func (d *fakeDisplay) toggleLog() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.toggles...)
}

type harness struct {
	c       *Choreographer
	loop    *fakeLoop
	display *fakeDisplay
	clock   *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		loop:    newFakeLoop(),
		display: &fakeDisplay{},
		clock:   &fakeClock{now: int64(time.Second)},
	}
	h.c = New(zap.NewNop(), h.loop, h.display, h.clock)
	return h
}

// recorder collects invocations in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
	times []int64
}

func (r *recorder) frame(name string) FrameCallback64 {
	return func(frameTimeNanos int64, _ any) {
		r.mu.Lock()
		r.calls = append(r.calls, name)
		r.times = append(r.times, frameTimeNanos)
		r.mu.Unlock()
	}
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func msgRecheck() looper.Message { return looper.Message{What: msgScheduleCallbacks} }
