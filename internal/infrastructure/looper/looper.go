package looper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrLoopRunning is returned by Run when the loop is already being run.
var ErrLoopRunning = errors.New("looper: loop is already running")

// Message is a tagged unit of work delivered to a Handler on the loop goroutine.
type Message struct {
	What int
	Obj  any
}

// Handler receives messages on the loop goroutine. ctx carries the loop
// (see FromContext).
type Handler interface {
	HandleMessage(ctx context.Context, msg Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message)

func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message) { f(ctx, msg) }

// Queue is the posting side of a loop. Safe for concurrent use.
type Queue interface {
	// ID identifies the loop; it plays the role of a thread identity.
	ID() uuid.UUID
	// SendMessage delivers msg to h as soon as the loop is free.
	SendMessage(h Handler, msg Message)
	// SendMessageDelayed delivers msg to h no earlier than delay from now.
	SendMessageDelayed(delay time.Duration, h Handler, msg Message)
}

// Looper is a single-goroutine serial message loop.
//
// Concurrency model
//
//   - the pending-message heap is protected by mu
//   - sig is a coalescing wake-up (cap 1, non-blocking send)
//   - handlers run on the Run goroutine without mu held, so they may post freely
type Looper struct {
	id  uuid.UUID
	log *zap.Logger

	mu sync.Mutex
	q  *messageQueue

	sig     chan struct{}
	running atomic.Bool
}

// New constructs an idle loop. Call Run to start dispatching.
func New(log *zap.Logger) *Looper {
	id := uuid.New()
	return &Looper{
		id:  id,
		log: log.Named("looper").With(zap.Stringer("loop_id", id)),
		q:   newMessageQueue(),
		sig: make(chan struct{}, 1),
	}
}

// ID implements Queue.
func (l *Looper) ID() uuid.UUID { return l.id }

// SendMessage implements Queue.
func (l *Looper) SendMessage(h Handler, msg Message) {
	l.SendMessageDelayed(0, h, msg)
}

// SendMessageDelayed implements Queue. Negative delays are treated as zero.
func (l *Looper) SendMessageDelayed(delay time.Duration, h Handler, msg Message) {
	if delay < 0 {
		delay = 0
	}
	l.mu.Lock()
	l.q.push(h, msg, time.Now().Add(delay))
	l.mu.Unlock()

	l.wake()
}

// Post runs fn on the loop goroutine as soon as the loop is free.
func (l *Looper) Post(fn func(ctx context.Context)) {
	l.SendMessage(HandlerFunc(func(ctx context.Context, _ Message) { fn(ctx) }), Message{})
}

// Pending returns the number of messages not yet delivered.
func (l *Looper) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.len()
}

// Run dispatches messages until ctx is cancelled. It blocks, and must be
// called at most once at a time. Messages still pending at cancellation are
// kept and delivered by a later Run.
func (l *Looper) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	l.log.Debug("loop started")
	defer l.log.Debug("loop stopped")

	loopCtx := WithQueue(ctx, l)

	timer := time.NewTimer(time.Hour)
	stop(timer)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		l.mu.Lock()
		m, ok := l.q.next()
		if !ok {
			l.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil
			case <-l.sig:
			}
			continue
		}

		if delay := time.Until(m.when); delay > 0 {
			arm(timer, delay)
			l.mu.Unlock()

			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			case <-l.sig:
			}
			continue
		}

		l.q.pop()
		l.mu.Unlock()

		m.handler.HandleMessage(loopCtx, m.msg)
	}
}

func (l *Looper) wake() {
	select {
	case l.sig <- struct{}{}:
	default:
	}
}

// arm resets t to fire after d, draining a stale expiry first.
func arm(t *time.Timer, d time.Duration) {
	stop(t)
	t.Reset(d)
}

func stop(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

var _ Queue = (*Looper)(nil)
