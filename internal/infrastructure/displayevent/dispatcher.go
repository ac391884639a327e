package displayevent

import (
	"context"
	"errors"
	"sync"

	"github.com/edirooss/choreo/internal/infrastructure/looper"
	"go.uber.org/zap"
)

var (
	ErrAlreadyInitialized = errors.New("displayevent: dispatcher already initialized")
	ErrNilReceiver        = errors.New("displayevent: nil receiver")
)

const msgDisplayEvent = 0

// Dispatcher forwards events from a Source to a Receiver on the owning loop.
// Every event becomes one loop message, so receivers never run concurrently
// with other work on that loop.
type Dispatcher struct {
	log *zap.Logger
	q   looper.Queue
	src Source

	rcv Receiver // set once by Initialize

	initOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// NewDispatcher binds src to the loop q. Nothing is delivered until Initialize.
func NewDispatcher(log *zap.Logger, q looper.Queue, src Source) *Dispatcher {
	return &Dispatcher{
		log:  log.Named("display-events").With(zap.Stringer("loop_id", q.ID())),
		q:    q,
		src:  src,
		done: make(chan struct{}),
	}
}

// Initialize starts delivering events to rcv. It can succeed only once.
func (d *Dispatcher) Initialize(rcv Receiver) error {
	if rcv == nil {
		return ErrNilReceiver
	}

	err := ErrAlreadyInitialized
	d.initOnce.Do(func() {
		d.rcv = rcv
		go d.pump()
		err = nil
	})
	return err
}

// RequestNextVsync asks the source for one more pulse.
func (d *Dispatcher) RequestNextVsync() error {
	return d.src.RequestNextVsync()
}

// ToggleConfigEvents enables or suppresses config-changed delivery.
func (d *Dispatcher) ToggleConfigEvents(enabled bool) error {
	return d.src.SetConfigChangedDelivery(enabled)
}

// Close stops forwarding and closes the source. Safe to call multiple times.
func (d *Dispatcher) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.done)
		err = d.src.Close()
	})
	return err
}

func (d *Dispatcher) pump() {
	events := d.src.Events()
	for {
		select {
		case <-d.done:
			return
		case ev, ok := <-events:
			if !ok {
				d.log.Warn("display event source closed")
				return
			}
			d.q.SendMessage(d, looper.Message{What: msgDisplayEvent, Obj: ev})
		}
	}
}

// HandleMessage implements looper.Handler.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg looper.Message) {
	ev, ok := msg.Obj.(Event)
	if msg.What != msgDisplayEvent || !ok {
		return
	}

	switch ev.Kind {
	case KindVsync:
		d.rcv.DispatchVsync(ctx, ev.Timestamp, ev.DisplayID, ev.Count)
	case KindHotplug:
		d.rcv.DispatchHotplug(ctx, ev.Timestamp, ev.DisplayID, ev.Connected)
	case KindConfigChanged:
		d.rcv.DispatchConfigChanged(ctx, ev.Timestamp, ev.DisplayID, ev.ConfigID, ev.VsyncPeriod)
	default:
		d.log.Debug("dropping unknown display event", zap.Stringer("kind", ev.Kind))
	}
}
