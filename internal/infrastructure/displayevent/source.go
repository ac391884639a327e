// Package displayevent connects a display pipeline's vsync, hotplug and
// configuration-change notifications to an event loop.
package displayevent

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrSourceClosed is returned by Source methods after Close.
var ErrSourceClosed = errors.New("displayevent: source is closed")

// Source produces display events.
//
// RequestNextVsync and SetConfigChangedDelivery must not block for long: they
// may be called while the caller holds its own lock.
type Source interface {
	// Events delivers events in the order the pipeline produced them.
	Events() <-chan Event
	// RequestNextVsync asks for one future vsync pulse. Requests made before
	// the pulse is delivered coalesce into it.
	RequestNextVsync() error
	// SetConfigChangedDelivery enables or suppresses config-changed events.
	SetConfigChangedDelivery(enabled bool) error
	Close() error
}

// Factory opens a Source for the loop identified by loopID.
type Factory func(ctx context.Context, loopID uuid.UUID) (Source, error)

// Receiver consumes events on the loop goroutine. ctx carries the loop.
type Receiver interface {
	DispatchVsync(ctx context.Context, timestamp int64, displayID uint64, count uint32)
	DispatchHotplug(ctx context.Context, timestamp int64, displayID uint64, connected bool)
	DispatchConfigChanged(ctx context.Context, timestamp int64, displayID uint64, configID int32, vsyncPeriod int64)
}
