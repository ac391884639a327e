// Package achoreographer is the stable, flat API over the per-loop frame
// choreographer. Every function forwards to internal/choreographer; calls
// on a nil handle do nothing.
//
// The ctx arguments stand in for the calling thread: they must be the
// context given to code running on an event loop (or a context derived
// from it) for GetInstance to find that loop's choreographer, and for
// immediate posts to request a vsync without a loop round trip.
package achoreographer

import (
	"context"
	"time"

	"github.com/edirooss/choreo/internal/choreographer"
)

// AChoreographer is an opaque handle. The same loop always yields the same
// handle.
type AChoreographer choreographer.Choreographer

type (
	// FrameCallback receives the frame time in platform-width nanoseconds.
	FrameCallback = choreographer.FrameCallback
	// FrameCallback64 receives the frame time in 64-bit nanoseconds.
	FrameCallback64 = choreographer.FrameCallback64
	// RefreshRateCallback receives the new vsync period in nanoseconds.
	RefreshRateCallback = choreographer.RefreshRateCallback
)

// GetInstance returns the choreographer of the calling loop, or nil when the
// caller is not on an event loop or the display cannot be reached.
func GetInstance(ctx context.Context) *AChoreographer {
	c, err := choreographer.Default().GetForThread(ctx)
	if err != nil {
		return nil
	}
	return (*AChoreographer)(c)
}

// PostFrameCallback runs callback once on the next frame.
func PostFrameCallback(ctx context.Context, ch *AChoreographer, callback FrameCallback, data any) {
	if ch == nil {
		return
	}
	unwrap(ch).PostFrameCallbackDelayed(ctx, callback, nil, data, 0)
}

// PostFrameCallbackDelayed runs callback once on the first frame at least
// delayMillis from now.
func PostFrameCallbackDelayed(ctx context.Context, ch *AChoreographer, callback FrameCallback, data any, delayMillis int) {
	if ch == nil {
		return
	}
	unwrap(ch).PostFrameCallbackDelayed(ctx, callback, nil, data, millis(int64(delayMillis)))
}

// PostFrameCallback64 is PostFrameCallback with a 64-bit frame time.
func PostFrameCallback64(ctx context.Context, ch *AChoreographer, callback FrameCallback64, data any) {
	if ch == nil {
		return
	}
	unwrap(ch).PostFrameCallbackDelayed(ctx, nil, callback, data, 0)
}

// PostFrameCallbackDelayed64 is PostFrameCallbackDelayed with a 64-bit frame
// time.
func PostFrameCallbackDelayed64(ctx context.Context, ch *AChoreographer, callback FrameCallback64, data any, delayMillis uint32) {
	if ch == nil {
		return
	}
	unwrap(ch).PostFrameCallbackDelayed(ctx, nil, callback, data, millis(int64(delayMillis)))
}

// RegisterRefreshRateCallback adds a listener for vsync period changes.
func RegisterRefreshRateCallback(ch *AChoreographer, callback RefreshRateCallback, data any) {
	if ch == nil {
		return
	}
	unwrap(ch).RegisterRefreshRateCallback(callback, data)
}

// UnregisterRefreshRateCallback removes every registration of callback.
func UnregisterRefreshRateCallback(ch *AChoreographer, callback RefreshRateCallback) {
	if ch == nil {
		return
	}
	unwrap(ch).UnregisterRefreshRateCallback(callback)
}

func unwrap(ch *AChoreographer) *choreographer.Choreographer {
	return (*choreographer.Choreographer)(ch)
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
