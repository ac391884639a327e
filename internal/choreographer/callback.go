package choreographer

import "reflect"

// FrameCallback receives the vsync timestamp in platform-width nanoseconds.
type FrameCallback func(frameTimeNanos int, data any)

// FrameCallback64 receives the vsync timestamp in 64-bit nanoseconds.
type FrameCallback64 func(frameTimeNanos int64, data any)

// RefreshRateCallback receives the new vsync period in nanoseconds.
type RefreshRateCallback func(vsyncPeriodNanos int64, data any)

type frameHandlerKind uint8

const (
	handlerNone frameHandlerKind = iota
	handlerNative
	handler64
)

// frameHandler holds exactly one of the two callback forms, or none.
type frameHandler struct {
	kind frameHandlerKind
	fn   FrameCallback
	fn64 FrameCallback64
}

// newFrameHandler prefers the 64-bit form when both are given. A handler with
// neither form is valid and does nothing.
func newFrameHandler(cb FrameCallback, cb64 FrameCallback64) frameHandler {
	switch {
	case cb64 != nil:
		return frameHandler{kind: handler64, fn64: cb64}
	case cb != nil:
		return frameHandler{kind: handlerNative, fn: cb}
	default:
		return frameHandler{kind: handlerNone}
	}
}

func (h frameHandler) invoke(frameTimeNanos int64, data any) {
	switch h.kind {
	case handler64:
		h.fn64(frameTimeNanos, data)
	case handlerNative:
		h.fn(int(frameTimeNanos), data)
	}
}

// frameCallback is one queued request. It has no identity beyond its slot.
type frameCallback struct {
	handler frameHandler
	data    any
	dueTime int64
}

// refreshRateListener is identified by its handler, not its data.
type refreshRateListener struct {
	key  uintptr
	fn   RefreshRateCallback
	data any
}

// handlerKey returns the code pointer of fn. Closures created from the same
// function literal share a key, and so do method values of one method taken
// from different receivers.
func handlerKey(fn RefreshRateCallback) uintptr {
	if fn == nil {
		return 0
	}
	return reflect.ValueOf(fn).Pointer()
}
