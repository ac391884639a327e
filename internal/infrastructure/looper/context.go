package looper

import "context"

type queueKey struct{}

// WithQueue returns a copy of ctx that marks the caller as running on q.
// A context carrying a queue must only be used on that queue's loop goroutine.
func WithQueue(ctx context.Context, q Queue) context.Context {
	return context.WithValue(ctx, queueKey{}, q)
}

// FromContext returns the queue of the loop the caller runs on, if any.
func FromContext(ctx context.Context) (Queue, bool) {
	if ctx == nil {
		return nil, false
	}
	q, ok := ctx.Value(queueKey{}).(Queue)
	return q, ok && q != nil
}
