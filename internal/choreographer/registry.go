package choreographer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/edirooss/choreo/internal/infrastructure/displayevent"
	"github.com/edirooss/choreo/internal/infrastructure/looper"
	"github.com/edirooss/choreo/pkg/monotime"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNoEventLoop is returned when the caller does not run on an event loop.
var ErrNoEventLoop = errors.New("choreographer: no event loop prepared for caller")

// Registry hands out one Choreographer per event loop, created on first use.
//
// Choreographers are owned by the registry for the life of the process:
// there is no removal API, and a loop that stops leaves its choreographer
// idle with its display connection open.
type Registry struct {
	log     *zap.Logger
	sources displayevent.Factory
	clock   Clock

	opening singleflight.Group

	mu     sync.Mutex
	byLoop map[uuid.UUID]*Choreographer
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the monotonic clock given to new choreographers.
func WithClock(clock Clock) RegistryOption {
	return func(r *Registry) { r.clock = clock }
}

// NewRegistry returns an empty registry that connects each new choreographer
// to a display-event source opened by sources.
func NewRegistry(log *zap.Logger, sources displayevent.Factory, opts ...RegistryOption) *Registry {
	r := &Registry{
		log:     log.Named("choreographer-registry"),
		sources: sources,
		clock:   monotime.Clock{},
		byLoop:  make(map[uuid.UUID]*Choreographer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetForThread returns the choreographer of the loop carried by ctx,
// creating and connecting it on first use. Failures are not cached; a later
// call retries. Opening one loop's display connection does not block lookups
// for other loops.
func (r *Registry) GetForThread(ctx context.Context) (*Choreographer, error) {
	q, ok := looper.FromContext(ctx)
	if !ok {
		r.log.Warn("no looper prepared for caller")
		return nil, ErrNoEventLoop
	}

	if c, ok := r.lookup(q.ID()); ok {
		return c, nil
	}

	// Concurrent first uses of one loop share a single open.
	v, err, _ := r.opening.Do(q.ID().String(), func() (any, error) {
		if c, ok := r.lookup(q.ID()); ok {
			return c, nil
		}

		log := r.log.With(zap.Stringer("loop_id", q.ID()))

		src, err := r.sources(ctx, q.ID())
		if err != nil {
			log.Warn("failed to open display events", zap.Error(err))
			return nil, fmt.Errorf("open display events: %w", err)
		}

		d := displayevent.NewDispatcher(r.log, q, src)
		c := New(r.log, q, d, r.clock)
		if err := d.Initialize(c); err != nil {
			_ = d.Close()
			log.Warn("failed to initialize", zap.Error(err))
			return nil, fmt.Errorf("initialize display events: %w", err)
		}

		r.mu.Lock()
		r.byLoop[q.ID()] = c
		r.mu.Unlock()

		log.Info("choreographer created")
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Choreographer), nil
}

func (r *Registry) lookup(id uuid.UUID) (*Choreographer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byLoop[id]
	return c, ok
}

// Snapshot returns the stats of every choreographer, ordered by loop ID.
func (r *Registry) Snapshot() []Stats {
	r.mu.Lock()
	all := make([]*Choreographer, 0, len(r.byLoop))
	for _, c := range r.byLoop {
		all = append(all, c)
	}
	r.mu.Unlock()

	out := make([]Stats, 0, len(all))
	for _, c := range all {
		out = append(out, c.Stats())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LoopID.String() < out[j].LoopID.String()
	})
	return out
}

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
)

// Default returns the process-wide registry. Unless SetDefault was called,
// it uses the global zap logger and a simulated 60Hz display per loop.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRegistry == nil {
		log := zap.L()
		defaultRegistry = NewRegistry(log, displayevent.SimulatedFactory(log, displayevent.SimulatedOptions{}, nil))
	}
	return defaultRegistry
}

// SetDefault replaces the process-wide registry. Call it before any loop
// asks for its choreographer.
func SetDefault(r *Registry) {
	defaultMu.Lock()
	defaultRegistry = r
	defaultMu.Unlock()
}
