// Package redissource feeds display events published on Redis into a
// displayevent.Dispatcher. A display pipeline publishes JSON events on
// "<prefix>:events" and listens for vsync requests and config-delivery
// toggles on "<prefix>:requests".
//
// The pipeline's clock is not comparable with this process's, so accepted
// events are restamped with the local monotonic receive time.
package redissource

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edirooss/choreo/internal/infrastructure/displayevent"
	"github.com/edirooss/choreo/pkg/monotime"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	opRequestVsync   = "request_vsync"
	opConfigDelivery = "config_delivery"

	publishTimeout = 500 * time.Millisecond
)

// Options configures a Source.
type Options struct {
	ChannelPrefix string // default "display"
	DisplayID     uint64 // events for other displays are dropped; 0 accepts any
	Buffer        int    // event channel capacity; default 16
}

func (o *Options) setDefaults() {
	if o.ChannelPrefix == "" {
		o.ChannelPrefix = "display"
	}
	if o.Buffer <= 0 {
		o.Buffer = 16
	}
}

// request is published on the requests channel.
type request struct {
	Op        string `json:"op"`
	LoopID    string `json:"loop_id"`
	DisplayID uint64 `json:"display_id"`
	Enabled   *bool  `json:"enabled,omitempty"`
}

// Source is a displayevent.Source backed by Redis pub/sub.
//
// RequestNextVsync and SetConfigChangedDelivery only record intent and wake a
// writer goroutine, so they never block on the network.
type Source struct {
	log    *zap.Logger
	rdb    redis.UniversalClient
	pubsub *redis.PubSub
	loopID uuid.UUID
	opts   Options
	now    func() int64

	eventsChannel   string
	requestsChannel string

	events chan displayevent.Event

	awaitingVsync  atomic.Bool // a pulse is owed to the loop
	publishVsync   atomic.Bool // a request is waiting to be published
	configDelivery atomic.Bool
	configDirty    atomic.Bool
	closed         atomic.Bool

	sig       chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSource(log *zap.Logger, rdb redis.UniversalClient, loopID uuid.UUID, opts Options) *Source {
	opts.setDefaults()
	return &Source{
		log:             log.Named("redis-display").With(zap.Stringer("loop_id", loopID)),
		rdb:             rdb,
		loopID:          loopID,
		opts:            opts,
		now:             monotime.Now,
		eventsChannel:   opts.ChannelPrefix + ":events",
		requestsChannel: opts.ChannelPrefix + ":requests",
		events:          make(chan displayevent.Event, opts.Buffer),
		sig:             make(chan struct{}, 1),
		done:            make(chan struct{}),
	}
}

// New subscribes to the events channel and starts forwarding.
func New(ctx context.Context, log *zap.Logger, rdb redis.UniversalClient, loopID uuid.UUID, opts Options) (*Source, error) {
	s := newSource(log, rdb, loopID, opts)

	s.pubsub = rdb.Subscribe(ctx, s.eventsChannel)
	if _, err := s.pubsub.Receive(ctx); err != nil {
		_ = s.pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.eventsChannel, err)
	}

	s.wg.Add(2)
	go s.readLoop(s.pubsub.Channel())
	go s.writeLoop()

	s.log.Info("subscribed to display events", zap.String("channel", s.eventsChannel))
	return s, nil
}

// Factory returns a displayevent.Factory opening one Source per loop.
func Factory(log *zap.Logger, rdb redis.UniversalClient, opts Options) displayevent.Factory {
	return func(ctx context.Context, loopID uuid.UUID) (displayevent.Source, error) {
		return New(ctx, log, rdb, loopID, opts)
	}
}

// Events implements displayevent.Source.
func (s *Source) Events() <-chan displayevent.Event { return s.events }

// RequestNextVsync implements displayevent.Source.
func (s *Source) RequestNextVsync() error {
	if s.closed.Load() {
		return displayevent.ErrSourceClosed
	}
	s.awaitingVsync.Store(true)
	s.publishVsync.Store(true)
	s.wake()
	return nil
}

// SetConfigChangedDelivery implements displayevent.Source. Filtering is
// applied locally at once; the pipeline is told asynchronously.
func (s *Source) SetConfigChangedDelivery(enabled bool) error {
	if s.closed.Load() {
		return displayevent.ErrSourceClosed
	}
	s.configDelivery.Store(enabled)
	s.configDirty.Store(true)
	s.wake()
	return nil
}

// Close unsubscribes and stops both goroutines.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		if s.pubsub != nil {
			err = s.pubsub.Close()
		}
		s.wg.Wait()
	})
	return err
}

func (s *Source) wake() {
	select {
	case s.sig <- struct{}{}:
	default:
	}
}

func (s *Source) readLoop(ch <-chan *redis.Message) {
	defer s.wg.Done()
	defer close(s.events)

	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				s.log.Warn("dropping malformed display event", zap.Error(err))
				continue
			}
			if !s.accept(ev) {
				continue
			}
			ev.Timestamp = s.now()
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}

// accept applies display filtering, vsync request gating and config
// suppression.
func (s *Source) accept(ev displayevent.Event) bool {
	if s.opts.DisplayID != 0 && ev.DisplayID != s.opts.DisplayID {
		return false
	}
	switch ev.Kind {
	case displayevent.KindVsync:
		// pulses nobody asked for are dropped
		return s.awaitingVsync.CompareAndSwap(true, false)
	case displayevent.KindConfigChanged:
		return s.configDelivery.Load()
	default:
		return true
	}
}

func (s *Source) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case <-s.sig:
		}

		if s.publishVsync.Swap(false) {
			s.publish(request{Op: opRequestVsync, LoopID: s.loopID.String(), DisplayID: s.opts.DisplayID})
		}
		if s.configDirty.Swap(false) {
			enabled := s.configDelivery.Load()
			s.publish(request{Op: opConfigDelivery, LoopID: s.loopID.String(), DisplayID: s.opts.DisplayID, Enabled: &enabled})
		}
	}
}

func (s *Source) publish(req request) {
	payload, err := json.Marshal(req)
	if err != nil {
		s.log.Error("encode display request", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := s.rdb.Publish(ctx, s.requestsChannel, payload).Err(); err != nil {
		s.log.Warn("publish display request failed", zap.String("op", req.Op), zap.Error(err))
	}
}

func decodeEvent(payload string) (displayevent.Event, error) {
	var ev displayevent.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return displayevent.Event{}, fmt.Errorf("decode display event: %w", err)
	}
	return ev, nil
}

var _ displayevent.Source = (*Source)(nil)
