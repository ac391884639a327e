package main

import (
	"context"
	"sync"

	"github.com/edirooss/choreo/internal/config"
	"github.com/edirooss/choreo/internal/http/handler"
	"github.com/edirooss/choreo/internal/infrastructure/displayevent"
	"github.com/edirooss/choreo/internal/infrastructure/displayevent/redissource"
	iredis "github.com/edirooss/choreo/internal/redis"
	"go.uber.org/zap"
)

// displays opens display-event sources on demand and remembers them for
// control and shutdown.
type displays struct {
	factory displayevent.Factory

	mu        sync.Mutex
	simulated []*displayevent.SimulatedSource
	rdb       *iredis.Client
}

// openDisplays never fails: an unreachable Redis is logged, and each loop
// retries the connection on its next GetForThread.
func openDisplays(ctx context.Context, log *zap.Logger, cfg *config.Config) *displays {
	d := &displays{}

	switch cfg.Display.Source {
	case config.SourceRedis:
		d.rdb = iredis.NewClient(log, iredis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err := d.rdb.Ping(ctx); err != nil {
			log.Warn("redis unreachable at startup, display connections will be retried",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err),
			)
		}
		d.factory = redissource.Factory(log, d.rdb.Client, redissource.Options{
			ChannelPrefix: cfg.Redis.ChannelPrefix,
			DisplayID:     cfg.Display.DisplayID,
		})

	default:
		d.factory = displayevent.SimulatedFactory(log, displayevent.SimulatedOptions{
			Period:    cfg.Display.VsyncPeriod(),
			DisplayID: cfg.Display.DisplayID,
		}, func(s *displayevent.SimulatedSource) {
			d.mu.Lock()
			d.simulated = append(d.simulated, s)
			d.mu.Unlock()
		})
	}
	return d
}

// controller returns the first simulated display, or nil when the display
// is remote or not opened yet.
func (d *displays) controller() handler.DisplayController {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.simulated) == 0 {
		return nil
	}
	return d.simulated[0]
}

func (d *displays) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range d.simulated {
		_ = s.Close()
	}
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
}
