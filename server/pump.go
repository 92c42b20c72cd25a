package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/bridge"
	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/event"
)

// Pump periodically drains sessions that have stream subscribers and
// broadcasts the batches. Sessions nobody streams are left for HTTP drain.
type Pump struct {
	bridge   *bridge.Bridge
	hub      *Hub
	logger   *zap.Logger
	interval time.Duration
}

// NewPump creates a pump ticking every interval.
func NewPump(b *bridge.Bridge, hub *Hub, interval time.Duration, logger *zap.Logger) *Pump {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pump{bridge: b, hub: hub, interval: interval, logger: logger}
}

// Run ticks until ctx is done.
func (p *Pump) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.Tick(ctx)
		}
	}
}

// Tick drains every streamed session once and returns the number of
// events broadcast.
func (p *Pump) Tick(ctx context.Context) int {
	total := 0
	for _, id := range p.bridge.Sessions() {
		if !p.hub.Subscribed(id) {
			continue
		}
		events, err := p.bridge.Drain(ctx, id)
		if err != nil {
			if !errors.Is(err, errors.ErrNotFound) {
				p.logger.Warn("pump drain failed", zap.Uint32("session", id), zap.Error(err))
			}
			continue
		}
		if len(events) == 0 {
			continue
		}
		data, err := event.MarshalBatch(events)
		if err != nil {
			p.logger.Error("pump encode failed", zap.Uint32("session", id), zap.Error(err))
			continue
		}
		p.hub.Broadcast(id, data)
		total += len(events)
	}
	return total
}
