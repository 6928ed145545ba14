package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SessionGC reconciles registry occupancy against relay activity on a fixed
// interval. Membership mutations never stop relays directly; this sweep is
// the single place those decisions are made, which keeps join/leave churn
// from thrashing upstream subscriptions.
type SessionGC struct {
	interval time.Duration
	registry *RoomRegistry
	relay    *FrameRelay
	throttle *CommandThrottle
	log      zerolog.Logger
	now      func() time.Time
}

func NewSessionGC(interval time.Duration, registry *RoomRegistry, relay *FrameRelay, throttle *CommandThrottle, logger *zerolog.Logger) *SessionGC {
	return &SessionGC{
		interval: interval,
		registry: registry,
		relay:    relay,
		throttle: throttle,
		log:      logger.With().Str("component", "gc").Logger(),
		now:      time.Now,
	}
}

// Run executes sweeps until the context is cancelled.
func (g *SessionGC) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep()
		}
	}
}

// Sweep runs one reconciliation pass. Emptiness runs before staleness so a
// room that is both empty and stale is torn down once, never resubscribed.
// Occupancy is re-checked at the moment of teardown (inside Collapse) so a
// join racing the sweep cannot lose its relay.
func (g *SessionGC) Sweep() {
	for _, hash := range g.relay.Rooms() {
		if g.registry.MembersOf(hash) != 0 {
			continue
		}
		if !g.relay.Collapse(hash) {
			g.log.Debug().Str("room", hash).Msg("room repopulated mid-sweep, keeping relay")
		}
	}

	cutoff := g.now().Add(-g.interval)
	for _, hash := range g.relay.ActiveRooms() {
		last, ok := g.relay.Activity(hash)
		if !ok || !last.Before(cutoff) {
			continue
		}
		if g.registry.MembersOf(hash) == 0 {
			// Became empty since the first pass; next sweep collapses it.
			continue
		}
		g.log.Error().Str("room", hash).Time("last_activity", last).Msg("room stalled, forcing resubscribe")
		g.relay.Restart(hash)
	}

	if g.throttle != nil {
		g.throttle.Expire()
	}
	g.relay.LogRates()
}
