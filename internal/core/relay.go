package core

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/iromu/weplay/internal/proto"
)

// noConnectionFrame is the placeholder shown when the compressor refuses a
// stream and the room has no preview image: a 1x1 black GIF.
var noConnectionFrame = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// FrameRelay owns the upstream subscription for each active room and fans
// delivered frames and audio out to the room's broadcast group. Subscription
// handles never leave this component; the registry and the sweep only ask
// for starts and stops.
type FrameRelay struct {
	table  *roomTable
	source UpstreamBus
	groups Broadcaster
	total  *rateCounter
	log    zerolog.Logger
}

func NewFrameRelay(table *roomTable, source UpstreamBus, groups Broadcaster, logger *zerolog.Logger) *FrameRelay {
	return &FrameRelay{
		table:  table,
		source: source,
		groups: groups,
		total:  newRateCounter(),
		log:    logger.With().Str("component", "relay").Logger(),
	}
}

// StartBroadcasting subscribes to a room's upstream frame and audio streams.
// Already-active rooms are a no-op, so membership churn never stacks
// subscriptions.
func (r *FrameRelay) StartBroadcasting(hash string) {
	if hash == "" {
		return
	}

	r.table.mu.Lock()
	room := r.table.getOrCreate(hash)
	if room.state == RelayActive {
		r.table.mu.Unlock()
		return
	}
	room.state = RelayActive
	room.lastActive = time.Now()
	room.rate = newRateCounter()
	r.table.mu.Unlock()

	r.log.Info().Str("room", hash).Msg("start broadcasting")

	sub, err := r.source.Subscribe(hash, StreamHandler{
		OnFrame: func(payload []byte) { r.deliverFrame(hash, payload) },
		OnAudio: func(payload []byte) { r.deliverAudio(hash, payload) },
	})
	if err != nil {
		r.log.Error().Err(err).Str("room", hash).Msg("upstream subscribe failed")
		r.table.mu.Lock()
		if room.sub == nil {
			room.state = RelayInactive
			room.lastActive = time.Time{}
			room.rate = nil
		}
		r.table.mu.Unlock()
		return
	}

	r.table.mu.Lock()
	if room.state != RelayActive {
		// Stopped while we were subscribing.
		r.table.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	room.sub = sub
	r.table.mu.Unlock()
}

// StopBroadcasting cancels a room's upstream subscription and discards its
// rate counter and activity timestamp. Inactive rooms are a no-op.
func (r *FrameRelay) StopBroadcasting(hash string) {
	r.table.mu.Lock()
	room, ok := r.table.rooms[hash]
	if !ok || room.state == RelayInactive {
		r.table.mu.Unlock()
		return
	}
	sub := room.sub
	room.sub = nil
	room.state = RelayInactive
	room.lastActive = time.Time{}
	room.rate = nil
	r.table.mu.Unlock()

	r.log.Info().Str("room", hash).Msg("stop broadcasting")
	if sub != nil {
		sub.Unsubscribe()
	}
}

// Restart force-resubscribes a room assumed to have a silently dead
// subscription. The room passes through the stale state so observers can
// tell a forced restart from a plain stop.
func (r *FrameRelay) Restart(hash string) {
	r.table.mu.Lock()
	room, ok := r.table.rooms[hash]
	if !ok || room.state == RelayInactive {
		r.table.mu.Unlock()
		return
	}
	room.state = RelayStale
	r.table.mu.Unlock()

	r.StopBroadcasting(hash)
	r.StartBroadcasting(hash)
}

// Collapse tears down a room's relay and drops all tracked state, but only
// if the room is still empty at the moment of teardown. Returns false when a
// concurrent join made the room non-empty again.
func (r *FrameRelay) Collapse(hash string) bool {
	r.table.mu.Lock()
	room, ok := r.table.rooms[hash]
	if !ok {
		r.table.mu.Unlock()
		return true
	}
	if len(room.members) > 0 {
		r.table.mu.Unlock()
		return false
	}
	sub := room.sub
	room.sub = nil
	room.state = RelayInactive
	delete(r.table.rooms, hash)
	r.table.mu.Unlock()

	r.log.Info().Str("room", hash).Msg("room empty, dropping relay state")
	if sub != nil {
		sub.Unsubscribe()
	}
	return true
}

// HandleStreamRejected reacts to an explicit upstream refusal: the room gets
// a placeholder frame right away and the local relay state is reset so a
// future start is a clean retry instead of a silent double-subscribe.
func (r *FrameRelay) HandleStreamRejected(hash string) {
	r.table.mu.Lock()
	room, ok := r.table.rooms[hash]
	if !ok {
		r.table.mu.Unlock()
		return
	}
	placeholder := room.preview
	if placeholder == nil {
		placeholder = noConnectionFrame
	}
	room.lastFrame = placeholder
	sub := room.sub
	room.sub = nil
	room.state = RelayInactive
	room.lastActive = time.Time{}
	room.rate = nil
	r.table.mu.Unlock()

	r.log.Warn().Str("room", hash).Msg("upstream rejected stream, delivering placeholder")
	if sub != nil {
		sub.Unsubscribe()
	}
	r.groups.BroadcastToGroup(hash, proto.OutboundTypeFrame, placeholder)
}

// Reconnect resubscribes every active room after the upstream link came
// back. This is the bulk path for a bus-level reconnect, distinct from
// per-room staleness recovery.
func (r *FrameRelay) Reconnect() {
	for _, hash := range r.ActiveRooms() {
		r.log.Info().Str("room", hash).Msg("resubscribing after reconnect")
		r.Restart(hash)
	}
}

// Rooms snapshots every tracked hash, active or not. The sweep walks all of
// them so rooms that went inactive through rejection or shutdown still get
// their state dropped once empty.
func (r *FrameRelay) Rooms() []string {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	hashes := make([]string, 0, len(r.table.rooms))
	for hash := range r.table.rooms {
		hashes = append(hashes, hash)
	}
	return hashes
}

// ActiveRooms snapshots the hashes currently holding a subscription.
func (r *FrameRelay) ActiveRooms() []string {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	hashes := make([]string, 0, len(r.table.rooms))
	for hash, room := range r.table.rooms {
		if room.state != RelayInactive {
			hashes = append(hashes, hash)
		}
	}
	return hashes
}

// Activity returns a room's last-activity timestamp. ok is false for rooms
// without one (inactive or never started).
func (r *FrameRelay) Activity(hash string) (time.Time, bool) {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	room, ok := r.table.rooms[hash]
	if !ok || room.lastActive.IsZero() {
		return time.Time{}, false
	}
	return room.lastActive, true
}

// LogRates samples and logs per-room and aggregate frame rates.
func (r *FrameRelay) LogRates() {
	r.table.mu.Lock()
	type sample struct {
		hash string
		rate *rateCounter
	}
	samples := make([]sample, 0, len(r.table.rooms))
	for hash, room := range r.table.rooms {
		if room.state == RelayActive && room.rate != nil {
			samples = append(samples, sample{hash: hash, rate: room.rate})
		}
	}
	r.table.mu.Unlock()

	for _, s := range samples {
		r.log.Debug().Str("room", s.hash).Float64("fps", s.rate.Sample()).Msg("room frame rate")
	}
	r.log.Debug().Float64("fps", r.total.Sample()).Msg("aggregate frame rate")
}

func (r *FrameRelay) deliverFrame(hash string, payload []byte) {
	r.table.mu.Lock()
	room, ok := r.table.rooms[hash]
	if !ok || room.state != RelayActive {
		r.table.mu.Unlock()
		return
	}
	room.lastFrame = payload
	room.lastActive = time.Now()
	if room.rate != nil {
		room.rate.Tick()
	}
	r.table.mu.Unlock()

	r.total.Tick()
	r.groups.BroadcastToGroup(hash, proto.OutboundTypeFrame, payload)
}

func (r *FrameRelay) deliverAudio(hash string, payload []byte) {
	r.table.mu.Lock()
	room, ok := r.table.rooms[hash]
	if !ok || room.state != RelayActive {
		r.table.mu.Unlock()
		return
	}
	room.lastAudio = payload
	room.lastActive = time.Now()
	r.table.mu.Unlock()

	r.groups.BroadcastToGroup(hash, proto.OutboundTypeAudio, payload)
}
