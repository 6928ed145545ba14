package core

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iromu/weplay/internal/store"
)

// Gateway is the broker facade: it owns the room table, the catalog, the
// registry/relay/log/throttle components, and reacts to upstream bus events.
// One gateway runs per instance; cross-instance state lives in the store.
type Gateway struct {
	Instance string

	registry *RoomRegistry
	relay    *FrameRelay
	eventLog *EventLog
	throttle *CommandThrottle
	catalog  *RomCatalog
	groups   Broadcaster
	bus      UpstreamBus
	store    store.Store
	log      zerolog.Logger

	mu      sync.Mutex
	total   int
	pending map[string]*Session
}

// Options carries the tunables the gateway needs from configuration.
type Options struct {
	Instance         string
	ThrottleInterval time.Duration
	EventLogCap      int
}

// NewGateway wires the broker components together.
func NewGateway(opts Options, bus UpstreamBus, groups Broadcaster, st store.Store, logger *zerolog.Logger) *Gateway {
	table := newRoomTable()
	catalog := NewRomCatalog()
	relay := NewFrameRelay(table, bus, groups, logger)
	registry := NewRoomRegistry(table, relay, groups, st, catalog.Preview, opts.Instance, logger)

	return &Gateway{
		Instance: opts.Instance,
		registry: registry,
		relay:    relay,
		eventLog: NewEventLog(st, groups, opts.EventLogCap, logger),
		throttle: NewCommandThrottle(opts.ThrottleInterval),
		catalog:  catalog,
		groups:   groups,
		bus:      bus,
		store:    st,
		log:      logger.With().Str("component", "gateway").Logger(),
		pending:  make(map[string]*Session),
	}
}

// GC builds the periodic sweep bound to this gateway's components.
func (g *Gateway) GC(interval time.Duration, logger *zerolog.Logger) *SessionGC {
	return NewSessionGC(interval, g.registry, g.relay, g.throttle, logger)
}

// Connect starts a session for a freshly accepted socket. If a default room
// is known the client joins it immediately and gets the event-log replay;
// otherwise the session idles until the catalog resolves a default hash. The
// default-hash check and the pending insert share the gateway lock, so a
// hash announced in between is seen either by the check or by the drain in
// HandleRomHash, never by neither.
func (g *Gateway) Connect(socket Socket) *Session {
	s := &Session{
		gw:     g,
		socket: socket,
		client: NewClient(socket),
		log:    g.log.With().Str("client_id", socket.ID()).Logger(),
	}

	g.mu.Lock()
	g.total++
	total := g.total
	hash, ok := g.catalog.DefaultHash()
	if !ok {
		g.pending[socket.ID()] = s
	}
	g.mu.Unlock()
	g.store.SetConnections(g.Instance, total)

	if ok {
		g.joinStream(s, hash)
		return s
	}

	if err := g.bus.RequestDefaultHash(); err != nil {
		g.log.Warn().Err(err).Msg("request default hash")
	}
	g.log.Error().Err(ErrNoDefaultRoom).Str("client_id", socket.ID()).Msg("connection idles until catalog resolves a default hash")
	return s
}

// joinStream routes a session's client into a room and replays the event log
// the first time the client lands in one. Closed sessions never join: the
// pending drain can race a disconnect, and a dead client left in a member
// set would keep its relay alive forever. The re-check after Join undoes a
// close that landed mid-call.
func (g *Gateway) joinStream(s *Session, hash string) {
	g.mu.Lock()
	if s.closed {
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	g.registry.Join(s.client, hash)

	g.mu.Lock()
	if s.closed {
		g.mu.Unlock()
		g.registry.Leave(s.client)
		return
	}
	replay := !s.replayed
	s.replayed = true
	g.mu.Unlock()

	if replay {
		g.eventLog.ReplayTo(context.Background(), s.socket, hash)
	}
}

// broadcastEvent fans a room event out to the room's sockets and records it
// in the bounded log. An empty room falls back to the default hash, matching
// the behavior for clients that connected before a default was known.
func (g *Gateway) broadcastEvent(room, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		g.log.Warn().Err(err).Str("event", event).Msg("marshal event payload")
		return
	}
	if room == "" {
		room, _ = g.catalog.DefaultHash()
	}
	g.groups.BroadcastToGroup(room, event, payload)
	g.eventLog.Append(room, event, payload)
}

// HandleRomHash records a catalog hash advertisement. Resolving the default
// hash unblocks every session that connected before it was known.
func (g *Gateway) HandleRomHash(hash string, isDefault bool) {
	g.log.Info().Str("hash", hash).Bool("default", isDefault).Msg("rom hash announced")
	g.catalog.Announce(hash, isDefault)
	if !isDefault {
		return
	}

	g.mu.Lock()
	waiting := make([]*Session, 0, len(g.pending))
	for id, s := range g.pending {
		waiting = append(waiting, s)
		delete(g.pending, id)
	}
	g.mu.Unlock()

	for _, s := range waiting {
		g.joinStream(s, hash)
	}
}

// HandleRomData merges catalog metadata and requests the preview image for
// previously unseen entries.
func (g *Gateway) HandleRomData(hash string, index int, name string) {
	g.log.Info().Str("hash", hash).Int("idx", index).Str("name", name).Msg("rom data")
	if g.catalog.Merge(hash, index, name) {
		if err := g.bus.RequestROMImage(hash); err != nil {
			g.log.Warn().Err(err).Str("hash", hash).Msg("request rom image")
		}
	}
}

// HandleRomImage stores a preview image and attaches it to the live room if
// one exists for the hash.
func (g *Gateway) HandleRomImage(hash string, image []byte) {
	g.log.Debug().Str("hash", hash).Int("bytes", len(image)).Msg("rom image")
	g.catalog.SetImage(hash, image)
	g.registry.SetPreview(hash, image)
}

// HandleCompressorConnect runs when the upstream link (re)establishes: every
// previously active room is resubscribed in bulk and the catalog state is
// refreshed.
func (g *Gateway) HandleCompressorConnect() {
	g.log.Info().Msg("compressor link up")
	g.relay.Reconnect()
	if err := g.bus.RequestDefaultHash(); err != nil {
		g.log.Warn().Err(err).Msg("request default hash")
	}
	if err := g.bus.RequestROMList(); err != nil {
		g.log.Warn().Err(err).Msg("request rom list")
	}
}

// HandleCompressorDisconnect only logs; per-room recovery is the sweep's
// job and the bulk resubscribe happens on reconnect.
func (g *Gateway) HandleCompressorDisconnect(reason string) {
	g.log.Warn().Str("reason", reason).Msg("compressor link down")
}

// HandleStreamRejected reacts to an explicit per-room refusal from the
// production side.
func (g *Gateway) HandleStreamRejected(room string) {
	g.relay.HandleStreamRejected(room)
}

// Close removes this instance's traces from the shared store.
func (g *Gateway) Close() {
	g.log.Info().Msg("destroying gateway state")
	g.store.DeleteConnections(g.Instance)
	for _, id := range g.registry.ClientIDs() {
		g.store.DeleteClient(id)
		g.store.DeleteNick(id)
	}
}
