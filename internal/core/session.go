package core

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iromu/weplay/internal/proto"
)

// Session is the per-connection orchestrator. The transport calls its
// handlers from the connection's read goroutine; a disconnect tears down
// registry state and leaves relay reconciliation to the next sweep.
type Session struct {
	gw     *Gateway
	socket Socket
	client *Client
	log    zerolog.Logger

	// closed and replayed are guarded by gw.mu; the pending drain and the
	// connection goroutine both touch them.
	closed   bool
	replayed bool
}

// HandleJoin records the viewer's nickname and announces it. Nicknames are
// first-write-wins; repeated joins are ignored.
func (s *Session) HandleJoin(nick string) {
	if s.client.Nick != "" || nick == "" {
		return
	}
	s.client.Nick = nick
	s.log.Debug().Str("nick", nick).Msg("viewer joined chat")

	room := s.gw.registry.RoomOf(s.client)
	s.gw.broadcastEvent(room, proto.OutboundTypeJoin, proto.JoinEvent{Nick: nick})
	s.gw.groups.EmitToSocket(s.socket, proto.OutboundTypeJoined, nil)

	s.gw.store.SetNick(s.client.ID, nick)
	if err := s.gw.bus.AnnounceNick(s.client.ID, nick); err != nil {
		s.log.Warn().Err(err).Msg("announce nick")
	}
}

// HandleMessage broadcasts a chat message to the viewer's room.
func (s *Session) HandleMessage(text string) {
	if text == "" {
		return
	}
	room := s.gw.registry.RoomOf(s.client)
	s.gw.broadcastEvent(room, proto.OutboundTypeMessage, proto.MessageEvent{Text: text, Nick: s.client.Nick})
}

// HandleMove forwards a gamepad key upstream and mirrors it to the room.
// Unknown keys are dropped silently; the throttle allows one move per
// interval per client.
func (s *Session) HandleMove(key string) {
	code, ok := KeyCode(key)
	if !ok {
		return
	}
	if !s.gw.throttle.Allow(s.client.ID, "move") {
		return
	}

	room := s.gw.registry.RoomOf(s.client)
	if room == "" {
		return
	}
	if err := s.gw.bus.SendMove(room, code); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("forward move")
	}
	s.gw.broadcastEvent(room, proto.OutboundTypeMove, proto.MoveEvent{Key: key, Nick: s.client.Nick})
}

// HandleCommand forwards a throttled command upstream and, when the command
// carries a "#<index>" game selector that resolves in the catalog, switches
// the viewer to that game's room.
func (s *Session) HandleCommand(command string) {
	if command == "" {
		return
	}
	if !s.gw.throttle.Allow(s.client.ID, "command") {
		return
	}

	room := s.gw.registry.RoomOf(s.client)
	if room != "" {
		if err := s.gw.bus.SendCommand(room, command); err != nil {
			s.log.Warn().Err(err).Msg("forward command")
		}
	}

	_, selector, found := strings.Cut(command, "#")
	if !found {
		return
	}
	index, err := strconv.Atoi(strings.TrimSpace(selector))
	if err != nil {
		return
	}
	entry, ok := s.gw.catalog.ByIndex(index)
	if !ok {
		s.log.Debug().Err(ErrUnknownGame).Int("idx", index).Msg("ignoring game selector")
		return
	}
	s.log.Info().Str("room", entry.Hash).Int("idx", entry.Index).Msg("switching game")
	s.gw.joinStream(s, entry.Hash)
}

// Close tears the session down after disconnect: the room hears about the
// exit, registry state is removed, and store records are deleted. The next
// sweep reconciles relay occupancy.
func (s *Session) Close() {
	s.gw.mu.Lock()
	s.closed = true
	s.gw.total--
	total := s.gw.total
	delete(s.gw.pending, s.socket.ID())
	s.gw.mu.Unlock()
	s.gw.store.SetConnections(s.gw.Instance, total)

	room := s.gw.registry.RoomOf(s.client)
	s.gw.broadcastEvent(room, proto.OutboundTypeDisconnected, proto.DisconnectedEvent{Nick: s.client.Nick})

	s.gw.registry.Leave(s.client)
	s.gw.store.DeleteNick(s.client.ID)
	s.gw.throttle.Forget(s.client.ID)
	s.log.Debug().Msg("session closed")
}
