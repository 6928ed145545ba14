package http

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/iromu/weplay/internal/core"
	"github.com/iromu/weplay/internal/proto"
)

// outMessage is one queued delivery for a socket's write loop.
type outMessage struct {
	event   string
	payload []byte
}

// socket is one websocket connection as seen by the broadcast layer. The
// write loop drains out; deliveries to a slow consumer are dropped rather
// than stall the room fan-out.
type socket struct {
	id  string
	out chan outMessage
}

func newSocket(id string) *socket {
	return &socket{
		id:  id,
		out: make(chan outMessage, 64),
	}
}

func (s *socket) ID() string { return s.id }

func (s *socket) push(event string, payload []byte) bool {
	select {
	case s.out <- outMessage{event: event, payload: payload}:
		return true
	default:
		return false
	}
}

// Groups implements the room-broadcast primitive: a reverse index from room
// name to the member sockets. Forward client-to-room bookkeeping belongs to
// the broker's registry; this table only fans out.
type Groups struct {
	mu     sync.RWMutex
	byRoom map[string]map[string]*socket
	log    zerolog.Logger
}

func NewGroups(logger *zerolog.Logger) *Groups {
	return &Groups{
		byRoom: make(map[string]map[string]*socket),
		log:    logger.With().Str("component", "groups").Logger(),
	}
}

func (g *Groups) JoinGroup(s core.Socket, room string) {
	ws, ok := s.(*socket)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.byRoom[room]
	if !ok {
		members = make(map[string]*socket)
		g.byRoom[room] = members
	}
	members[ws.id] = ws
}

func (g *Groups) LeaveGroup(s core.Socket, room string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.byRoom[room]
	if !ok {
		return
	}
	delete(members, s.ID())
	if len(members) == 0 {
		delete(g.byRoom, room)
	}
}

func (g *Groups) BroadcastToGroup(room, event string, payload []byte) {
	g.mu.RLock()
	members := make([]*socket, 0, len(g.byRoom[room]))
	for _, ws := range g.byRoom[room] {
		members = append(members, ws)
	}
	g.mu.RUnlock()

	for _, ws := range members {
		if !ws.push(event, payload) {
			g.log.Debug().Str("socket_id", ws.id).Str("event", event).Msg("dropping delivery to slow consumer")
		}
	}
}

func (g *Groups) EmitToSocket(s core.Socket, event string, payload []byte) {
	ws, ok := s.(*socket)
	if !ok {
		return
	}
	if !ws.push(event, payload) {
		g.log.Debug().Str("socket_id", ws.id).Str("event", event).Msg("dropping delivery to slow consumer")
	}
}

var _ core.Broadcaster = (*Groups)(nil)

// binaryMessage renders a frame/audio delivery in its wire form.
func binaryMessage(event string, payload []byte) []byte {
	msg := make([]byte, 0, len(payload)+1)
	msg = append(msg, proto.BinaryTag(event))
	return append(msg, payload...)
}
