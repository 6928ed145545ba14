package core

import (
	"github.com/rs/zerolog"

	"github.com/iromu/weplay/internal/proto"
	"github.com/iromu/weplay/internal/store"
)

// RoomRegistry is the authoritative mapping of clients to rooms and rooms to
// member sets. Both indices mutate together under the table lock, so a
// client is in exactly one room's member set whenever its forward mapping
// says so.
type RoomRegistry struct {
	table    *roomTable
	relay    *FrameRelay
	groups   Broadcaster
	store    store.Store
	previews func(hash string) []byte
	instance string
	log      zerolog.Logger
}

func NewRoomRegistry(table *roomTable, relay *FrameRelay, groups Broadcaster, st store.Store, previews func(string) []byte, instance string, logger *zerolog.Logger) *RoomRegistry {
	return &RoomRegistry{
		table:    table,
		relay:    relay,
		groups:   groups,
		store:    st,
		previews: previews,
		instance: instance,
		log:      logger.With().Str("component", "registry").Logger(),
	}
}

// Join routes a client to a room. Re-joining the current room is a no-op.
// Joining a different room removes the client from its old room first; the
// old room's relay keeps running until the next sweep so a quick rejoin does
// not pay for a relay restart. If the new room has a cached frame or a
// catalog preview, it is delivered to the joining socket alone so the viewer
// does not wait for the next live frame. The catch-up emit happens before
// the socket enters the broadcast group, so no live frame can be queued
// ahead of it.
func (r *RoomRegistry) Join(c *Client, hash string) {
	r.table.mu.Lock()
	if c.Room == hash {
		r.table.mu.Unlock()
		return
	}

	if c.Room != "" {
		if old, ok := r.table.rooms[c.Room]; ok {
			delete(old.members, c.ID)
		}
		r.groups.LeaveGroup(c.Socket, c.Room)
	}

	room := r.table.getOrCreate(hash)
	if room.preview == nil && r.previews != nil {
		room.preview = r.previews(hash)
	}
	catchup := room.lastFrame
	if catchup == nil {
		catchup = room.preview
	}
	if catchup != nil {
		r.groups.EmitToSocket(c.Socket, proto.OutboundTypeFrame, catchup)
	}

	room.members[c.ID] = struct{}{}
	c.Room = hash
	r.table.clients[c.ID] = c
	r.groups.JoinGroup(c.Socket, hash)
	r.table.mu.Unlock()

	r.log.Debug().Str("client_id", c.ID).Str("room", hash).Msg("client joined room")

	r.relay.StartBroadcasting(hash)
	r.store.SetClientRoom(c.ID, hash, r.instance)
}

// Leave removes a client from its room and clears the forward mapping. It
// never stops the relay; the sweep reconciles occupancy so a rejoin within
// the sweep window is free.
func (r *RoomRegistry) Leave(c *Client) {
	r.table.mu.Lock()
	if c.Room == "" {
		r.table.mu.Unlock()
		delete(r.table.clients, c.ID)
		return
	}

	if room, ok := r.table.rooms[c.Room]; ok {
		delete(room.members, c.ID)
	}
	r.groups.LeaveGroup(c.Socket, c.Room)
	left := c.Room
	c.Room = ""
	delete(r.table.clients, c.ID)
	r.table.mu.Unlock()

	r.log.Debug().Str("client_id", c.ID).Str("room", left).Msg("client left room")
	r.store.DeleteClient(c.ID)
}

// MembersOf reports a room's current member count.
func (r *RoomRegistry) MembersOf(hash string) int {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	if room, ok := r.table.rooms[hash]; ok {
		return len(room.members)
	}
	return 0
}

// RoomOf reads a client's current room under the table lock.
func (r *RoomRegistry) RoomOf(c *Client) string {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()
	return c.Room
}

// SetPreview attaches a catalog preview image to a live room, if present.
func (r *RoomRegistry) SetPreview(hash string, image []byte) {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	if room, ok := r.table.rooms[hash]; ok {
		room.preview = image
	}
}

// ClientIDs snapshots the ids of all currently tracked clients.
func (r *RoomRegistry) ClientIDs() []string {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	ids := make([]string, 0, len(r.table.clients))
	for id := range r.table.clients {
		ids = append(ids, id)
	}
	return ids
}
