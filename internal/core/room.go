package core

import (
	"sync"
	"time"
)

// RelayState tracks the upstream subscription lifecycle of a room.
type RelayState int

const (
	// RelayInactive means no upstream subscription is held.
	RelayInactive RelayState = iota
	// RelayActive means frames and audio are being relayed.
	RelayActive
	// RelayStale marks an occupied room whose subscription stopped producing
	// activity; it is transient while the sweep forces a resubscribe.
	RelayStale
)

// Room is the cohesive per-hash entity: member set, relay state, activity
// timestamp, cached payloads, and frame-rate counter all live here instead
// of parallel maps. All fields are guarded by the owning roomTable's mutex;
// components reach them only through RoomRegistry and FrameRelay.
type Room struct {
	Hash string

	members map[string]struct{}

	state      RelayState
	sub        Subscription
	lastActive time.Time
	lastFrame  []byte
	lastAudio  []byte
	preview    []byte
	rate       *rateCounter
}

func newRoom(hash string) *Room {
	return &Room{
		Hash:    hash,
		members: make(map[string]struct{}),
	}
}

// roomTable is the single owned table mapping hashes to rooms and client ids
// to clients. The registry mutates membership and the relay mutates stream
// state, both under the same mutex, so the forward and reverse indices can
// never disagree and sweep decisions see a consistent snapshot.
type roomTable struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	clients map[string]*Client
}

func newRoomTable() *roomTable {
	return &roomTable{
		rooms:   make(map[string]*Room),
		clients: make(map[string]*Client),
	}
}

// getOrCreate returns the room for hash, creating it on first sight. An
// unknown hash is a new room, never an error. Callers must hold mu.
func (t *roomTable) getOrCreate(hash string) *Room {
	room, ok := t.rooms[hash]
	if !ok {
		room = newRoom(hash)
		t.rooms[hash] = room
	}
	return room
}
