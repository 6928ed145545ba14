package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func testContext(t *testing.T, d time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), d)
}

type fakeSocket struct {
	id string
}

func (s *fakeSocket) ID() string { return s.id }

type delivery struct {
	room    string
	socket  string
	event   string
	payload []byte
	seq     int
}

// recordingBroadcaster captures fan-out calls for assertions. Every call gets
// a sequence number so tests can assert relative ordering across the join,
// broadcast and emit streams.
type recordingBroadcaster struct {
	mu         sync.Mutex
	seq        int
	joins      []delivery
	leaves     []delivery
	broadcasts []delivery
	emits      []delivery
}

func (b *recordingBroadcaster) JoinGroup(s Socket, room string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.joins = append(b.joins, delivery{room: room, socket: s.ID(), seq: b.seq})
}

func (b *recordingBroadcaster) LeaveGroup(s Socket, room string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.leaves = append(b.leaves, delivery{room: room, socket: s.ID(), seq: b.seq})
}

func (b *recordingBroadcaster) BroadcastToGroup(room, event string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.broadcasts = append(b.broadcasts, delivery{room: room, event: event, payload: payload, seq: b.seq})
}

func (b *recordingBroadcaster) EmitToSocket(s Socket, event string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.emits = append(b.emits, delivery{socket: s.ID(), event: event, payload: payload, seq: b.seq})
}

func (b *recordingBroadcaster) joinsFor(socketID string) []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []delivery
	for _, d := range b.joins {
		if d.socket == socketID {
			out = append(out, d)
		}
	}
	return out
}

func (b *recordingBroadcaster) broadcastsFor(room, event string) []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []delivery
	for _, d := range b.broadcasts {
		if d.room == room && d.event == event {
			out = append(out, d)
		}
	}
	return out
}

func (b *recordingBroadcaster) emitsFor(socketID, event string) []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []delivery
	for _, d := range b.emits {
		if d.socket == socketID && d.event == event {
			out = append(out, d)
		}
	}
	return out
}

type fakeSubscription struct {
	bus  *fakeBus
	room string
}

func (s *fakeSubscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.bus.unsubscribes[s.room]++
	delete(s.bus.handlers, s.room)
}

// fakeBus is a scripted upstream: it records subscriptions and lets tests
// push frames through the captured handlers.
type fakeBus struct {
	mu           sync.Mutex
	subscribes   map[string]int
	unsubscribes map[string]int
	handlers     map[string]StreamHandler
	rejectRooms  map[string]bool

	moves        []string
	commands     []string
	nicks        []string
	defaultAsked int
	listAsked    int
	imagesAsked  []string
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		subscribes:   make(map[string]int),
		unsubscribes: make(map[string]int),
		handlers:     make(map[string]StreamHandler),
		rejectRooms:  make(map[string]bool),
	}
}

func (b *fakeBus) Subscribe(room string, h StreamHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectRooms[room] {
		return nil, errors.New("subscription refused")
	}
	b.subscribes[room]++
	b.handlers[room] = h
	return &fakeSubscription{bus: b, room: room}, nil
}

func (b *fakeBus) RequestDefaultHash() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defaultAsked++
	return nil
}

func (b *fakeBus) RequestROMList() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listAsked++
	return nil
}

func (b *fakeBus) RequestROMImage(hash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.imagesAsked = append(b.imagesAsked, hash)
	return nil
}

func (b *fakeBus) SendMove(room string, key int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.moves = append(b.moves, room)
	return nil
}

func (b *fakeBus) SendCommand(room, command string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, command)
	return nil
}

func (b *fakeBus) AnnounceNick(clientID, nick string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nicks = append(b.nicks, nick)
	return nil
}

func (b *fakeBus) pushFrame(t *testing.T, room string, payload []byte) {
	t.Helper()
	b.mu.Lock()
	h, ok := b.handlers[room]
	b.mu.Unlock()
	if !ok {
		t.Fatalf("no stream handler captured for room %q", room)
	}
	h.OnFrame(payload)
}

func (b *fakeBus) pushAudio(t *testing.T, room string, payload []byte) {
	t.Helper()
	b.mu.Lock()
	h, ok := b.handlers[room]
	b.mu.Unlock()
	if !ok {
		t.Fatalf("no stream handler captured for room %q", room)
	}
	h.OnAudio(payload)
}

func (b *fakeBus) subscribeCount(room string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribes[room]
}

func (b *fakeBus) unsubscribeCount(room string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unsubscribes[room]
}

// nullStore satisfies store.Store for tests that do not observe persistence.
type nullStore struct {
	mu      sync.Mutex
	clients map[string]string
}

func (s *nullStore) SetConnections(string, int)  {}
func (s *nullStore) DeleteConnections(string)    {}
func (s *nullStore) SetNick(string, string)      {}
func (s *nullStore) DeleteNick(string)           {}
func (s *nullStore) PushLog([]byte)              {}
func (s *nullStore) Close() error                { return nil }

func (s *nullStore) SetClientRoom(clientID, room, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients == nil {
		s.clients = make(map[string]string)
	}
	s.clients[clientID] = room
}

func (s *nullStore) DeleteClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, clientID)
}

func (s *nullStore) FetchLog(context.Context, int) ([][]byte, error) {
	return nil, nil
}

// brokerParts bundles directly constructed components for registry/relay/gc
// tests that do not need the full gateway.
type brokerParts struct {
	table    *roomTable
	relay    *FrameRelay
	registry *RoomRegistry
	bus      *fakeBus
	groups   *recordingBroadcaster
	store    *nullStore
}

func newBrokerParts(previews func(string) []byte) *brokerParts {
	table := newRoomTable()
	bus := newFakeBus()
	groups := &recordingBroadcaster{}
	st := &nullStore{}
	relay := NewFrameRelay(table, bus, groups, nopLogger())
	registry := NewRoomRegistry(table, relay, groups, st, previews, "test-instance", nopLogger())
	return &brokerParts{
		table:    table,
		relay:    relay,
		registry: registry,
		bus:      bus,
		groups:   groups,
		store:    st,
	}
}
