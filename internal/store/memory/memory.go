// Package memory is an in-process store used by tests and by gateways
// running without a configured redis instance.
package memory

import (
	"context"
	"sync"

	"github.com/iromu/weplay/internal/store"
)

// Store implements store.Store with mutex-guarded maps. Writes are
// synchronous, which trivially preserves submission order.
type Store struct {
	mu          sync.Mutex
	connections map[string]int
	clients     map[string]string
	nicks       map[string]string
	log         [][]byte
	logCap      int
}

func New(logCap int) *Store {
	return &Store{
		connections: make(map[string]int),
		clients:     make(map[string]string),
		nicks:       make(map[string]string),
		logCap:      logCap,
	}
}

func (s *Store) SetConnections(instance string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[instance] = total
}

func (s *Store) DeleteConnections(instance string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, instance)
}

func (s *Store) SetClientRoom(clientID, room, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[clientID] = room
}

func (s *Store) DeleteClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, clientID)
}

func (s *Store) SetNick(clientID, nick string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nicks[clientID] = nick
}

func (s *Store) DeleteNick(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nicks, clientID)
}

func (s *Store) PushLog(entry []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Newest first, like LPUSH.
	s.log = append([][]byte{entry}, s.log...)
	if len(s.log) > s.logCap {
		s.log = s.log[:s.logCap]
	}
}

func (s *Store) FetchLog(_ context.Context, limit int) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.log) {
		limit = len(s.log)
	}
	out := make([][]byte, limit)
	for i := 0; i < limit; i++ {
		entry := make([]byte, len(s.log[i]))
		copy(entry, s.log[i])
		out[i] = entry
	}
	return out, nil
}

// ClientRoom reports the recorded room for a client, for tests.
func (s *Store) ClientRoom(clientID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.clients[clientID]
	return room, ok
}

// Connections reports the recorded total for an instance, for tests.
func (s *Store) Connections(instance string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.connections[instance]
	return n, ok
}

func (s *Store) Close() error { return nil }

var _ store.Store = (*Store)(nil)
