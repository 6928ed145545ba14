package store

import "context"

// Store is the persistent collaborator shared by all gateway instances.
// It keeps cross-instance connection counters, client-to-room records,
// nicknames, and the capped event log.
//
// Write methods are fire-and-forget: implementations must not block the
// caller on I/O and must swallow (but log) individual failures, while still
// executing writes in submission order. Losing a counter update or a log
// entry must never stall frame relaying.
type Store interface {
	// SetConnections records this instance's current connection total in the
	// shared counters hash.
	SetConnections(instance string, total int)
	// DeleteConnections removes this instance's counter on shutdown.
	DeleteConnections(instance string)

	// SetClientRoom records which room a client watches and which instance
	// owns its socket.
	SetClientRoom(clientID, room, instance string)
	DeleteClient(clientID string)

	SetNick(clientID, nick string)
	DeleteNick(clientID string)

	// PushLog appends a serialized event-log entry and trims the log to the
	// configured cap, oldest entries evicted silently.
	PushLog(entry []byte)
	// FetchLog returns up to limit entries, newest first.
	FetchLog(ctx context.Context, limit int) ([][]byte, error)

	Close() error
}
