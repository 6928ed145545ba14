package core

// Socket is one transport connection. The transport assigns the identifier
// and keeps it stable until disconnect.
type Socket interface {
	ID() string
}

// Broadcaster is the transport's room-broadcast primitive. Payloads arrive
// pre-encoded; the transport picks the wire form (JSON envelope or tagged
// binary) from the event name. Implementations must not call back into the
// broker.
type Broadcaster interface {
	JoinGroup(s Socket, room string)
	LeaveGroup(s Socket, room string)
	BroadcastToGroup(room, event string, payload []byte)
	EmitToSocket(s Socket, event string, payload []byte)
}
