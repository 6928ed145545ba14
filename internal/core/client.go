package core

// Client is one connected viewer as seen by the broker. The identifier is
// assigned by the transport and stays stable for the connection's lifetime.
// Room is guarded by the registry's table lock; Nick is written once by the
// owning session (first-write-wins) and read only on that session's
// goroutine.
type Client struct {
	ID     string
	Nick   string
	Room   string
	Socket Socket
}

// NewClient constructs a client bound to its transport socket.
func NewClient(socket Socket) *Client {
	return &Client{
		ID:     socket.ID(),
		Socket: socket,
	}
}
