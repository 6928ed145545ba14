package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin    = "join"
	InboundTypeMessage = "message"
	InboundTypeMove    = "move"
	InboundTypeCommand = "command"

	OutboundTypeJoined       = "joined"
	OutboundTypeJoin         = "join"
	OutboundTypeMessage      = "message"
	OutboundTypeMove         = "move"
	OutboundTypeDisconnected = "disconnected"

	// Frame and audio never travel as JSON; they leave the gateway as binary
	// websocket messages prefixed with a single tag byte.
	OutboundTypeFrame = "frame"
	OutboundTypeAudio = "audio"

	BinaryTagFrame byte = 0x01
	BinaryTagAudio byte = 0x02
)

// JoinData carries the nickname a viewer picked.
type JoinData struct {
	Nick string `json:"nick"`
}

// MessageData is a chat message from the client.
type MessageData struct {
	Text string `json:"text"`
}

// MoveData names a gamepad key pressed by the viewer.
type MoveData struct {
	Key string `json:"key"`
}

// CommandData is a free-form command string, e.g. "game#2".
type CommandData struct {
	Text string `json:"text"`
}

// Outbound is the envelope for JSON messages sent to the client.
type Outbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JoinEvent is broadcast when a viewer picks a nickname.
type JoinEvent struct {
	Nick string `json:"nick"`
}

// MessageEvent is a chat message broadcast to a room.
type MessageEvent struct {
	Text string `json:"text"`
	Nick string `json:"nick,omitempty"`
}

// MoveEvent mirrors a viewer input to the rest of the room.
type MoveEvent struct {
	Key  string `json:"key"`
	Nick string `json:"nick,omitempty"`
}

// DisconnectedEvent is broadcast to a room when a member leaves.
type DisconnectedEvent struct {
	Nick string `json:"nick,omitempty"`
}

// IsBinary reports whether an outbound event is delivered as a tagged binary
// message instead of a JSON envelope.
func IsBinary(event string) bool {
	return event == OutboundTypeFrame || event == OutboundTypeAudio
}

// BinaryTag maps a binary event name to its wire tag.
func BinaryTag(event string) byte {
	if event == OutboundTypeAudio {
		return BinaryTagAudio
	}
	return BinaryTagFrame
}
