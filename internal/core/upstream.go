package core

// StreamHandler receives the per-room upstream streams. Callbacks for one
// subscription are invoked serially in upstream delivery order.
type StreamHandler struct {
	OnFrame func(payload []byte)
	OnAudio func(payload []byte)
}

// Subscription is the cancellable binding to one room's upstream streams.
// FrameRelay owns every handle exclusively.
type Subscription interface {
	Unsubscribe()
}

// UpstreamBus is the event-bus client reaching the compressor, emulator and
// ROM catalog services. Publish-style methods are best-effort: failures are
// logged by the caller and never surfaced to viewers.
type UpstreamBus interface {
	Subscribe(room string, h StreamHandler) (Subscription, error)

	RequestDefaultHash() error
	RequestROMList() error
	RequestROMImage(hash string) error

	SendMove(room string, key int) error
	SendCommand(room, command string) error
	AnnounceNick(clientID, nick string) error
}
