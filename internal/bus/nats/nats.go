// Package nats reaches the compressor, emulator and ROM catalog services
// over the platform event bus. Subjects follow the weplay channel scheme:
//
//	weplay.compressor.<hash>.frame|audio   per-room streams (inbound)
//	weplay.compressor.rejected             per-room refusal (inbound)
//	weplay.rom.hash|data|image             catalog events (inbound)
//	weplay.rom.defaulthash|list|image.req  catalog requests (outbound)
//	weplay.emu.<hash>.move|command         viewer input (outbound)
//	weplay.game.nick                       nick announcements (outbound)
package nats

import (
	"encoding/json"
	"strconv"
	"sync"

	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/iromu/weplay/internal/core"
)

// Handler receives the control-plane events the gateway reacts to. Link
// health callbacks run on the nats client's goroutines.
type Handler interface {
	HandleRomHash(hash string, isDefault bool)
	HandleRomData(hash string, index int, name string)
	HandleRomImage(hash string, image []byte)
	HandleCompressorConnect()
	HandleCompressorDisconnect(reason string)
	HandleStreamRejected(room string)
}

type romHashEvent struct {
	Hash       string `json:"hash"`
	DefaultRom bool   `json:"defaultRom"`
}

type romDataEvent struct {
	Hash string `json:"hash"`
	Idx  int    `json:"idx"`
	Name string `json:"name"`
}

type romImageEvent struct {
	Hash  string `json:"hash"`
	Image []byte `json:"image"`
}

type nickEvent struct {
	Nick     string `json:"nick"`
	ClientID string `json:"clientId"`
}

// Bus implements core.UpstreamBus on a NATS connection.
type Bus struct {
	conn *natsgo.Conn
	log  zerolog.Logger

	mu      sync.Mutex
	handler Handler
	control []*natsgo.Subscription
}

// Connect dials the bus. The connection retries forever; link drops and
// recoveries are surfaced to the handler as compressor disconnect/connect.
func Connect(url, instance string, logger *zerolog.Logger) (*Bus, error) {
	b := &Bus{log: logger.With().Str("component", "bus").Logger()}

	conn, err := natsgo.Connect(url,
		natsgo.Name("weplay-gateway-"+instance),
		natsgo.MaxReconnects(-1),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			reason := "connection lost"
			if err != nil {
				reason = err.Error()
			}
			if h := b.currentHandler(); h != nil {
				h.HandleCompressorDisconnect(reason)
			}
		}),
		natsgo.ReconnectHandler(func(_ *natsgo.Conn) {
			if h := b.currentHandler(); h != nil {
				h.HandleCompressorConnect()
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	b.conn = conn
	return b, nil
}

func (b *Bus) currentHandler() Handler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handler
}

// SetHandler wires the inbound control subjects to the gateway. Must be
// called once before traffic is expected.
func (b *Bus) SetHandler(h Handler) error {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()

	subs := []struct {
		subject string
		cb      natsgo.MsgHandler
	}{
		{"weplay.rom.hash", func(m *natsgo.Msg) {
			var ev romHashEvent
			if err := json.Unmarshal(m.Data, &ev); err != nil {
				b.log.Warn().Err(err).Msg("malformed rom hash event")
				return
			}
			h.HandleRomHash(ev.Hash, ev.DefaultRom)
		}},
		{"weplay.rom.data", func(m *natsgo.Msg) {
			var ev romDataEvent
			if err := json.Unmarshal(m.Data, &ev); err != nil {
				b.log.Warn().Err(err).Msg("malformed rom data event")
				return
			}
			h.HandleRomData(ev.Hash, ev.Idx, ev.Name)
		}},
		{"weplay.rom.image", func(m *natsgo.Msg) {
			var ev romImageEvent
			if err := json.Unmarshal(m.Data, &ev); err != nil {
				b.log.Warn().Err(err).Msg("malformed rom image event")
				return
			}
			h.HandleRomImage(ev.Hash, ev.Image)
		}},
		{"weplay.compressor.rejected", func(m *natsgo.Msg) {
			h.HandleStreamRejected(string(m.Data))
		}},
	}

	for _, s := range subs {
		sub, err := b.conn.Subscribe(s.subject, s.cb)
		if err != nil {
			return err
		}
		b.mu.Lock()
		b.control = append(b.control, sub)
		b.mu.Unlock()
	}
	return nil
}

// streamSubscription bundles the frame and audio bindings for one room.
type streamSubscription struct {
	frame *natsgo.Subscription
	audio *natsgo.Subscription
}

func (s *streamSubscription) Unsubscribe() {
	if s.frame != nil {
		_ = s.frame.Unsubscribe()
	}
	if s.audio != nil {
		_ = s.audio.Unsubscribe()
	}
}

// Subscribe binds to a room's frame and audio streams. NATS dispatches each
// subscription's callbacks serially, preserving upstream delivery order per
// stream.
func (b *Bus) Subscribe(room string, h core.StreamHandler) (core.Subscription, error) {
	frame, err := b.conn.Subscribe("weplay.compressor."+room+".frame", func(m *natsgo.Msg) {
		if h.OnFrame != nil {
			h.OnFrame(m.Data)
		}
	})
	if err != nil {
		return nil, err
	}
	audio, err := b.conn.Subscribe("weplay.compressor."+room+".audio", func(m *natsgo.Msg) {
		if h.OnAudio != nil {
			h.OnAudio(m.Data)
		}
	})
	if err != nil {
		_ = frame.Unsubscribe()
		return nil, err
	}
	return &streamSubscription{frame: frame, audio: audio}, nil
}

func (b *Bus) RequestDefaultHash() error {
	return b.conn.Publish("weplay.rom.defaulthash", nil)
}

func (b *Bus) RequestROMList() error {
	return b.conn.Publish("weplay.rom.list", nil)
}

func (b *Bus) RequestROMImage(hash string) error {
	return b.conn.Publish("weplay.rom.image.req", []byte(hash))
}

func (b *Bus) SendMove(room string, key int) error {
	return b.conn.Publish("weplay.emu."+room+".move", []byte(strconv.Itoa(key)))
}

func (b *Bus) SendCommand(room, command string) error {
	return b.conn.Publish("weplay.emu."+room+".command", []byte(command))
}

func (b *Bus) AnnounceNick(clientID, nick string) error {
	payload, err := json.Marshal(nickEvent{Nick: nick, ClientID: clientID})
	if err != nil {
		return err
	}
	return b.conn.Publish("weplay.game.nick", payload)
}

// Close drains the control subscriptions and the connection.
func (b *Bus) Close() {
	b.mu.Lock()
	control := b.control
	b.control = nil
	b.mu.Unlock()

	for _, sub := range control {
		_ = sub.Unsubscribe()
	}
	b.conn.Close()
}

var _ core.UpstreamBus = (*Bus)(nil)
