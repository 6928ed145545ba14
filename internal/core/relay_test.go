package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/iromu/weplay/internal/proto"
)

func TestStartBroadcastingIsIdempotent(t *testing.T) {
	p := newBrokerParts(nil)

	p.relay.StartBroadcasting("hash-a")
	p.relay.StartBroadcasting("hash-a")

	if got := p.bus.subscribeCount("hash-a"); got != 1 {
		t.Fatalf("expected 1 subscribe, got %d", got)
	}
	if got := p.relay.ActiveRooms(); len(got) != 1 || got[0] != "hash-a" {
		t.Fatalf("unexpected active rooms: %v", got)
	}
}

func TestStopBroadcastingUnsubscribesAndClearsState(t *testing.T) {
	p := newBrokerParts(nil)

	p.relay.StartBroadcasting("hash-a")
	p.relay.StopBroadcasting("hash-a")

	if got := p.bus.unsubscribeCount("hash-a"); got != 1 {
		t.Fatalf("expected 1 unsubscribe, got %d", got)
	}
	if _, ok := p.relay.Activity("hash-a"); ok {
		t.Fatal("expected activity timestamp cleared")
	}
	// Stopping again is a no-op.
	p.relay.StopBroadcasting("hash-a")
	if got := p.bus.unsubscribeCount("hash-a"); got != 1 {
		t.Fatalf("expected stop to be a no-op when inactive, got %d unsubscribes", got)
	}
}

func TestFrameDeliveryUpdatesCacheActivityAndFanout(t *testing.T) {
	p := newBrokerParts(nil)
	p.relay.StartBroadcasting("hash-a")

	before, ok := p.relay.Activity("hash-a")
	if !ok {
		t.Fatal("expected activity timestamp after start")
	}

	frame := []byte("frame-1")
	p.bus.pushFrame(t, "hash-a", frame)
	p.bus.pushAudio(t, "hash-a", []byte("audio-1"))

	after, ok := p.relay.Activity("hash-a")
	if !ok || after.Before(before) {
		t.Fatalf("expected activity to advance, before=%v after=%v", before, after)
	}

	frames := p.groups.broadcastsFor("hash-a", proto.OutboundTypeFrame)
	if len(frames) != 1 || !bytes.Equal(frames[0].payload, frame) {
		t.Fatalf("unexpected frame broadcasts: %+v", frames)
	}
	if got := p.groups.broadcastsFor("hash-a", proto.OutboundTypeAudio); len(got) != 1 {
		t.Fatalf("expected 1 audio broadcast, got %d", len(got))
	}
}

func TestFramesAfterStopAreDropped(t *testing.T) {
	p := newBrokerParts(nil)
	p.relay.StartBroadcasting("hash-a")

	p.bus.mu.Lock()
	h := p.bus.handlers["hash-a"]
	p.bus.mu.Unlock()

	p.relay.StopBroadcasting("hash-a")
	h.OnFrame([]byte("late-frame"))

	if got := p.groups.broadcastsFor("hash-a", proto.OutboundTypeFrame); len(got) != 0 {
		t.Fatalf("expected late frame dropped, got %+v", got)
	}
}

func TestStreamRejectedDeliversPlaceholderAndResetsState(t *testing.T) {
	p := newBrokerParts(nil)
	p.relay.StartBroadcasting("hash-a")

	p.relay.HandleStreamRejected("hash-a")

	frames := p.groups.broadcastsFor("hash-a", proto.OutboundTypeFrame)
	if len(frames) != 1 || !bytes.Equal(frames[0].payload, noConnectionFrame) {
		t.Fatalf("expected no-connection placeholder broadcast, got %+v", frames)
	}
	if got := p.bus.unsubscribeCount("hash-a"); got != 1 {
		t.Fatalf("expected local subscription released, got %d", got)
	}

	// A later start is a clean retry, not a double-subscribe.
	p.relay.StartBroadcasting("hash-a")
	if got := p.bus.subscribeCount("hash-a"); got != 2 {
		t.Fatalf("expected clean resubscribe, got %d subscribes", got)
	}
}

func TestStreamRejectedPrefersRoomPreview(t *testing.T) {
	preview := []byte("preview-image")
	p := newBrokerParts(func(string) []byte { return preview })

	c := NewClient(&fakeSocket{id: "c1"})
	p.registry.Join(c, "hash-a")
	p.relay.HandleStreamRejected("hash-a")

	frames := p.groups.broadcastsFor("hash-a", proto.OutboundTypeFrame)
	if len(frames) != 1 || !bytes.Equal(frames[0].payload, preview) {
		t.Fatalf("expected preview placeholder, got %+v", frames)
	}
}

func TestSubscribeFailureLeavesCleanState(t *testing.T) {
	p := newBrokerParts(nil)
	p.bus.rejectRooms["hash-a"] = true

	p.relay.StartBroadcasting("hash-a")

	if got := p.relay.ActiveRooms(); len(got) != 0 {
		t.Fatalf("expected no active rooms after failed subscribe, got %v", got)
	}

	p.bus.rejectRooms["hash-a"] = false
	p.relay.StartBroadcasting("hash-a")
	if got := p.bus.subscribeCount("hash-a"); got != 1 {
		t.Fatalf("expected retry to subscribe, got %d", got)
	}
}

func TestReconnectResubscribesActiveRooms(t *testing.T) {
	p := newBrokerParts(nil)
	p.relay.StartBroadcasting("hash-a")
	p.relay.StartBroadcasting("hash-b")

	p.relay.Reconnect()

	for _, hash := range []string{"hash-a", "hash-b"} {
		if got := p.bus.subscribeCount(hash); got != 2 {
			t.Fatalf("expected %s resubscribed, got %d subscribes", hash, got)
		}
		if got := p.bus.unsubscribeCount(hash); got != 1 {
			t.Fatalf("expected %s old handle released, got %d unsubscribes", hash, got)
		}
	}

	if _, ok := p.relay.Activity("hash-a"); !ok {
		t.Fatal("expected activity timestamp reset after reconnect")
	}
}

func TestActivityAdvancesMonotonically(t *testing.T) {
	p := newBrokerParts(nil)
	p.relay.StartBroadcasting("hash-a")

	var last time.Time
	for i := 0; i < 3; i++ {
		p.bus.pushFrame(t, "hash-a", []byte{byte(i)})
		now, ok := p.relay.Activity("hash-a")
		if !ok || now.Before(last) {
			t.Fatalf("activity went backwards: %v -> %v", last, now)
		}
		last = now
	}
}
