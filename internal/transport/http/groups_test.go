package http

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iromu/weplay/internal/proto"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func drain(s *socket) []outMessage {
	var out []outMessage
	for {
		select {
		case msg := <-s.out:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestBroadcastReachesOnlyGroupMembers(t *testing.T) {
	groups := NewGroups(nopLogger())
	a := newSocket("a")
	b := newSocket("b")
	c := newSocket("c")

	groups.JoinGroup(a, "room-1")
	groups.JoinGroup(b, "room-1")
	groups.JoinGroup(c, "room-2")

	groups.BroadcastToGroup("room-1", proto.OutboundTypeFrame, []byte("frame"))

	if got := drain(a); len(got) != 1 || got[0].event != proto.OutboundTypeFrame {
		t.Fatalf("unexpected deliveries for a: %+v", got)
	}
	if got := drain(b); len(got) != 1 {
		t.Fatalf("expected delivery for b, got %+v", got)
	}
	if got := drain(c); len(got) != 0 {
		t.Fatalf("delivery leaked to other room: %+v", got)
	}
}

func TestLeaveGroupStopsDeliveries(t *testing.T) {
	groups := NewGroups(nopLogger())
	a := newSocket("a")

	groups.JoinGroup(a, "room-1")
	groups.LeaveGroup(a, "room-1")
	groups.BroadcastToGroup("room-1", proto.OutboundTypeFrame, []byte("frame"))

	if got := drain(a); len(got) != 0 {
		t.Fatalf("expected no deliveries after leave, got %+v", got)
	}
}

func TestSlowConsumerDeliveriesAreDropped(t *testing.T) {
	groups := NewGroups(nopLogger())
	a := newSocket("a")
	groups.JoinGroup(a, "room-1")

	for i := 0; i < cap(a.out)+10; i++ {
		groups.BroadcastToGroup("room-1", proto.OutboundTypeFrame, []byte{byte(i)})
	}

	if got := drain(a); len(got) != cap(a.out) {
		t.Fatalf("expected buffer-sized backlog, got %d", len(got))
	}
}

func TestEmitToSocketBypassesGroups(t *testing.T) {
	groups := NewGroups(nopLogger())
	a := newSocket("a")

	groups.EmitToSocket(a, proto.OutboundTypeJoined, nil)

	got := drain(a)
	if len(got) != 1 || got[0].event != proto.OutboundTypeJoined {
		t.Fatalf("unexpected deliveries: %+v", got)
	}
}

func TestBinaryMessageTagsPayload(t *testing.T) {
	frame := binaryMessage(proto.OutboundTypeFrame, []byte("vid"))
	if frame[0] != proto.BinaryTagFrame || !bytes.Equal(frame[1:], []byte("vid")) {
		t.Fatalf("unexpected frame wire form: %v", frame)
	}
	audio := binaryMessage(proto.OutboundTypeAudio, []byte("pcm"))
	if audio[0] != proto.BinaryTagAudio {
		t.Fatalf("unexpected audio tag: %v", audio[0])
	}
}
