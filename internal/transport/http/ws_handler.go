package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/iromu/weplay/internal/core"
	"github.com/iromu/weplay/internal/proto"
	"github.com/iromu/weplay/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to broker sessions.
type WSHandler struct {
	gateway *core.Gateway
	groups  *Groups
	log     *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(gateway *core.Gateway, groups *Groups, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{gateway: gateway, groups: groups, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	sock := newSocket(utils.NewID())
	session := h.gateway.Connect(sock)
	defer session.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session, sock)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, sock)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, sock *socket) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Warn().Err(err).Str("socket_id", sock.id).Msg("malformed inbound message")
			continue
		}
		h.dispatch(session, inbound, sock)
	}
}

// dispatch routes one inbound envelope to its session handler. Unknown types
// and undecodable payloads are a no-op by contract.
func (h *WSHandler) dispatch(session *core.Session, inbound proto.Inbound, sock *socket) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var data proto.JoinData
		if json.Unmarshal(inbound.Data, &data) == nil {
			session.HandleJoin(data.Nick)
		}
	case proto.InboundTypeMessage:
		var data proto.MessageData
		if json.Unmarshal(inbound.Data, &data) == nil {
			session.HandleMessage(data.Text)
		}
	case proto.InboundTypeMove:
		var data proto.MoveData
		if json.Unmarshal(inbound.Data, &data) == nil {
			session.HandleMove(data.Key)
		}
	case proto.InboundTypeCommand:
		var data proto.CommandData
		if json.Unmarshal(inbound.Data, &data) == nil {
			session.HandleCommand(data.Text)
		}
	default:
		h.log.Debug().Str("type", inbound.Type).Str("socket_id", sock.id).Msg("ignoring unknown inbound type")
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sock *socket) error {
	for {
		select {
		case msg := <-sock.out:
			if proto.IsBinary(msg.event) {
				if err := conn.Write(ctx, websocket.MessageBinary, binaryMessage(msg.event, msg.payload)); err != nil {
					return err
				}
				continue
			}
			envelope, err := json.Marshal(proto.Outbound{Type: msg.event, Data: msg.payload})
			if err != nil {
				h.log.Warn().Err(err).Str("event", msg.event).Msg("marshal outbound envelope")
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, envelope); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
