// Package ws lets authenticated players join rooms and submit moves over a
// WebSocket while receiving every committed ledger event.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"cipher-rooms/internal/app/rooms"
	"cipher-rooms/internal/auth"
	"cipher-rooms/internal/stream"
)

const (
	writeWait     = 10 * time.Second
	actionTimeout = 5 * time.Second
)

type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	principal string
}

type Server struct {
	svc      *rooms.Service
	issuer   *auth.Issuer
	events   *stream.Buffer
	upgrader websocket.Upgrader
}

func NewServer(svc *rooms.Service, issuer *auth.Issuer, events *stream.Buffer) *Server {
	return &Server{
		svc:      svc,
		issuer:   issuer,
		events:   events,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// HandleWS authenticates before upgrading so a bad token gets a plain 401.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	principal, err := s.issuer.Verify(auth.TokenFromRequest(r))
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}
	// Subscribe before the handshake completes so the client sees every
	// event committed after it connected.
	events := s.events.Subscribe()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.events.Unsubscribe(events)
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 32), principal: principal}
	metricConnectionsTotal.Add(1)
	metricConnectionsActive.Add(1)
	log.Debug().Str("principal", principal).Msg("ws client connected")

	done := make(chan struct{})
	go s.writeLoop(client)
	go s.forwardEvents(client, events, done)
	s.readLoop(client)

	close(done)
	s.events.Unsubscribe(events)
	safeClose(client.send)
	_ = conn.Close()
	metricConnectionsActive.Add(-1)
}

func (s *Server) readLoop(c *Client) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(c, msg)
	}
}

func (s *Server) handleMessage(c *Client, msg []byte) {
	var base struct {
		Type      string `json:"type"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(msg, &base); err != nil {
		s.sendResult(c, Result{Action: "unknown", Error: "invalid_message"})
		return
	}
	if len(base.RequestID) > maxRequestIDLen {
		s.sendResult(c, Result{Action: base.Type, RequestID: base.RequestID, Error: "invalid_request_id"})
		return
	}
	switch base.Type {
	case "join":
		s.handleJoin(c, msg)
	case "move":
		s.handleMove(c, msg)
	default:
		s.sendResult(c, Result{Action: base.Type, RequestID: base.RequestID, Error: "unknown_type"})
	}
}

func (s *Server) handleJoin(c *Client, msg []byte) {
	var join JoinMessage
	if err := json.Unmarshal(msg, &join); err != nil {
		s.sendResult(c, Result{Action: "join", Error: "invalid_message"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	err := s.svc.JoinRoom(ctx, c.principal, join.RoomID, rooms.JoinRoomRequest{
		Anonymous:  join.Anonymous,
		MaxPrivacy: join.MaxPrivacy,
		Payment:    join.Payment,
	})
	s.sendResult(c, resultFor("join", join.RequestID, join.RoomID, err))
}

func (s *Server) handleMove(c *Client, msg []byte) {
	var move MoveMessage
	if err := json.Unmarshal(msg, &move); err != nil {
		s.sendResult(c, Result{Action: "move", Error: "invalid_message"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	err := s.svc.SubmitMove(ctx, c.principal, move.RoomID, rooms.SubmitMoveRequest{Move: move.Move, Valid: move.Valid})
	s.sendResult(c, resultFor("move", move.RequestID, move.RoomID, err))
}

func resultFor(action, requestID string, roomID uint64, err error) Result {
	res := Result{Action: action, RequestID: requestID, RoomID: roomID, Ok: err == nil}
	if err != nil {
		res.Error = rooms.ErrorCode(err)
	}
	return res
}

func (s *Server) sendResult(c *Client, res Result) {
	res.Type = "result"
	res.ProtocolVersion = protocolVersion
	if !res.Ok {
		metricActionErrors.Add(1)
	}
	b, _ := json.Marshal(res)
	safeSend(c.send, b)
}

func (s *Server) forwardEvents(c *Client, events chan stream.StreamEvent, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				// The buffer closed for shutdown; end the read loop too.
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
				_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				_ = c.conn.Close()
				return
			}
			b, _ := json.Marshal(EventMessage{Type: "event", ProtocolVersion: protocolVersion, Event: ev})
			safeSend(c.send, b)
		}
	}
}

func (s *Server) writeLoop(c *Client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

// safeSend drops the message when the client is slow or already gone.
func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
	}
}
