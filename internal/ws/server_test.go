package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cipher-rooms/internal/app/rooms"
	"cipher-rooms/internal/ledger"
	"cipher-rooms/internal/stream"
	"cipher-rooms/internal/testutil"
)

type wsFixture struct {
	rooms *testutil.Rooms
	buf   *stream.Buffer
	srv   *httptest.Server
	token func(principal string) string
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	buf := stream.NewBuffer(100)
	r := testutil.NewRooms(t, []ledger.Option{ledger.WithPublisher(buf)}, "A", "B")
	iss := testutil.NewIssuer(t)
	srv := httptest.NewServer(http.HandlerFunc(NewServer(r.Service, iss, buf).HandleWS))
	t.Cleanup(func() {
		buf.Close()
		srv.Close()
	})
	return &wsFixture{rooms: r, buf: buf, srv: srv, token: func(p string) string { return testutil.Token(t, iss, p) }}
}

func (f *wsFixture) dial(t *testing.T, principal string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?token=" + f.token(principal)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads frames until one has the wanted type.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) json.RawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %s: %v", typ, err)
		}
		var base struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(raw, &base)
		if base.Type == typ {
			return raw
		}
	}
}

func TestJoinOverWebSocketAcksAndStreamsEvent(t *testing.T) {
	f := newWSFixture(t)
	created, err := f.rooms.Service.CreateRoom(context.Background(), "A", rooms.CreateRoomRequest{Name: "r", Capacity: 2, Stake: 50})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	conn := f.dial(t, "A")

	if err := conn.WriteJSON(JoinMessage{Type: "join", RequestID: "req_1", RoomID: created.RoomID, Payment: 50}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	var res Result
	if err := json.Unmarshal(readUntil(t, conn, "result"), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !res.Ok || res.RequestID != "req_1" || res.Action != "join" || res.RoomID != created.RoomID {
		t.Fatalf("result = %+v", res)
	}

	if err := conn.WriteJSON(JoinMessage{Type: "join", RoomID: created.RoomID, Payment: 50}); err != nil {
		t.Fatalf("write second join: %v", err)
	}
	for {
		var got Result
		_ = json.Unmarshal(readUntil(t, conn, "result"), &got)
		if got.Ok {
			continue
		}
		if got.Error != "already_joined" {
			t.Fatalf("second join error = %q, want already_joined", got.Error)
		}
		break
	}
	if occ := f.rooms.Service.Rooms().Items[0].Occupancy; occ != 1 {
		t.Fatalf("occupancy = %d, want 1", occ)
	}
}

func TestEventsReachOtherClients(t *testing.T) {
	f := newWSFixture(t)
	created, _ := f.rooms.Service.CreateRoom(context.Background(), "A", rooms.CreateRoomRequest{Name: "r", Capacity: 2, Stake: 50})
	watcher := f.dial(t, "B")
	player := f.dial(t, "A")

	if err := player.WriteJSON(JoinMessage{Type: "join", RoomID: created.RoomID, Payment: 50}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	var msg EventMessage
	if err := json.Unmarshal(readUntil(t, watcher, "event"), &msg); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if msg.Event.Event != string(ledger.EventPlayerJoined) || msg.Event.SessionID != created.RoomID {
		t.Fatalf("event = %+v", msg.Event)
	}
}

func TestMoveByOutsiderIsRejected(t *testing.T) {
	f := newWSFixture(t)
	created, _ := f.rooms.Service.CreateRoom(context.Background(), "A", rooms.CreateRoomRequest{Name: "r", Capacity: 2, Stake: 50})
	conn := f.dial(t, "B")
	if err := conn.WriteJSON(MoveMessage{Type: "move", RoomID: created.RoomID, Move: 4, Valid: true}); err != nil {
		t.Fatalf("write move: %v", err)
	}
	var res Result
	_ = json.Unmarshal(readUntil(t, conn, "result"), &res)
	if res.Ok || res.Error != "not_a_participant" {
		t.Fatalf("result = %+v", res)
	}
}

func TestRejectsMissingToken(t *testing.T) {
	f := newWSFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %+v, want 401", resp)
	}
}

func TestHandleMessageValidatesEnvelope(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{name: "not json", msg: `{`, want: "invalid_message"},
		{name: "unknown type", msg: `{"type":"spectate"}`, want: "unknown_type"},
		{name: "long request id", msg: `{"type":"join","request_id":"` + strings.Repeat("a", 65) + `"}`, want: "invalid_request_id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := &Server{}
			c := &Client{send: make(chan []byte, 1)}
			srv.handleMessage(c, []byte(tc.msg))
			var got Result
			select {
			case raw := <-c.send:
				if err := json.Unmarshal(raw, &got); err != nil {
					t.Fatalf("unmarshal result: %v", err)
				}
			default:
				t.Fatal("expected result")
			}
			if got.Ok || got.Error != tc.want || got.Type != "result" {
				t.Fatalf("result = %+v, want error %q", got, tc.want)
			}
		})
	}
}

func TestClosingEventBufferDisconnectsClients(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "A")
	// Wait until the server is serving this connection.
	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, "result")

	f.buf.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Fatalf("read err = %v, want going-away close", err)
		}
		return
	}
}
