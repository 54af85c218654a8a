// Command room-bot joins a room over the WebSocket API and plays random moves
// until the room settles.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cipher-rooms/internal/app/rooms"
	"cipher-rooms/internal/config"
	"cipher-rooms/internal/ledger"
	"cipher-rooms/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}
	if cfg.Token == "" {
		log.Fatal().Msg("BOT_TOKEN is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	room, err := pickRoom(ctx, http.DefaultClient, cfg.APIURL, cfg.RoomID)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("pick room failed")
	}

	conn, _, err := websocket.DefaultDialer.Dial(cfg.WSURL+"?token="+url.QueryEscape(cfg.Token), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("dial failed")
	}
	defer conn.Close()

	b := newBot(room, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err := conn.WriteJSON(b.join()); err != nil {
		log.Fatal().Err(err).Msg("send join failed")
	}
	log.Info().Uint64("room_id", room.RoomID).Int64("stake", room.Stake).Msg("joining")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Msg("connection closed")
			return
		}
		reply, done := b.handle(data)
		if reply != nil {
			if err := conn.WriteJSON(reply); err != nil {
				log.Error().Err(err).Msg("send failed")
				return
			}
		}
		if done {
			return
		}
	}
}

// pickRoom loads the configured room, or the first open room when id is 0.
func pickRoom(ctx context.Context, client *http.Client, apiURL string, id uint64) (rooms.RoomItem, error) {
	base := strings.TrimRight(apiURL, "/")
	if id != 0 {
		var detail rooms.RoomDetailResponse
		if err := getJSON(ctx, client, fmt.Sprintf("%s/api/rooms/%d", base, id), &detail); err != nil {
			return rooms.RoomItem{}, err
		}
		return detail.RoomItem, nil
	}
	var list rooms.RoomsResponse
	if err := getJSON(ctx, client, base+"/api/rooms", &list); err != nil {
		return rooms.RoomItem{}, err
	}
	for _, it := range list.Items {
		if it.Active && it.Occupancy < it.Capacity {
			return it, nil
		}
	}
	return rooms.RoomItem{}, fmt.Errorf("no open room")
}

func getJSON(ctx context.Context, client *http.Client, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type bot struct {
	room  rooms.RoomItem
	rnd   *rand.Rand
	moved bool
}

func newBot(room rooms.RoomItem, rnd *rand.Rand) *bot {
	return &bot{room: room, rnd: rnd}
}

func (b *bot) join() ws.JoinMessage {
	return ws.JoinMessage{Type: "join", RequestID: "join-1", RoomID: b.room.RoomID, Payment: b.room.Stake}
}

func (b *bot) move() ws.MoveMessage {
	b.moved = true
	return ws.MoveMessage{Type: "move", RequestID: "move-1", RoomID: b.room.RoomID, Move: b.rnd.Intn(256), Valid: true}
}

// handle returns the message to send next, if any, and whether the bot is done.
func (b *bot) handle(data []byte) (any, bool) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, false
	}
	switch base.Type {
	case "result":
		var res ws.Result
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, false
		}
		if !res.Ok {
			log.Warn().Str("action", res.Action).Str("error", res.Error).Msg("request rejected")
			return nil, res.Action == "join"
		}
		if res.Action == "join" && b.room.Occupancy+1 >= b.room.Capacity {
			// This join filled the room.
			return b.move(), false
		}
	case "event":
		var msg ws.EventMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event.SessionID != b.room.RoomID {
			return nil, false
		}
		switch ledger.EventType(msg.Event.Event) {
		case ledger.EventSessionStarted:
			if !b.moved {
				return b.move(), false
			}
		case ledger.EventSessionFinished, ledger.EventSessionTerminated:
			log.Info().Uint64("room_id", b.room.RoomID).Interface("data", msg.Event.Data).Msg("room settled")
			return nil, true
		}
	}
	return nil, false
}
