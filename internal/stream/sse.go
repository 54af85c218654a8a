package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var pingInterval = 15 * time.Second

func WriteSSE(w http.ResponseWriter, ev StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if ev.EventID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", ev.EventID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}

// SetSSEHeaders applies headers that keep event streams stable across proxies.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Content-Type-Options", "nosniff")
}

// Handler streams the buffer as server-sent events. The optional session_id
// query parameter limits the stream to one room.
func Handler(buf *Buffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var only uint64
		if raw := r.URL.Query().Get("session_id"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_parameters"}`))
				return
			}
			only = id
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		keep := func(ev StreamEvent) bool { return only == 0 || ev.SessionID == only }

		SetSSEHeaders(w)
		w.WriteHeader(http.StatusOK)

		// Subscribe before replaying so nothing committed in between is lost.
		ch := buf.Subscribe()
		defer buf.Unsubscribe(ch)

		var sent int64
		for _, ev := range buf.ReplayAfter(r.Header.Get("Last-Event-ID")) {
			if !keep(ev) {
				continue
			}
			if err := WriteSSE(w, ev); err != nil {
				return
			}
			sent = ev.seq
		}
		flusher.Flush()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.seq <= sent || !keep(ev) {
					continue
				}
				if err := WriteSSE(w, ev); err != nil {
					return
				}
				sent = ev.seq
				flusher.Flush()
			case <-ticker.C:
				now := time.Now().UnixMilli()
				ping := StreamEvent{Event: "ping", ServerTS: now, Data: map[string]any{"ts": now}}
				if err := WriteSSE(w, ping); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
