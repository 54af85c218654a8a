// Package stream fans committed ledger events out to live subscribers and
// keeps a bounded tail for Last-Event-ID replay.
package stream

import (
	"strconv"
	"sync"
	"time"

	"cipher-rooms/internal/ledger"
)

type StreamEvent struct {
	EventID   string `json:"event_id"`
	Event     string `json:"event"`
	SessionID uint64 `json:"session_id,omitempty"`
	ServerTS  int64  `json:"server_ts"`
	Data      any    `json:"data"`

	seq int64
}

type Buffer struct {
	mu       sync.Mutex
	max      int
	events   []StreamEvent
	watchers map[chan StreamEvent]struct{}
	closed   bool
	now      func() time.Time
}

var _ ledger.Publisher = (*Buffer)(nil)

func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 500
	}
	return &Buffer{
		max:      max,
		watchers: map[chan StreamEvent]struct{}{},
		now:      time.Now,
	}
}

// Publish records a committed ledger event under its sequence number.
func (b *Buffer) Publish(ev ledger.Event) {
	b.append(StreamEvent{
		EventID:   strconv.FormatInt(ev.Seq, 10),
		Event:     string(ev.Type),
		SessionID: ev.SessionID,
		Data:      Project(ev),
		seq:       ev.Seq,
	})
}

func (b *Buffer) append(ev StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	ev.ServerTS = b.now().UnixMilli()
	b.events = append(b.events, ev)
	if len(b.events) > b.max {
		b.events = b.events[len(b.events)-b.max:]
	}
	for ch := range b.watchers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; it can resync with Last-Event-ID.
		}
	}
}

// ReplayAfter returns buffered events newer than lastEventID. An empty or
// unparsable id replays the whole buffer.
func (b *Buffer) ReplayAfter(lastEventID string) []StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if lastEventID == "" || err != nil {
		last = 0
	}
	out := make([]StreamEvent, 0, len(b.events))
	for _, ev := range b.events {
		if ev.seq > last {
			out = append(out, ev)
		}
	}
	return out
}

func (b *Buffer) Subscribe() chan StreamEvent {
	ch := make(chan StreamEvent, 32)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.watchers[ch] = struct{}{}
	return ch
}

func (b *Buffer) Unsubscribe(ch chan StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.watchers[ch]; ok {
		delete(b.watchers, ch)
		close(ch)
	}
}

func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.watchers {
		close(ch)
		delete(b.watchers, ch)
	}
}
