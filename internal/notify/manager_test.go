package notify

import (
	"context"
	"testing"
	"time"

	"cipher-rooms/internal/ledger"
	"cipher-rooms/internal/testutil"
)

func TestManagerReceivesLedgerEvents(t *testing.T) {
	adapter := &recordAdapter{}
	m := newTestManager(t, Config{
		Workers: 1,
		Targets: []Target{{
			Platform:       "record",
			Endpoint:       "https://example.com",
			ScopeType:      "all",
			EventAllowlist: []string{"session_created", "session_finished"},
			Enabled:        true,
		}},
	}, adapter)

	r := testutil.NewRooms(t, []ledger.Option{ledger.WithPublisher(m)}, "A", "B")
	ctx := context.Background()
	id, err := r.Ledger.CreateSession(ctx, ledger.CreateParams{Name: "r", Capacity: 2, Stake: 100, Creator: "A"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, p := range []string{"A", "B"} {
		if err := r.Ledger.JoinSession(ctx, ledger.JoinParams{SessionID: id, Caller: p, Payment: 100}); err != nil {
			t.Fatalf("join %s: %v", p, err)
		}
	}
	for _, p := range []string{"A", "B"} {
		if err := r.Ledger.SubmitMove(ctx, ledger.MoveParams{SessionID: id, Caller: p, Move: 1, Valid: true}); err != nil {
			t.Fatalf("move %s: %v", p, err)
		}
	}

	waitCalls(t, adapter, 2)
	time.Sleep(30 * time.Millisecond)
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(adapter.titles) != 2 {
		t.Fatalf("titles = %v, want 2 messages", adapter.titles)
	}
	seen := map[string]bool{}
	for _, title := range adapter.titles {
		seen[title] = true
	}
	if !seen["Room Created · #1"] || !seen["Room Settled · #1"] {
		t.Fatalf("titles = %v", adapter.titles)
	}
}

func TestPublishDisabledIsNoop(t *testing.T) {
	m := NewManager(Config{Targets: []Target{{Platform: "webhook", Endpoint: "x", ScopeType: "all", Enabled: true}}})
	m.Publish(ledger.Event{Type: ledger.EventSessionCreated, Created: &ledger.CreatedData{Name: "r"}})
	if n := len(m.dispatchCh); n != 0 {
		t.Fatalf("queued = %d, want 0", n)
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	m := NewManager(Config{Enabled: true, DispatchBuffer: 1})
	m.enqueue(job{})
	m.enqueue(job{})
	if n := len(m.dispatchCh); n != 1 {
		t.Fatalf("queued = %d, want 1", n)
	}
}
