package memstore

import (
	"context"
	"errors"
	"testing"

	"cipher-rooms/internal/ledger"
)

func TestCommitIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Credit(ctx, "alice", 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	err := s.Commit(ctx, ledger.Batch{
		Events: []ledger.Event{{Seq: 1, Type: ledger.EventPlayerJoined}},
		Transfers: []ledger.Transfer{
			{From: "alice", To: "house", Amount: 60},
			{From: "alice", To: "house", Amount: 60},
		},
	})
	if !errors.Is(err, ledger.ErrTransferFailed) {
		t.Fatalf("commit err = %v, want transfer_failed", err)
	}
	if got, _ := s.Balance(ctx, "alice"); got != 100 {
		t.Fatalf("alice balance = %d, want 100", got)
	}
	if got, _ := s.Balance(ctx, "house"); got != 0 {
		t.Fatalf("house balance = %d, want 0", got)
	}
	events, _ := s.LoadEvents(ctx)
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}

func TestCommitRejectsFrozenRecipient(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Credit(ctx, "house", 50)
	_ = s.SetAccountFrozen(ctx, "bob", true)
	err := s.Commit(ctx, ledger.Batch{Transfers: []ledger.Transfer{{From: "house", To: "bob", Amount: 10}}})
	if !errors.Is(err, ledger.ErrTransferFailed) {
		t.Fatalf("commit err = %v, want transfer_failed", err)
	}
	_ = s.SetAccountFrozen(ctx, "bob", false)
	if err := s.Commit(ctx, ledger.Batch{Transfers: []ledger.Transfer{{From: "house", To: "bob", Amount: 10}}}); err != nil {
		t.Fatalf("commit after unfreeze: %v", err)
	}
	if got, _ := s.Balance(ctx, "bob"); got != 10 {
		t.Fatalf("bob balance = %d, want 10", got)
	}
}

func TestListTransfersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Credit(ctx, "house", 30)
	for _, amount := range []int64{1, 2, 3} {
		if err := s.Commit(ctx, ledger.Batch{Transfers: []ledger.Transfer{{From: "house", To: "bob", Amount: amount}}}); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	got, err := s.ListTransfers(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Amount != 3 || got[1].Amount != 2 {
		t.Fatalf("transfers = %+v", got)
	}
	if got[0].ID == "" {
		t.Fatal("expected transfer id")
	}
}
