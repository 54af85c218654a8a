package ledger_test

import (
	"context"
	"testing"

	"cipher-rooms/internal/confidential"
	"cipher-rooms/internal/ledger"
	"cipher-rooms/internal/testutil"
)

func TestPostgresStoreRestoresSettledSession(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for _, p := range []string{"A", "B"} {
		if err := st.Credit(ctx, p, 300); err != nil {
			t.Fatalf("credit %s: %v", p, err)
		}
	}
	vault, err := confidential.NewVault(nil)
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	l, err := ledger.New(ctx, testConfig(), st, vault)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	id, err := l.CreateSession(ctx, ledger.CreateParams{Name: "pg", Capacity: 2, Stake: 100, Creator: "A"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, p := range []string{"A", "B"} {
		if err := l.JoinSession(ctx, ledger.JoinParams{SessionID: id, Caller: p, Payment: 100}); err != nil {
			t.Fatalf("join %s: %v", p, err)
		}
	}
	for _, p := range []string{"A", "B"} {
		if err := l.SubmitMove(ctx, ledger.MoveParams{SessionID: id, Caller: p, Move: 1, Valid: true}); err != nil {
			t.Fatalf("move %s: %v", p, err)
		}
	}

	restored, err := ledger.New(ctx, testConfig(), st, vault)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	stl, err := restored.Settlement(id)
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}
	if stl.Winner != "A" || stl.WinnerPrize != 198 {
		t.Fatalf("settlement = %+v", stl)
	}
	if bal, _ := st.Balance(ctx, "A"); bal != 398 {
		t.Fatalf("A balance = %d, want 398", bal)
	}
	if got := restored.Holdings(); got != 2 {
		t.Fatalf("holdings = %d, want 2", got)
	}
}
