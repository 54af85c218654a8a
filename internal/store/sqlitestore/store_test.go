package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cipher-rooms/internal/ledger"
	"cipher-rooms/internal/store/sqlitestore/migrations"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestCommitPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	st, path := openTestStore(t)

	if err := st.Credit(ctx, "alice", 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	err := st.Commit(ctx, ledger.Batch{
		Events: []ledger.Event{
			{Seq: 1, Type: ledger.EventSessionCreated, SessionID: 1, Principal: "alice", At: at,
				Created: &ledger.CreatedData{Name: "r", Capacity: 2, Stake: 40}},
			{Seq: 2, Type: ledger.EventPlayerJoined, SessionID: 1, Principal: "alice", At: at,
				Joined: &ledger.JoinedData{Occupancy: 1, Payment: 40}},
		},
		Transfers: []ledger.Transfer{{From: "alice", To: "house", Amount: 40, Kind: ledger.TransferStakeDeposit, SessionID: 1}},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if bal, _ := reopened.Balance(ctx, "alice"); bal != 60 {
		t.Fatalf("alice balance = %d, want 60", bal)
	}
	if bal, _ := reopened.Balance(ctx, "house"); bal != 40 {
		t.Fatalf("house balance = %d, want 40", bal)
	}
	events, err := reopened.LoadEvents(ctx)
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 2 || events[0].Created == nil || events[0].Created.Stake != 40 || !events[1].At.Equal(at) {
		t.Fatalf("events = %+v", events)
	}
	transfers, err := reopened.ListTransfers(ctx, 0)
	if err != nil {
		t.Fatalf("list transfers: %v", err)
	}
	if len(transfers) != 1 || transfers[0].SessionID != 1 || transfers[0].Kind != ledger.TransferStakeDeposit {
		t.Fatalf("transfers = %+v", transfers)
	}
}

func TestCommitRollsBackOnOverdraft(t *testing.T) {
	ctx := context.Background()
	st, _ := openTestStore(t)

	_ = st.Credit(ctx, "house", 10)
	err := st.Commit(ctx, ledger.Batch{
		Events: []ledger.Event{{Seq: 1, Type: ledger.EventFeesWithdrawn, Withdrawn: &ledger.WithdrawnData{Amount: 11}}},
		Transfers: []ledger.Transfer{
			{From: "house", To: "admin", Amount: 5, Kind: ledger.TransferFeeWithdrawal},
			{From: "house", To: "admin", Amount: 6, Kind: ledger.TransferFeeWithdrawal},
		},
	})
	if !errors.Is(err, ledger.ErrTransferFailed) {
		t.Fatalf("commit err = %v, want transfer_failed", err)
	}
	if bal, _ := st.Balance(ctx, "house"); bal != 10 {
		t.Fatalf("house balance = %d, want 10", bal)
	}
	if bal, _ := st.Balance(ctx, "admin"); bal != 0 {
		t.Fatalf("admin balance = %d, want 0", bal)
	}
	if events, _ := st.LoadEvents(ctx); len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}

func TestFrozenRecipientRejected(t *testing.T) {
	ctx := context.Background()
	st, _ := openTestStore(t)
	_ = st.Credit(ctx, "house", 10)
	if err := st.SetAccountFrozen(ctx, "bob", true); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	err := st.Commit(ctx, ledger.Batch{Transfers: []ledger.Transfer{{From: "house", To: "bob", Amount: 1}}})
	if !errors.Is(err, ledger.ErrTransferFailed) {
		t.Fatalf("commit err = %v, want transfer_failed", err)
	}
}

func TestDuplicateSequenceConflicts(t *testing.T) {
	ctx := context.Background()
	st, _ := openTestStore(t)
	ev := ledger.Event{Seq: 1, Type: ledger.EventSessionCreated, SessionID: 1, Created: &ledger.CreatedData{Name: "r"}}
	if err := st.Commit(ctx, ledger.Batch{Events: []ledger.Event{ev}}); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := st.Commit(ctx, ledger.Batch{Events: []ledger.Event{ev}}); !errors.Is(err, ErrEventConflict) {
		t.Fatalf("second commit err = %v, want conflict", err)
	}
}

func TestMigrationsApplyOnce(t *testing.T) {
	ctx := context.Background()
	st, _ := openTestStore(t)
	if err := applyMigrations(ctx, st.sqlDB, migrations.FS); err != nil {
		t.Fatalf("reapply: %v", err)
	}
	var n int
	if err := st.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("applied migrations = %d, want 1", n)
	}
}

func TestExtractUp(t *testing.T) {
	got := extractUp("-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n")
	if got != "\nCREATE TABLE a (x INT);\n" {
		t.Fatalf("extractUp = %q", got)
	}
	if got := extractUp("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("extractUp without markers = %q", got)
	}
}
