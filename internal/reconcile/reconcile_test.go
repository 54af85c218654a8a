package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeLedger struct {
	balance  int64
	holdings int64
	err      error
}

func (f fakeLedger) House() string { return "house" }

func (f fakeLedger) HouseSnapshot(context.Context) (int64, int64, error) {
	return f.balance, f.holdings, f.err
}

func TestCheckReportsDrift(t *testing.T) {
	cases := []struct {
		name      string
		balance   int64
		holdings  int64
		wantDrift int64
	}{
		{"balanced", 300, 300, 0},
		{"underfunded", 100, 300, -200},
		{"surplus", 350, 300, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := New(fakeLedger{balance: tc.balance, holdings: tc.holdings})
			rep, err := r.Check(context.Background())
			if err != nil {
				t.Fatalf("check: %v", err)
			}
			if rep.Drift != tc.wantDrift {
				t.Fatalf("drift = %d, want %d", rep.Drift, tc.wantDrift)
			}
			last, ok := r.Last()
			if !ok || last.Drift != tc.wantDrift {
				t.Fatalf("last = %+v, %v", last, ok)
			}
		})
	}
}

func TestCheckPropagatesStoreError(t *testing.T) {
	r := New(fakeLedger{err: errors.New("down")})
	if _, err := r.Check(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := r.Last(); ok {
		t.Fatal("failed check recorded a report")
	}
}

func TestStartRunsScheduledChecks(t *testing.T) {
	r := New(fakeLedger{balance: 5, holdings: 5})
	if err := r.Start(20 * time.Millisecond); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()
	if err := r.Start(time.Second); err == nil {
		t.Fatal("second start should fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := r.Last(); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scheduled check never ran")
}
