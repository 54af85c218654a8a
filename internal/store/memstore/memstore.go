// Package memstore is an in-process ledger.Store for tests and single-run
// deployments. Nothing survives a restart.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cipher-rooms/internal/ids"
	"cipher-rooms/internal/ledger"
)

type Store struct {
	mu        sync.Mutex
	balances  map[string]int64
	frozen    map[string]bool
	transfers []ledger.TransferRecord
	events    []ledger.Event
	now       func() time.Time
}

func New() *Store {
	return &Store{
		balances: map[string]int64{},
		frozen:   map[string]bool{},
		now:      time.Now,
	}
}

// Commit plans every transfer before touching any balance, so a rejected
// batch leaves the store unchanged.
func (s *Store) Commit(ctx context.Context, b ledger.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := ledger.PlanBalances(b.Transfers,
		func(account string) int64 { return s.balances[account] },
		func(account string) bool { return s.frozen[account] },
	)
	if err != nil {
		return err
	}
	for account, v := range next {
		s.balances[account] = v
	}
	now := s.now()
	for _, t := range b.Transfers {
		s.transfers = append(s.transfers, ledger.TransferRecord{ID: ids.New(), Transfer: t, CreatedAt: now})
	}
	s.events = append(s.events, b.Events...)
	return nil
}

func (s *Store) Balance(_ context.Context, account string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[account], nil
}

func (s *Store) LoadEvents(_ context.Context) ([]ledger.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Event(nil), s.events...), nil
}

func (s *Store) Credit(_ context.Context, account string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[account] += amount
	return nil
}

func (s *Store) SetAccountFrozen(_ context.Context, account string, frozen bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if frozen {
		s.frozen[account] = true
	} else {
		delete(s.frozen, account)
	}
	return nil
}

// ListTransfers returns the newest transfers first.
func (s *Store) ListTransfers(_ context.Context, limit int) ([]ledger.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.TransferRecord, 0, len(s.transfers))
	for i := len(s.transfers) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.transfers[i])
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
