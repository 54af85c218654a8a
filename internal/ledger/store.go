package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"
)

type TransferKind string

const (
	TransferStakeDeposit  TransferKind = "stake_deposit"
	TransferPrizePayout   TransferKind = "prize_payout"
	TransferStakeRefund   TransferKind = "stake_refund"
	TransferFeeWithdrawal TransferKind = "fee_withdrawal"
)

type Transfer struct {
	From      string       `json:"from"`
	To        string       `json:"to"`
	Amount    int64        `json:"amount"`
	Kind      TransferKind `json:"kind"`
	SessionID uint64       `json:"session_id,omitempty"`
}

// Batch is the unit of atomic commit: all transfers and events land together
// or none do.
type Batch struct {
	Events    []Event
	Transfers []Transfer
}

// Store moves value between accounts and persists the event log. Commit must
// return an error wrapping ErrTransferFailed when a payer lacks funds or a
// recipient rejects the transfer, leaving nothing applied.
type Store interface {
	Commit(ctx context.Context, b Batch) error
	Balance(ctx context.Context, account string) (int64, error)
	LoadEvents(ctx context.Context) ([]Event, error)
}

// Publisher receives every committed event after it has been applied.
type Publisher interface {
	Publish(ev Event)
}

// TransferRecord is a committed transfer as the store recorded it.
type TransferRecord struct {
	ID string `json:"id"`
	Transfer
	CreatedAt time.Time `json:"created_at"`
}

// Treasury is the operator surface the stores offer beyond Store.
type Treasury interface {
	Credit(ctx context.Context, account string, amount int64) error
	SetAccountFrozen(ctx context.Context, account string, frozen bool) error
	ListTransfers(ctx context.Context, limit int) ([]TransferRecord, error)
	Ping(ctx context.Context) error
}

// PlanBalances runs transfers in order against the given balances and
// returns the resulting balance of every touched account. It fails with
// ErrTransferFailed on the first overdraft or frozen recipient.
func PlanBalances(transfers []Transfer, balance func(string) int64, frozen func(string) bool) (map[string]int64, error) {
	next := map[string]int64{}
	current := func(account string) int64 {
		if v, ok := next[account]; ok {
			return v
		}
		return balance(account)
	}
	for _, t := range transfers {
		if t.Amount < 0 {
			return nil, fmt.Errorf("negative transfer amount %d", t.Amount)
		}
		if frozen(t.To) {
			return nil, fmt.Errorf("%w: recipient %s is frozen", ErrTransferFailed, t.To)
		}
		if have := current(t.From); have < t.Amount {
			return nil, fmt.Errorf("%w: %s has %d, needs %d", ErrTransferFailed, t.From, have, t.Amount)
		}
		next[t.From] = current(t.From) - t.Amount
		next[t.To] = current(t.To) + t.Amount
	}
	return next, nil
}

// Accounts lists the distinct accounts transfers touch, sorted so row locks
// are always taken in the same order.
func Accounts(transfers []Transfer) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(transfers)*2)
	for _, t := range transfers {
		for _, a := range []string{t.From, t.To} {
			if _, ok := seen[a]; !ok {
				seen[a] = struct{}{}
				out = append(out, a)
			}
		}
	}
	sort.Strings(out)
	return out
}
