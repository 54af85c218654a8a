package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cipher-rooms/internal/ids"
	"cipher-rooms/internal/ledger"

	"github.com/jackc/pgx/v5"
)

var _ ledger.Store = (*Store)(nil)
var _ ledger.Treasury = (*Store)(nil)

// Commit locks every touched account row, plans the transfers against the
// locked balances, and writes balances, transfer rows and event rows in one
// transaction.
func (s *Store) Commit(ctx context.Context, b ledger.Batch) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if len(b.Transfers) > 0 {
		if err := commitTransfers(ctx, tx, b.Transfers); err != nil {
			return err
		}
	}
	for _, ev := range b.Events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %d: %w", ev.Seq, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO ledger_events (seq, type, session_id, principal, payload, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			ev.Seq, string(ev.Type), sessionParam(ev.SessionID), ev.Principal, payload, ev.At,
		); err != nil {
			return fmt.Errorf("insert event %d: %w", ev.Seq, err)
		}
	}
	return tx.Commit(ctx)
}

func commitTransfers(ctx context.Context, tx pgx.Tx, transfers []ledger.Transfer) error {
	accounts := ledger.Accounts(transfers)
	if _, err := tx.Exec(ctx,
		`INSERT INTO accounts (id) SELECT unnest($1::text[]) ON CONFLICT (id) DO NOTHING`, accounts,
	); err != nil {
		return fmt.Errorf("ensure accounts: %w", err)
	}
	rows, err := tx.Query(ctx,
		`SELECT id, balance, frozen FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, accounts,
	)
	if err != nil {
		return err
	}
	balances := map[string]int64{}
	frozen := map[string]bool{}
	for rows.Next() {
		var (
			id  string
			bal int64
			frz bool
		)
		if err := rows.Scan(&id, &bal, &frz); err != nil {
			rows.Close()
			return err
		}
		balances[id] = bal
		frozen[id] = frz
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	next, err := ledger.PlanBalances(transfers,
		func(a string) int64 { return balances[a] },
		func(a string) bool { return frozen[a] },
	)
	if err != nil {
		return err
	}
	for _, id := range accounts {
		bal, ok := next[id]
		if !ok || bal == balances[id] {
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $2, updated_at = now() WHERE id = $1`, id, bal); err != nil {
			return fmt.Errorf("update account %s: %w", id, err)
		}
	}
	for _, t := range transfers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO transfers (id, from_account, to_account, amount, kind, session_id) VALUES ($1,$2,$3,$4,$5,$6)`,
			ids.New(), t.From, t.To, t.Amount, string(t.Kind), sessionParam(t.SessionID),
		); err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
	}
	return nil
}

// Balance reports zero for accounts that were never touched.
func (s *Store) Balance(ctx context.Context, account string) (int64, error) {
	var bal int64
	err := mapNotFound(s.Pool.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1`, account).Scan(&bal))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return bal, err
}

func (s *Store) LoadEvents(ctx context.Context) ([]ledger.Event, error) {
	rows, err := s.Pool.Query(ctx, `SELECT payload FROM ledger_events ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.Event{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev ledger.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
