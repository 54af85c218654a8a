package store

import (
	"context"
	"errors"
	"fmt"

	"cipher-rooms/internal/ledger"

	"github.com/jackc/pgx/v5/pgtype"
)

func (s *Store) Credit(ctx context.Context, account string, amount int64) error {
	if amount <= 0 {
		return errors.New("amount must be positive")
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO accounts (id, balance) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance,
		    updated_at = now()
	`, account, amount)
	return err
}

func (s *Store) SetAccountFrozen(ctx context.Context, account string, frozen bool) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO accounts (id, frozen) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET frozen = EXCLUDED.frozen,
		    updated_at = now()
	`, account, frozen)
	return err
}

// ListTransfers returns the newest transfers first.
func (s *Store) ListTransfers(ctx context.Context, limit int) ([]ledger.TransferRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, from_account, to_account, amount, kind, session_id, created_at
		FROM transfers
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.TransferRecord{}
	for rows.Next() {
		var (
			r       ledger.TransferRecord
			kind    string
			session pgtype.Int8
		)
		if err := rows.Scan(&r.ID, &r.From, &r.To, &r.Amount, &kind, &session, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		r.Kind = ledger.TransferKind(kind)
		r.SessionID = sessionVal(session)
		out = append(out, r)
	}
	return out, rows.Err()
}
