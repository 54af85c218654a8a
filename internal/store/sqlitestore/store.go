// Package sqlitestore is a single-file ledger.Store for single-node
// deployments, with the same schema and commit semantics as the postgres
// store.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cipher-rooms/internal/ids"
	"cipher-rooms/internal/ledger"
	"cipher-rooms/internal/store/sqlitestore/migrations"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrEventConflict means another writer already committed an event with the
// same sequence number.
var ErrEventConflict = errors.New("ledger event sequence conflict")

type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ ledger.Store = (*Store)(nil)
var _ ledger.Treasury = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database file and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *Store) Commit(ctx context.Context, b ledger.Batch) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := toMillis(s.now())
	if len(b.Transfers) > 0 {
		if err := commitTransfers(ctx, tx, b.Transfers, now); err != nil {
			return err
		}
	}
	for _, ev := range b.Events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %d: %w", ev.Seq, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_events (seq, type, session_id, principal, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			ev.Seq, string(ev.Type), int64(ev.SessionID), ev.Principal, string(payload), toMillis(ev.At),
		); err != nil {
			if isPrimaryKeyViolation(err) {
				return fmt.Errorf("%w: seq %d", ErrEventConflict, ev.Seq)
			}
			return fmt.Errorf("insert event %d: %w", ev.Seq, err)
		}
	}
	return tx.Commit()
}

func commitTransfers(ctx context.Context, tx *sql.Tx, transfers []ledger.Transfer, now int64) error {
	accounts := ledger.Accounts(transfers)
	balances := map[string]int64{}
	frozen := map[string]bool{}
	for _, id := range accounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO accounts (id, balance, frozen, updated_at) VALUES (?, 0, 0, ?)`, id, now,
		); err != nil {
			return fmt.Errorf("ensure account %s: %w", id, err)
		}
		var (
			bal int64
			frz bool
		)
		if err := tx.QueryRowContext(ctx, `SELECT balance, frozen FROM accounts WHERE id = ?`, id).Scan(&bal, &frz); err != nil {
			return fmt.Errorf("read account %s: %w", id, err)
		}
		balances[id] = bal
		frozen[id] = frz
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
		if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`, bal, now, id); err != nil {
			return fmt.Errorf("update account %s: %w", id, err)
		}
	}
	for _, t := range transfers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transfers (id, from_account, to_account, amount, kind, session_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ids.New(), t.From, t.To, t.Amount, string(t.Kind), int64(t.SessionID), now,
		); err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
	}
	return nil
}

func (s *Store) Balance(ctx context.Context, account string) (int64, error) {
	var bal int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, account).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return bal, err
}

func (s *Store) LoadEvents(ctx context.Context) ([]ledger.Event, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT payload FROM ledger_events ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.Event{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev ledger.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) Credit(ctx context.Context, account string, amount int64) error {
	if amount <= 0 {
		return errors.New("amount must be positive")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO accounts (id, balance, frozen, updated_at) VALUES (?, ?, 0, ?)
		ON CONFLICT (id) DO UPDATE
		SET balance = balance + excluded.balance,
		    updated_at = excluded.updated_at
	`, account, amount, toMillis(s.now()))
	return err
}

func (s *Store) SetAccountFrozen(ctx context.Context, account string, frozen bool) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO accounts (id, balance, frozen, updated_at) VALUES (?, 0, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET frozen = excluded.frozen,
		    updated_at = excluded.updated_at
	`, account, frozen, toMillis(s.now()))
	return err
}

// ListTransfers returns the newest transfers first.
func (s *Store) ListTransfers(ctx context.Context, limit int) ([]ledger.TransferRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, from_account, to_account, amount, kind, session_id, created_at
		FROM transfers
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.TransferRecord{}
	for rows.Next() {
		var (
			r         ledger.TransferRecord
			kind      string
			sessionID int64
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.From, &r.To, &r.Amount, &kind, &sessionID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		r.Kind = ledger.TransferKind(kind)
		r.SessionID = uint64(sessionID)
		r.CreatedAt = fromMillis(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
