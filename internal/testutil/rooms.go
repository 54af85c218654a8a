package testutil

import (
	"bytes"
	"context"
	"testing"
	"time"

	"cipher-rooms/internal/app/rooms"
	"cipher-rooms/internal/auth"
	"cipher-rooms/internal/confidential"
	"cipher-rooms/internal/ledger"
	"cipher-rooms/internal/store/memstore"
)

const (
	Admin = "admin"
	House = "house"
)

// Rooms is an in-memory ledger stack for handler tests.
type Rooms struct {
	Store   *memstore.Store
	Vault   *confidential.Vault
	Ledger  *ledger.Ledger
	Service *rooms.Service
}

// NewRooms builds a ledger over a memory store and credits each funded
// principal with 1000.
func NewRooms(t *testing.T, opts []ledger.Option, funded ...string) *Rooms {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	for _, p := range funded {
		if err := st.Credit(ctx, p, 1000); err != nil {
			t.Fatalf("credit %s: %v", p, err)
		}
	}
	vault, err := confidential.NewVault(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	cfg := ledger.Config{Admin: Admin, House: House, MinStake: 1, MaxStake: 1000}
	l, err := ledger.New(ctx, cfg, st, vault, opts...)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return &Rooms{Store: st, Vault: vault, Ledger: l, Service: rooms.NewService(l, vault, st)}
}

// NewIssuer returns a token issuer with a fixed test secret.
func NewIssuer(t *testing.T) *auth.Issuer {
	t.Helper()
	iss, err := auth.NewIssuer("test-secret", "cipher-rooms")
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	return iss
}

func Token(t *testing.T, iss *auth.Issuer, principal string) string {
	t.Helper()
	tok, err := iss.Issue(principal, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}
