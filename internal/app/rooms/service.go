// Package rooms adapts the session ledger to the request and response shapes
// shared by the HTTP, WebSocket and MCP surfaces.
package rooms

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"cipher-rooms/internal/confidential"
	"cipher-rooms/internal/ledger"
)

// Store is the account side of a ledger backend.
type Store interface {
	ledger.Store
	ledger.Treasury
}

type Service struct {
	ledger *ledger.Ledger
	cipher confidential.Cipher
	store  Store
}

const transfersMaxRows = 200

func NewService(l *ledger.Ledger, c confidential.Cipher, st Store) *Service {
	return &Service{ledger: l, cipher: c, store: st}
}

func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

func (s *Service) Rooms() *RoomsResponse {
	items := s.ledger.ActiveSessions()
	out := make([]RoomItem, 0, len(items))
	for _, it := range items {
		out = append(out, roomItem(it))
	}
	return &RoomsResponse{Items: out}
}

func (s *Service) Room(id uint64) (*RoomDetailResponse, error) {
	sess, err := s.ledger.Session(id)
	if err != nil {
		return nil, err
	}
	stl, err := s.ledger.Settlement(id)
	if err != nil {
		return nil, err
	}
	return &RoomDetailResponse{
		RoomItem: roomItem(ledger.SessionSummary{
			ID:         sess.ID,
			Name:       sess.Name,
			Category:   sess.Category,
			Capacity:   sess.Capacity,
			Occupancy:  sess.Occupancy,
			Difficulty: sess.Difficulty,
			Stake:      sess.Stake,
			Creator:    sess.Creator,
			Active:     sess.Active,
		}),
		CreatedAt:    sess.CreatedAt,
		Participants: sess.Participants,
		MoveCount:    s.ledger.MoveCount(id),
		Settlement:   SettlementResponse(stl),
	}, nil
}

func (s *Service) CreateRoom(ctx context.Context, caller string, req CreateRoomRequest) (*CreateRoomResponse, error) {
	id, err := s.ledger.CreateSession(ctx, ledger.CreateParams{
		Name:       req.Name,
		Category:   req.Category,
		Difficulty: req.Difficulty,
		Capacity:   req.Capacity,
		Stake:      req.Stake,
		Creator:    caller,
	})
	if err != nil {
		return nil, err
	}
	return &CreateRoomResponse{RoomID: id}, nil
}

func (s *Service) JoinRoom(ctx context.Context, caller string, id uint64, req JoinRoomRequest) error {
	return s.ledger.JoinSession(ctx, ledger.JoinParams{
		SessionID:  id,
		Caller:     caller,
		Anonymous:  req.Anonymous,
		MaxPrivacy: req.MaxPrivacy,
		Payment:    req.Payment,
	})
}

func (s *Service) SubmitMove(ctx context.Context, caller string, id uint64, req SubmitMoveRequest) error {
	if req.Move < 0 || req.Move > 255 {
		return ledger.ErrInvalidParameters
	}
	return s.ledger.SubmitMove(ctx, ledger.MoveParams{
		SessionID: id,
		Caller:    caller,
		Move:      uint8(req.Move),
		Valid:     req.Valid,
	})
}

func (s *Service) Stats(principal string) (*StatsResponse, error) {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return nil, ledger.ErrInvalidParameters
	}
	rec := s.ledger.ParticipantStats(principal)
	return &StatsResponse{
		Principal:    principal,
		TotalGames:   rec.TotalGames,
		GamesWon:     rec.GamesWon,
		TotalStaked:  rec.TotalStaked,
		IsRegistered: rec.IsRegistered,
	}, nil
}

func (s *Service) Anonymity(id uint64, participant, caller string) (*CiphertextResponse, error) {
	ct, err := s.ledger.ParticipantAnonymity(id, participant, caller)
	if err != nil {
		return nil, err
	}
	return ciphertextResponse(ct)
}

func (s *Service) MaxPrivacy(id uint64, participant, caller string) (*CiphertextResponse, error) {
	ct, err := s.ledger.ParticipantMaxPrivacy(id, participant, caller)
	if err != nil {
		return nil, err
	}
	return ciphertextResponse(ct)
}

// Reveal decrypts a ciphertext previously handed out by this service. The
// vault refuses callers outside the ciphertext's reader list.
func (s *Service) Reveal(caller string, req RevealRequest) (*RevealResponse, error) {
	ct, err := DecodeCiphertext(req.Ciphertext)
	if err != nil {
		return nil, err
	}
	v, err := s.cipher.Decrypt(ct, caller)
	if err != nil {
		if errors.Is(err, confidential.ErrUnauthorized) {
			return nil, ledger.ErrUnauthorized
		}
		return nil, ErrInvalidCiphertext
	}
	return &RevealResponse{Handle: ct.Handle, Kind: string(ct.Kind), Value: v}, nil
}

func (s *Service) EmergencyEnd(ctx context.Context, caller string, id uint64) error {
	return s.ledger.EmergencyEndSession(ctx, id, caller)
}

func (s *Service) WithdrawFees(ctx context.Context, caller string) (*WithdrawResponse, error) {
	amount, err := s.ledger.WithdrawFees(ctx, caller)
	if err != nil {
		return nil, err
	}
	return &WithdrawResponse{Amount: amount}, nil
}

func (s *Service) Balance(ctx context.Context, caller, account string) (*BalanceResponse, error) {
	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, ledger.ErrInvalidParameters
	}
	bal, err := s.store.Balance(ctx, account)
	if err != nil {
		return nil, err
	}
	resp := &BalanceResponse{Account: account, Balance: bal}
	if account == s.ledger.House() {
		resp.Holdings = s.ledger.Holdings()
	}
	return resp, nil
}

func (s *Service) Topup(ctx context.Context, caller string, req TopupRequest) (*BalanceResponse, error) {
	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}
	account := strings.TrimSpace(req.Account)
	if account == "" || req.Amount <= 0 || account == s.ledger.House() {
		return nil, ledger.ErrInvalidParameters
	}
	if err := s.store.Credit(ctx, account, req.Amount); err != nil {
		return nil, err
	}
	return s.Balance(ctx, caller, account)
}

func (s *Service) SetFrozen(ctx context.Context, caller, account string, req FreezeRequest) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return ledger.ErrInvalidParameters
	}
	return s.store.SetAccountFrozen(ctx, account, req.Frozen)
}

func (s *Service) Transfers(ctx context.Context, caller string, limit int) (*TransfersResponse, error) {
	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > transfersMaxRows {
		limit = 50
	}
	items, err := s.store.ListTransfers(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &TransfersResponse{Items: items, Limit: limit}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) requireAdmin(caller string) error {
	if caller == "" || caller != s.ledger.Admin() {
		return ledger.ErrUnauthorized
	}
	return nil
}

func roomItem(it ledger.SessionSummary) RoomItem {
	return RoomItem{
		RoomID:     it.ID,
		Name:       it.Name,
		Category:   it.Category,
		Capacity:   it.Capacity,
		Occupancy:  it.Occupancy,
		Difficulty: it.Difficulty,
		Stake:      it.Stake,
		Creator:    it.Creator,
		Active:     it.Active,
	}
}

func ciphertextResponse(ct confidential.Ciphertext) (*CiphertextResponse, error) {
	raw, err := json.Marshal(ct)
	if err != nil {
		return nil, err
	}
	return &CiphertextResponse{
		Handle:     ct.Handle,
		Kind:       string(ct.Kind),
		Readers:    ct.Readers,
		Ciphertext: base64.RawURLEncoding.EncodeToString(raw),
	}, nil
}

func DecodeCiphertext(s string) (confidential.Ciphertext, error) {
	var ct confidential.Ciphertext
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return ct, ErrInvalidCiphertext
	}
	if err := json.Unmarshal(raw, &ct); err != nil || ct.IsZero() {
		return confidential.Ciphertext{}, ErrInvalidCiphertext
	}
	return ct, nil
}
