package rooms

import (
	"time"

	"cipher-rooms/internal/ledger"
)

type CreateRoomRequest struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
	Capacity   int    `json:"capacity"`
	Stake      int64  `json:"stake"`
}

type CreateRoomResponse struct {
	RoomID uint64 `json:"room_id"`
}

type JoinRoomRequest struct {
	Anonymous  bool  `json:"is_anonymous"`
	MaxPrivacy bool  `json:"max_privacy"`
	Payment    int64 `json:"payment"`
}

type SubmitMoveRequest struct {
	Move  int  `json:"move"`
	Valid bool `json:"is_valid"`
}

type RoomsResponse struct {
	Items []RoomItem `json:"items"`
}

type RoomItem struct {
	RoomID     uint64 `json:"room_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Capacity   int    `json:"capacity"`
	Occupancy  int    `json:"occupancy"`
	Difficulty string `json:"difficulty"`
	Stake      int64  `json:"stake"`
	Creator    string `json:"creator"`
	Active     bool   `json:"active"`
}

type RoomDetailResponse struct {
	RoomItem
	CreatedAt    time.Time          `json:"created_at"`
	Participants []string           `json:"participants"`
	MoveCount    int                `json:"move_count"`
	Settlement   SettlementResponse `json:"settlement"`
}

type SettlementResponse struct {
	Finished    bool   `json:"finished"`
	Winner      string `json:"winner,omitempty"`
	WinnerPrize int64  `json:"winner_prize"`
	PlatformFee int64  `json:"platform_fee"`
	Terminated  bool   `json:"terminated"`
}

type StatsResponse struct {
	Principal    string `json:"principal"`
	TotalGames   int    `json:"total_games"`
	GamesWon     int    `json:"games_won"`
	TotalStaked  int64  `json:"total_staked"`
	IsRegistered bool   `json:"is_registered"`
}

// CiphertextResponse carries an opaque value. Ciphertext is the sealed value
// in a form Reveal accepts back.
type CiphertextResponse struct {
	Handle     string   `json:"handle"`
	Kind       string   `json:"kind"`
	Readers    []string `json:"readers"`
	Ciphertext string   `json:"ciphertext"`
}

type RevealRequest struct {
	Ciphertext string `json:"ciphertext"`
}

type RevealResponse struct {
	Handle string `json:"handle"`
	Kind   string `json:"kind"`
	Value  uint64 `json:"value"`
}

type WithdrawResponse struct {
	Amount int64 `json:"amount"`
}

type BalanceResponse struct {
	Account  string `json:"account"`
	Balance  int64  `json:"balance"`
	Holdings int64  `json:"holdings"`
}

type TopupRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

type FreezeRequest struct {
	Frozen bool `json:"frozen"`
}

type TransfersResponse struct {
	Items []ledger.TransferRecord `json:"items"`
	Limit int                     `json:"limit"`
}
