package ledger

import (
	"slices"
	"time"

	"cipher-rooms/internal/confidential"
)

const (
	MinCapacity = 2
	MaxCapacity = 10

	// Platform fee is prizePool / FeeDivisor, truncated.
	FeeDivisor = 100
)

type Session struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Capacity     int       `json:"capacity"`
	Occupancy    int       `json:"occupancy"`
	Difficulty   string    `json:"difficulty"`
	Stake        int64     `json:"stake"`
	Creator      string    `json:"creator"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	Participants []string  `json:"participants"`

	joined  map[string]struct{}
	privacy map[string]PrivacyFlags
}

// PrivacyFlags are readable only by the participant and the administrator.
type PrivacyFlags struct {
	Anonymous  confidential.Ciphertext `json:"anonymous"`
	MaxPrivacy confidential.Ciphertext `json:"max_privacy"`
}

func (s *Session) hasJoined(principal string) bool {
	_, ok := s.joined[principal]
	return ok
}

func (s *Session) full() bool {
	return s.Occupancy >= s.Capacity
}

func (s *Session) clone() Session {
	out := *s
	out.Participants = slices.Clone(s.Participants)
	out.joined = nil
	out.privacy = nil
	return out
}

func (s *Session) summary() SessionSummary {
	return SessionSummary{
		ID:         s.ID,
		Name:       s.Name,
		Category:   s.Category,
		Capacity:   s.Capacity,
		Occupancy:  s.Occupancy,
		Difficulty: s.Difficulty,
		Stake:      s.Stake,
		Creator:    s.Creator,
		Active:     s.Active,
	}
}

type SessionSummary struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Capacity   int    `json:"capacity"`
	Occupancy  int    `json:"occupancy"`
	Difficulty string `json:"difficulty"`
	Stake      int64  `json:"stake"`
	Creator    string `json:"creator"`
	Active     bool   `json:"active"`
}

// ParticipantRecord holds cross-session statistics for one principal.
type ParticipantRecord struct {
	TotalGames   int   `json:"total_games"`
	GamesWon     int   `json:"games_won"`
	TotalStaked  int64 `json:"total_staked"`
	IsRegistered bool  `json:"is_registered"`
}

type Move struct {
	SessionID   uint64                  `json:"session_id"`
	Participant string                  `json:"participant"`
	Move        confidential.Ciphertext `json:"move"`
	Valid       confidential.Ciphertext `json:"valid"`
	SubmittedAt time.Time               `json:"submitted_at"`
}

// Settlement is written once, when a session is evaluated or terminated.
type Settlement struct {
	Finished    bool   `json:"finished"`
	Winner      string `json:"winner,omitempty"`
	WinnerPrize int64  `json:"winner_prize"`
	PlatformFee int64  `json:"platform_fee"`
	Terminated  bool   `json:"terminated"`
}

type CreateParams struct {
	Name       string
	Category   string
	Difficulty string
	Capacity   int
	Stake      int64
	Creator    string
}

type JoinParams struct {
	SessionID  uint64
	Caller     string
	Anonymous  bool
	MaxPrivacy bool
	Payment    int64
}

type MoveParams struct {
	SessionID uint64
	Caller    string
	Move      uint8
	Valid     bool
}
