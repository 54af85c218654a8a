package ledger

import (
	"time"

	"cipher-rooms/internal/confidential"
)

type EventType string

const (
	EventSessionCreated    EventType = "session_created"
	EventPlayerJoined      EventType = "player_joined"
	EventSessionStarted    EventType = "session_started"
	EventMoveSubmitted     EventType = "move_submitted"
	EventSessionFinished   EventType = "session_finished"
	EventSessionTerminated EventType = "session_terminated"
	EventFeesWithdrawn     EventType = "fees_withdrawn"
)

// Event is one committed state transition. Replaying the full event log
// through apply rebuilds the ledger.
type Event struct {
	Seq       int64     `json:"seq"`
	Type      EventType `json:"type"`
	SessionID uint64    `json:"session_id,omitempty"`
	Principal string    `json:"principal,omitempty"`
	At        time.Time `json:"at"`

	Created    *CreatedData    `json:"created,omitempty"`
	Joined     *JoinedData     `json:"joined,omitempty"`
	Started    *StartedData    `json:"started,omitempty"`
	Move       *MoveData       `json:"move,omitempty"`
	Finished   *FinishedData   `json:"finished,omitempty"`
	Terminated *TerminatedData `json:"terminated,omitempty"`
	Withdrawn  *WithdrawnData  `json:"withdrawn,omitempty"`
}

type CreatedData struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	Capacity   int    `json:"capacity"`
	Difficulty string `json:"difficulty"`
	Stake      int64  `json:"stake"`
}

type JoinedData struct {
	Occupancy  int                     `json:"occupancy"`
	Payment    int64                   `json:"payment"`
	Anonymous  confidential.Ciphertext `json:"anonymous"`
	MaxPrivacy confidential.Ciphertext `json:"max_privacy"`
}

type StartedData struct {
	Occupancy    int      `json:"occupancy"`
	Participants []string `json:"participants"`
}

type MoveData struct {
	Move  confidential.Ciphertext `json:"move"`
	Valid confidential.Ciphertext `json:"valid"`
}

type FinishedData struct {
	Winner      string `json:"winner"`
	PrizePool   int64  `json:"prize_pool"`
	PlatformFee int64  `json:"platform_fee"`
	WinnerPrize int64  `json:"winner_prize"`
}

type TerminatedData struct {
	Refund       int64    `json:"refund"`
	Participants []string `json:"participants"`
}

type WithdrawnData struct {
	Amount int64  `json:"amount"`
	To     string `json:"to"`
}
