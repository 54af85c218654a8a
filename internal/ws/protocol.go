package ws

import "cipher-rooms/internal/stream"

const protocolVersion = "1.0"

const maxRequestIDLen = 64

type JoinMessage struct {
	Type       string `json:"type"`
	RequestID  string `json:"request_id,omitempty"`
	RoomID     uint64 `json:"room_id"`
	Anonymous  bool   `json:"is_anonymous"`
	MaxPrivacy bool   `json:"max_privacy"`
	Payment    int64  `json:"payment"`
}

type MoveMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	RoomID    uint64 `json:"room_id"`
	Move      int    `json:"move"`
	Valid     bool   `json:"is_valid"`
}

type Result struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Action          string `json:"action"`
	RoomID          uint64 `json:"room_id,omitempty"`
	Ok              bool   `json:"ok"`
	Error           string `json:"error,omitempty"`
}

type EventMessage struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	Event           stream.StreamEvent `json:"event"`
}
