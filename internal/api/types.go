package api

import (
	"encoding/json"
	"time"
)

// RoomStatus is the lifecycle state of a meeting room.
type RoomStatus string

const (
	RoomWaiting RoomStatus = "waiting"
	RoomActive  RoomStatus = "active"
	RoomEnded   RoomStatus = "ended"
)

// ParticipantStatus is the admission state of a participant record.
type ParticipantStatus string

const (
	StatusNone     ParticipantStatus = ""
	StatusPending  ParticipantStatus = "pending"
	StatusApproved ParticipantStatus = "approved"
	StatusRejected ParticipantStatus = "rejected"
	StatusLeft     ParticipantStatus = "left"
)

// Room is the server-owned meeting room snapshot. The client holds a
// read-mostly cached copy, refreshed on each poll or notification.
type Room struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	HostUsername    string        `json:"host_username"`
	Status          RoomStatus    `json:"status"`
	MaxParticipants int           `json:"max_participants"`
	Participants    []Participant `json:"participants,omitempty"`

	// ParticipantStatus is the requesting user's own admission state.
	ParticipantStatus ParticipantStatus `json:"participant_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Participant is one user's attachment to a room.
type Participant struct {
	ID        int64             `json:"id"`
	Username  string            `json:"username"`
	Status    ParticipantStatus `json:"status"`
	JoinedAt  *time.Time        `json:"joined_at,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// CreateRoomParams are the fields for creating a meeting room.
type CreateRoomParams struct {
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	MaxParticipants int    `json:"max_participants,omitempty"`
	Password        string `json:"password,omitempty"`
}

// SignalRecord is a persisted signal message returned by the polling
// fallback endpoint. Data is opaque to the API layer.
type SignalRecord struct {
	ID          string          `json:"id"`
	MessageType string          `json:"message_type"`
	Sender      string          `json:"sender_username"`
	Receiver    string          `json:"receiver_username,omitempty"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ChatMessage is a room-scoped text message.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender_username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RaisedHand is one user's active raised-hand record.
type RaisedHand struct {
	Username string    `json:"username"`
	RaisedAt time.Time `json:"raised_at"`
}
