package signaling

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the application-level message relayed between the meeting's
// participants and the server. An empty To means broadcast to the room.
// Envelopes are immutable and delivered at least once; receivers must
// de-duplicate by ID.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// Message type constants.
const (
	TypePing = "ping"

	TypeJoinReady    = "join-ready"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"

	TypeApproval    = "approval_notification"
	TypeRejection   = "rejection_notification"
	TypeJoinRequest = "join_request_notification"
	TypeUserJoined  = "user_joined"
	TypeUserLeft    = "user_left"
	TypeMeetingEnd  = "meeting_ended"

	TypeChatMessage      = "chat_message"
	TypeReaction         = "reaction_notification"
	TypeHandRaise        = "hand_raise_notification"
	TypeScreenShareStart = "screen_share_start"
	TypeScreenShareStop  = "screen_share_stop"
)

// SDPPayload carries an offer or answer session description.
type SDPPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// CandidatePayload carries one ICE candidate, opaque to the transport.
type CandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
}

// ChatPayload is a pushed chat message notification.
type ChatPayload struct {
	MessageID int64     `json:"message_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionPayload is a pushed emoji reaction.
type ReactionPayload struct {
	Username string `json:"username"`
	Reaction string `json:"reaction"`
}

// HandPayload is a raise/lower hand notification.
type HandPayload struct {
	Username string `json:"username"`
	Action   string `json:"action"`
}

// AdmissionPayload identifies the participant an admission decision or
// join request concerns.
type AdmissionPayload struct {
	ParticipantID int64  `json:"participant_id,omitempty"`
	Username      string `json:"username"`
}

// NewEnvelope builds an envelope with a fresh de-duplication ID.
func NewEnvelope(msgType, from, to string, payload any) (*Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}

	return &Envelope{
		ID:        uuid.New().String(),
		Type:      msgType,
		From:      from,
		To:        to,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DecodePayload decodes the envelope payload into the provided struct.
func (e *Envelope) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
