package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// Sentinel errors for the collaborator boundary. Callers branch on these
// with errors.Is; everything else is a transient failure.
var (
	ErrNotFound     = errors.New("room not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("request rejected")
)

// Client wraps the meeting-room REST resource. It owns no state beyond
// the base URL and credentials.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a REST client for the given API root.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail := readDetail(resp.Body)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", path, ErrUnauthorized)
		case http.StatusForbidden:
			return fmt.Errorf("%s: %w", path, ErrForbidden)
		case http.StatusBadRequest, http.StatusConflict:
			if detail != "" {
				return fmt.Errorf("%w: %s", ErrBadRequest, detail)
			}
			return fmt.Errorf("%s: %w", path, ErrBadRequest)
		default:
			return fmt.Errorf("%s: server returned %d", path, resp.StatusCode)
		}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readDetail(r io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return ""
	}
	return payload.Detail
}

// ListRooms returns the active (waiting or in-progress) meeting rooms.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.do(ctx, http.MethodGet, "/video-meetings/", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom creates a meeting room hosted by the caller.
func (c *Client) CreateRoom(ctx context.Context, params CreateRoomParams) (*Room, error) {
	var room Room
	if err := c.do(ctx, http.MethodPost, "/video-meetings/", params, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// RoomDetails returns the current room snapshot, including the caller's
// own participant status.
func (c *Client) RoomDetails(ctx context.Context, roomID string) (*Room, error) {
	var room Room
	if err := c.do(ctx, http.MethodGet, "/video-meetings/"+roomID+"/", nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// StartMeeting flips the room to active. Host only.
func (c *Client) StartMeeting(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/video-meetings/"+roomID+"/start/", nil, nil)
}

// EndMeeting terminates the room for all participants. Host only.
func (c *Client) EndMeeting(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/video-meetings/"+roomID+"/end/", nil, nil)
}

// LeaveRoom detaches the caller from the room. Safe to call after the
// peer connections are already torn down.
func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/video-meetings/"+roomID+"/leave/", nil, nil)
}

// JoinRequest creates or reuses a participant record for the caller.
// A prior pending or approved record is returned as-is by the server.
func (c *Client) JoinRequest(ctx context.Context, roomID string) (*Participant, error) {
	var p Participant
	if err := c.do(ctx, http.MethodPost, "/video-meetings/"+roomID+"/join_request/", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PendingRequests returns the pending participant queue, oldest first.
// This is polled continuously by the host; transient failures return an
// empty list rather than an error so they never interrupt the loop.
func (c *Client) PendingRequests(ctx context.Context, roomID string) []Participant {
	var pending []Participant
	if err := c.do(ctx, http.MethodGet, "/video-meetings/"+roomID+"/pending_requests/", nil, &pending); err != nil {
		slog.Debug("pending requests poll failed", "error", err)
		return nil
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

type participantRef struct {
	ParticipantID int64 `json:"participant_id"`
}

// ApproveParticipant admits a pending participant. Host only. Re-invoking
// on an already-decided participant surfaces ErrBadRequest.
func (c *Client) ApproveParticipant(ctx context.Context, roomID string, participantID int64) (*Participant, error) {
	var p Participant
	err := c.do(ctx, http.MethodPost, "/video-meetings/"+roomID+"/approve_participant/",
		participantRef{ParticipantID: participantID}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RejectParticipant declines a pending participant. Host only.
func (c *Client) RejectParticipant(ctx context.Context, roomID string, participantID int64) error {
	return c.do(ctx, http.MethodPost, "/video-meetings/"+roomID+"/reject_participant/",
		participantRef{ParticipantID: participantID}, nil)
}

type sendSignalRequest struct {
	MessageType      string          `json:"message_type"`
	Payload          json.RawMessage `json:"payload"`
	ReceiverUsername string          `json:"receiver_username,omitempty"`
}

// SendSignal persists a signal message for relay. Empty receiver means
// broadcast to the room.
func (c *Client) SendSignal(ctx context.Context, roomID, messageType, receiver string, payload json.RawMessage) error {
	return c.do(ctx, http.MethodPost, "/video-meetings/"+roomID+"/send_signal/",
		sendSignalRequest{MessageType: messageType, Payload: payload, ReceiverUsername: receiver}, nil)
}

// GetSignals returns recent signal messages addressed to the caller or
// broadcast to the room, in creation order. This is the HTTP-polling
// fallback for the realtime channel.
func (c *Client) GetSignals(ctx context.Context, roomID string) ([]SignalRecord, error) {
	var signals []SignalRecord
	if err := c.do(ctx, http.MethodGet, "/video-meetings/"+roomID+"/get_signals/", nil, &signals); err != nil {
		return nil, err
	}
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].CreatedAt.Before(signals[j].CreatedAt)
	})
	return signals, nil
}

// SendChatMessage posts a chat message and returns the persisted record.
func (c *Client) SendChatMessage(ctx context.Context, roomID, content string) (*ChatMessage, error) {
	var msg ChatMessage
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, "/video-meetings/"+roomID+"/chat/send/", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ChatMessages returns the room's chat history in creation order.
func (c *Client) ChatMessages(ctx context.Context, roomID string) ([]ChatMessage, error) {
	var msgs []ChatMessage
	if err := c.do(ctx, http.MethodGet, "/video-meetings/"+roomID+"/chat/messages/", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendReaction broadcasts an emoji reaction to the room.
func (c *Client) SendReaction(ctx context.Context, roomID, reaction string) error {
	body := map[string]string{"reaction_type": reaction}
	return c.do(ctx, http.MethodPost, "/video-meetings/"+roomID+"/reactions/send/", body, nil)
}

// RaiseHand marks the caller's hand as raised.
func (c *Client) RaiseHand(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/video-meetings/"+roomID+"/raise-hand/", nil, nil)
}

// LowerHand clears the caller's raised hand.
func (c *Client) LowerHand(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/video-meetings/"+roomID+"/lower-hand/", nil, nil)
}

// RaisedHands returns the active raised hands, oldest first.
func (c *Client) RaisedHands(ctx context.Context, roomID string) ([]RaisedHand, error) {
	var hands []RaisedHand
	if err := c.do(ctx, http.MethodGet, "/video-meetings/"+roomID+"/raised-hands/", nil, &hands); err != nil {
		return nil, err
	}
	return hands, nil
}
