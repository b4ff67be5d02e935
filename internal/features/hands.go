package features

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chapelware/gather/internal/api"
	"github.com/chapelware/gather/internal/signaling"
)

// Hands tracks raised hands in the room, reconciled by poll and nudged
// by push notifications between polls.
type Hands struct {
	api      *api.Client
	roomID   string
	username string

	mu     sync.Mutex
	raised []api.RaisedHand

	onChange func()
}

func NewHands(client *api.Client, roomID, username string, onChange func()) *Hands {
	return &Hands{
		api:      client,
		roomID:   roomID,
		username: username,
		onChange: onChange,
	}
}

// Poll replaces the raised-hand list with the server's view.
func (h *Hands) Poll(ctx context.Context) {
	hands, err := h.api.RaisedHands(ctx, h.roomID)
	if err != nil {
		slog.Debug("raised hands poll failed", "error", err)
		return
	}

	h.mu.Lock()
	h.raised = hands
	h.mu.Unlock()

	if h.onChange != nil {
		h.onChange()
	}
}

// Raise marks the local user's hand as raised. An "already raised"
// rejection from the server is ignored.
func (h *Hands) Raise(ctx context.Context) error {
	if err := h.api.RaiseHand(ctx, h.roomID); err != nil {
		return err
	}
	h.apply(h.username, "raise")
	return nil
}

// Lower clears the local user's raised hand.
func (h *Hands) Lower(ctx context.Context) error {
	if err := h.api.LowerHand(ctx, h.roomID); err != nil {
		return err
	}
	h.apply(h.username, "lower")
	return nil
}

// HandlePush applies a raise/lower notification.
func (h *Hands) HandlePush(payload signaling.HandPayload) {
	h.apply(payload.Username, payload.Action)
}

func (h *Hands) apply(username, action string) {
	h.mu.Lock()
	switch action {
	case "raise":
		exists := false
		for _, hand := range h.raised {
			if hand.Username == username {
				exists = true
				break
			}
		}
		if !exists {
			h.raised = append(h.raised, api.RaisedHand{Username: username, RaisedAt: time.Now()})
		}
	case "lower":
		kept := h.raised[:0]
		for _, hand := range h.raised {
			if hand.Username != username {
				kept = append(kept, hand)
			}
		}
		h.raised = kept
	}
	h.mu.Unlock()

	if h.onChange != nil {
		h.onChange()
	}
}

// Raised returns active raised hands, oldest first.
func (h *Hands) Raised() []api.RaisedHand {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]api.RaisedHand, len(h.raised))
	copy(out, h.raised)
	return out
}

// MineRaised reports whether the local user's hand is up.
func (h *Hands) MineRaised() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, hand := range h.raised {
		if hand.Username == h.username {
			return true
		}
	}
	return false
}
