package features

import (
	"context"
	"sync"
	"time"

	"github.com/chapelware/gather/internal/api"
	"github.com/chapelware/gather/internal/signaling"
)

// DisplayDuration is how long a reaction stays on screen. Removal is
// purely local; the server never retracts a reaction.
const DisplayDuration = 3 * time.Second

// ActiveReaction is one reaction currently being rendered.
type ActiveReaction struct {
	ID       int64
	Username string
	Emoji    string
	At       time.Time
}

// Reactions is the ephemeral emoji overlay: send fans out through the
// server, every received reaction displays for a fixed duration and is
// then dropped locally.
type Reactions struct {
	api    *api.Client
	roomID string
	ttl    time.Duration

	mu     sync.Mutex
	seq    int64
	active []ActiveReaction
	timers []*time.Timer
	closed bool

	onChange func()
}

func NewReactions(client *api.Client, roomID string, onChange func()) *Reactions {
	return &Reactions{
		api:      client,
		roomID:   roomID,
		ttl:      DisplayDuration,
		onChange: onChange,
	}
}

// Send broadcasts an emoji to the room.
func (r *Reactions) Send(ctx context.Context, emoji string) error {
	return r.api.SendReaction(ctx, r.roomID, emoji)
}

// HandlePush displays a reaction received from the realtime channel.
func (r *Reactions) HandlePush(payload signaling.ReactionPayload) {
	r.Display(payload.Username, payload.Reaction)
}

// Display schedules a reaction for rendering and its later removal.
func (r *Reactions) Display(username, emoji string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	r.seq++
	id := r.seq
	r.active = append(r.active, ActiveReaction{
		ID:       id,
		Username: username,
		Emoji:    emoji,
		At:       time.Now(),
	})

	timer := time.AfterFunc(r.ttl, func() { r.remove(id) })
	r.timers = append(r.timers, timer)
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange()
	}
}

func (r *Reactions) remove(id int64) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	kept := r.active[:0]
	for _, a := range r.active {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	r.active = kept
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange()
	}
}

// Active returns the reactions currently on screen.
func (r *Reactions) Active() []ActiveReaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActiveReaction, len(r.active))
	copy(out, r.active)
	return out
}

// Close stops every pending removal timer so nothing fires after the
// room is torn down.
func (r *Reactions) Close() {
	r.mu.Lock()
	r.closed = true
	timers := r.timers
	r.timers = nil
	r.active = nil
	r.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}
