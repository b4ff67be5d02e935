package features

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/chapelware/gather/internal/api"
	"github.com/chapelware/gather/internal/signaling"
)

// Chat keeps the room's message list in sync via poll and push. Sends are
// optimistic: the server-confirmed record is appended immediately and the
// next poll or push of the same id is suppressed.
type Chat struct {
	api      *api.Client
	roomID   string
	username string

	mu       sync.Mutex
	messages []api.ChatMessage
	seen     map[int64]struct{}
	unread   int
	open     bool

	onChange func()
}

func NewChat(client *api.Client, roomID, username string, onChange func()) *Chat {
	return &Chat{
		api:      client,
		roomID:   roomID,
		username: username,
		seen:     make(map[int64]struct{}),
		onChange: onChange,
	}
}

// Load fetches the room's chat history. Called once on join.
func (c *Chat) Load(ctx context.Context) error {
	msgs, err := c.api.ChatMessages(ctx, c.roomID)
	if err != nil {
		return err
	}
	c.merge(msgs, false)
	return nil
}

// Poll refreshes the message list; transient failures are logged, never
// surfaced, so the loop keeps running.
func (c *Chat) Poll(ctx context.Context) {
	msgs, err := c.api.ChatMessages(ctx, c.roomID)
	if err != nil {
		slog.Debug("chat poll failed", "error", err)
		return
	}
	c.merge(msgs, true)
}

// Send posts a message and appends the confirmed record locally.
func (c *Chat) Send(ctx context.Context, content string) error {
	msg, err := c.api.SendChatMessage(ctx, c.roomID, content)
	if err != nil {
		return err
	}
	c.merge([]api.ChatMessage{*msg}, false)
	return nil
}

// HandlePush applies a pushed chat notification from the realtime channel.
func (c *Chat) HandlePush(payload signaling.ChatPayload) {
	c.merge([]api.ChatMessage{{
		ID:        payload.MessageID,
		Sender:    payload.Sender,
		Content:   payload.Content,
		CreatedAt: payload.CreatedAt,
	}}, true)
}

func (c *Chat) merge(msgs []api.ChatMessage, countUnread bool) {
	c.mu.Lock()

	added := false
	for _, msg := range msgs {
		if _, ok := c.seen[msg.ID]; ok {
			continue
		}
		c.seen[msg.ID] = struct{}{}
		c.messages = append(c.messages, msg)
		added = true

		if countUnread && !c.open && msg.Sender != c.username {
			c.unread++
		}
	}
	if added {
		sort.SliceStable(c.messages, func(i, j int) bool {
			return c.messages[i].CreatedAt.Before(c.messages[j].CreatedAt)
		})
	}

	c.mu.Unlock()

	if added && c.onChange != nil {
		c.onChange()
	}
}

// SetOpen marks the chat panel focus state. Gaining focus resets the
// unread counter.
func (c *Chat) SetOpen(open bool) {
	c.mu.Lock()
	c.open = open
	if open {
		c.unread = 0
	}
	c.mu.Unlock()
}

// Messages returns the current list in creation order.
func (c *Chat) Messages() []api.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]api.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Unread returns the unread message count.
func (c *Chat) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}
