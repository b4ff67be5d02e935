package features

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapelware/gather/internal/api"
	"github.com/chapelware/gather/internal/signaling"
)

func newChatServer(t *testing.T, handler http.HandlerFunc) *api.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL, "token")
}

func TestChatSendThenPushNoDuplicate(t *testing.T) {
	now := time.Now().UTC()
	client := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ChatMessage{ID: 42, Sender: "me", Content: "hello", CreatedAt: now})
	})

	changes := 0
	chat := NewChat(client, "room", "me", func() { changes++ })

	require.NoError(t, chat.Send(context.Background(), "hello"))
	require.Len(t, chat.Messages(), 1)

	// The relayed notification of our own message must not duplicate it.
	chat.HandlePush(signaling.ChatPayload{MessageID: 42, Sender: "me", Content: "hello", CreatedAt: now})
	assert.Len(t, chat.Messages(), 1)
	assert.Equal(t, 1, changes)
}

func TestChatMergeSortsByCreation(t *testing.T) {
	chat := NewChat(nil, "room", "me", nil)
	now := time.Now().UTC()

	chat.HandlePush(signaling.ChatPayload{MessageID: 2, Sender: "alice", Content: "second", CreatedAt: now})
	chat.HandlePush(signaling.ChatPayload{MessageID: 1, Sender: "alice", Content: "first", CreatedAt: now.Add(-time.Minute)})

	msgs := chat.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}

func TestChatUnreadCounting(t *testing.T) {
	chat := NewChat(nil, "room", "me", nil)
	now := time.Now().UTC()

	// Closed panel: messages from others count, own messages never do.
	chat.HandlePush(signaling.ChatPayload{MessageID: 1, Sender: "alice", Content: "hi", CreatedAt: now})
	chat.HandlePush(signaling.ChatPayload{MessageID: 2, Sender: "me", Content: "hey", CreatedAt: now})
	assert.Equal(t, 1, chat.Unread())

	// Opening the panel clears the counter.
	chat.SetOpen(true)
	assert.Equal(t, 0, chat.Unread())

	// Open panel: nothing accumulates.
	chat.HandlePush(signaling.ChatPayload{MessageID: 3, Sender: "alice", Content: "again", CreatedAt: now})
	assert.Equal(t, 0, chat.Unread())

	chat.SetOpen(false)
	chat.HandlePush(signaling.ChatPayload{MessageID: 4, Sender: "alice", Content: "psst", CreatedAt: now})
	assert.Equal(t, 1, chat.Unread())
}

func TestChatLoadDoesNotCountUnread(t *testing.T) {
	now := time.Now().UTC()
	client := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]api.ChatMessage{
			{ID: 1, Sender: "alice", Content: "old", CreatedAt: now.Add(-time.Hour)},
			{ID: 2, Sender: "bob", Content: "older", CreatedAt: now.Add(-2 * time.Hour)},
		})
	})

	chat := NewChat(client, "room", "me", nil)
	require.NoError(t, chat.Load(context.Background()))

	assert.Len(t, chat.Messages(), 2)
	assert.Equal(t, 0, chat.Unread())
}
