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

func TestHandsRaiseAndLower(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	client := api.NewClient(srv.URL, "token")

	h := NewHands(client, "room", "me", nil)

	require.NoError(t, h.Raise(context.Background()))
	assert.True(t, h.MineRaised())
	require.Len(t, h.Raised(), 1)

	// Raising twice does not duplicate the record.
	h.HandlePush(signaling.HandPayload{Username: "me", Action: "raise"})
	assert.Len(t, h.Raised(), 1)

	require.NoError(t, h.Lower(context.Background()))
	assert.False(t, h.MineRaised())
	assert.Empty(t, h.Raised())
}

func TestHandsPushFromOthers(t *testing.T) {
	changes := 0
	h := NewHands(nil, "room", "me", func() { changes++ })

	h.HandlePush(signaling.HandPayload{Username: "alice", Action: "raise"})
	h.HandlePush(signaling.HandPayload{Username: "bob", Action: "raise"})
	assert.Len(t, h.Raised(), 2)
	assert.False(t, h.MineRaised())

	h.HandlePush(signaling.HandPayload{Username: "alice", Action: "lower"})
	raised := h.Raised()
	require.Len(t, raised, 1)
	assert.Equal(t, "bob", raised[0].Username)
	assert.Equal(t, 3, changes)
}

func TestHandsPollReplacesList(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]api.RaisedHand{{Username: "carol", RaisedAt: now}})
	}))
	t.Cleanup(srv.Close)
	client := api.NewClient(srv.URL, "token")

	h := NewHands(client, "room", "me", nil)
	h.HandlePush(signaling.HandPayload{Username: "stale", Action: "raise"})

	h.Poll(context.Background())

	raised := h.Raised()
	require.Len(t, raised, 1)
	assert.Equal(t, "carol", raised[0].Username)
}
