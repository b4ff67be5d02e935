package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapelware/gather/internal/signaling"
)

func TestReactionsDisplayAndExpire(t *testing.T) {
	r := NewReactions(nil, "room", nil)
	r.ttl = 20 * time.Millisecond

	r.HandlePush(signaling.ReactionPayload{Username: "alice", Reaction: "🙏"})
	r.HandlePush(signaling.ReactionPayload{Username: "bob", Reaction: "👏"})

	active := r.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "alice", active[0].Username)
	assert.Equal(t, "🙏", active[0].Emoji)

	assert.Eventually(t, func() bool {
		return len(r.Active()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestReactionsSameEmojiKeptSeparately(t *testing.T) {
	r := NewReactions(nil, "room", nil)
	r.ttl = time.Hour
	defer r.Close()

	r.Display("alice", "❤️")
	r.Display("bob", "❤️")

	active := r.Active()
	require.Len(t, active, 2)
	assert.NotEqual(t, active[0].ID, active[1].ID)
}

func TestReactionsCloseStopsTimers(t *testing.T) {
	changes := 0
	r := NewReactions(nil, "room", func() { changes++ })
	r.ttl = 10 * time.Millisecond

	r.Display("alice", "👍")
	r.Close()

	settled := changes
	time.Sleep(30 * time.Millisecond)

	// No removal callback may fire after teardown.
	assert.Equal(t, settled, changes)
	assert.Empty(t, r.Active())

	// Display after close is ignored.
	r.Display("bob", "👍")
	assert.Empty(t, r.Active())
}
