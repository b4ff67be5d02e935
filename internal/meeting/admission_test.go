package meeting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chapelware/gather/internal/api"
)

func TestAdmissionApprovedFiresOnce(t *testing.T) {
	approved := 0
	a := NewAdmission(func() { approved++ }, func() { t.Fatal("unexpected rejection") })

	a.Observe(api.StatusPending)
	assert.Equal(t, 0, approved)
	assert.False(t, a.Approved())

	// Polls keep reporting approved; setup must still run exactly once.
	a.Observe(api.StatusApproved)
	a.Observe(api.StatusApproved)
	a.Observe(api.StatusApproved)

	assert.Equal(t, 1, approved)
	assert.True(t, a.Approved())
	assert.Equal(t, api.StatusApproved, a.Status())
}

func TestAdmissionRejectedIsTerminal(t *testing.T) {
	rejected := 0
	a := NewAdmission(func() { t.Fatal("unexpected approval") }, func() { rejected++ })

	a.Observe(api.StatusPending)
	a.Observe(api.StatusRejected)
	a.Observe(api.StatusRejected)

	assert.Equal(t, 1, rejected)
	assert.Equal(t, api.StatusRejected, a.Status())
}

func TestAdmissionObserveFromPush(t *testing.T) {
	// Approval can arrive over the socket before any poll saw pending.
	approved := 0
	a := NewAdmission(func() { approved++ }, nil)

	a.Observe(api.StatusApproved)
	assert.Equal(t, 1, approved)
}

func TestPendingQueueAttention(t *testing.T) {
	type change struct {
		count     int
		attention bool
	}
	var changes []change
	q := NewPendingQueue(func(items []api.Participant, attention bool) {
		changes = append(changes, change{len(items), attention})
	})

	alice := api.Participant{ID: 1, Username: "alice", Status: api.StatusPending}
	bob := api.Participant{ID: 2, Username: "bob", Status: api.StatusPending}

	// Empty to non-empty prompts attention.
	q.Update([]api.Participant{alice})
	// Growing an already non-empty queue does not re-prompt.
	q.Update([]api.Participant{alice, bob})
	// Emptying dismisses.
	q.Update(nil)
	// A later knock prompts again.
	q.Update([]api.Participant{bob})

	assert.Equal(t, []change{
		{1, true},
		{2, false},
		{0, false},
		{1, true},
	}, changes)
}

func TestPendingQueueItemsCopy(t *testing.T) {
	q := NewPendingQueue(nil)
	q.Update([]api.Participant{{ID: 1, Username: "alice"}})

	items := q.Items()
	items[0].Username = "mallory"

	assert.Equal(t, "alice", q.Items()[0].Username)
}
