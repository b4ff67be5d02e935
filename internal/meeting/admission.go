package meeting

import (
	"sync"

	"github.com/chapelware/gather/internal/api"
)

// Admission tracks the local user's admission state as observed from
// room polls and push notifications. The server is authoritative; this
// only guards the client-side transitions:
//
//	unrequested -> pending -> {approved, rejected}
//
// Approved fires the setup callback exactly once no matter how many
// subsequent observations still report approved. Rejected is terminal
// for the attempt.
type Admission struct {
	mu sync.Mutex

	status     api.ParticipantStatus
	setupFired bool
	rejected   bool

	onApproved func()
	onRejected func()
}

func NewAdmission(onApproved, onRejected func()) *Admission {
	return &Admission{
		onApproved: onApproved,
		onRejected: onRejected,
	}
}

// Observe feeds the latest server-reported status into the state machine.
func (a *Admission) Observe(status api.ParticipantStatus) {
	a.mu.Lock()

	var fire func()
	switch status {
	case api.StatusApproved:
		if !a.setupFired {
			a.setupFired = true
			fire = a.onApproved
		}
	case api.StatusRejected:
		if !a.rejected {
			a.rejected = true
			fire = a.onRejected
		}
	}
	a.status = status

	a.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// Status returns the last observed admission status.
func (a *Admission) Status() api.ParticipantStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Approved reports whether the approved transition has been observed.
func (a *Admission) Approved() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setupFired
}

// PendingQueue is the host-side view of join requests awaiting a decision.
// A newly non-empty queue prompts host attention; the prompt auto-dismisses
// once the queue empties.
type PendingQueue struct {
	mu       sync.Mutex
	items    []api.Participant
	onChange func(items []api.Participant, attention bool)
}

func NewPendingQueue(onChange func([]api.Participant, bool)) *PendingQueue {
	return &PendingQueue{onChange: onChange}
}

// Update replaces the queue with the latest poll result.
func (q *PendingQueue) Update(items []api.Participant) {
	q.mu.Lock()
	wasEmpty := len(q.items) == 0
	q.items = items
	q.mu.Unlock()

	if q.onChange != nil {
		q.onChange(items, wasEmpty && len(items) > 0)
	}
}

// Items returns the current pending participants, oldest first.
func (q *PendingQueue) Items() []api.Participant {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]api.Participant, len(q.items))
	copy(out, q.items)
	return out
}
