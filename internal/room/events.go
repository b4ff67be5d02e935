package room

// EventKind identifies what changed inside the session.
type EventKind int

const (
	// EventRoomUpdated fires when the cached room snapshot changes.
	EventRoomUpdated EventKind = iota

	// EventStreamsChanged fires when the remote stream set or a peer's
	// connection state changes.
	EventStreamsChanged

	// EventChatChanged fires when the chat list or unread count changes.
	EventChatChanged

	// EventHandsChanged fires when the raised-hand list changes.
	EventHandsChanged

	// EventReactionsChanged fires when a reaction appears or expires.
	EventReactionsChanged

	// EventPendingChanged fires when the host's pending queue changes.
	// Attention is set when the queue turned newly non-empty.
	EventPendingChanged

	// EventApproved fires once when the local user's admission lands.
	EventApproved

	// EventRejected fires when the join request is rejected. Terminal:
	// the caller must navigate away.
	EventRejected

	// EventEnded fires when the meeting is terminated for everyone.
	EventEnded

	// EventScreenShare fires when a remote user starts or stops sharing.
	EventScreenShare

	// EventMediaError fires when local media cannot be acquired. The
	// session does not proceed until it is resolved.
	EventMediaError
)

// Event is a session notification for the view layer.
type Event struct {
	Kind      EventKind
	Attention bool
	Username  string
	Err       error
}
