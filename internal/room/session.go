package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/chapelware/gather/internal/api"
	"github.com/chapelware/gather/internal/config"
	"github.com/chapelware/gather/internal/features"
	"github.com/chapelware/gather/internal/media"
	"github.com/chapelware/gather/internal/meeting"
	"github.com/chapelware/gather/internal/rtc"
	"github.com/chapelware/gather/internal/signaling"
	"github.com/pion/webrtc/v4"
)

// Poll intervals. Admission polling is tightened relative to general room
// polling because admission latency blocks the other party entirely.
const (
	pendingInterval = 1 * time.Second
	roomInterval    = 3 * time.Second
	signalInterval  = 2 * time.Second
	handsInterval   = 3 * time.Second
	chatInterval    = 5 * time.Second
)

// readySchedule is when the readiness signal is (re)sent after admission.
// The transport delivers at most once and the host may not be listening
// yet, so the signal is intentionally redundant.
var readySchedule = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// Session coordinates one user's attendance of one meeting room: identity
// and role come from the REST client, admission gates the peer connection
// manager, and every signal, pushed or polled, flows through a single
// deduplicating dispatch path.
type Session struct {
	cfg      *config.Config
	api      *api.Client
	roomID   string
	username string

	transport *signaling.Client
	dedupe    *meeting.Dedupe

	admission *meeting.Admission
	pending   *meeting.PendingQueue

	chat      *features.Chat
	reactions *features.Reactions
	hands     *features.Hands

	mu          sync.Mutex
	room        *api.Room
	isHost      bool
	source      *media.Source
	manager     *rtc.Manager
	sharingUser string
	pollers     []*meeting.Poller
	closed      bool

	events chan Event
	done   chan struct{}
}

// NewSession prepares a session for the given room. Start runs it.
func NewSession(cfg *config.Config, client *api.Client, roomID, username string) *Session {
	s := &Session{
		cfg:      cfg,
		api:      client,
		roomID:   roomID,
		username: username,
		dedupe:   meeting.NewDedupe(),
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
	}

	s.transport = signaling.NewClient(cfg.RoomSocketURL(roomID), cfg.AuthToken)
	s.admission = meeting.NewAdmission(s.onApproved, s.onRejected)
	s.pending = meeting.NewPendingQueue(func(items []api.Participant, attention bool) {
		s.emit(Event{Kind: EventPendingChanged, Attention: attention})
	})
	s.chat = features.NewChat(client, roomID, username, func() { s.emit(Event{Kind: EventChatChanged}) })
	s.reactions = features.NewReactions(client, roomID, func() { s.emit(Event{Kind: EventReactionsChanged}) })
	s.hands = features.NewHands(client, roomID, username, func() { s.emit(Event{Kind: EventHandsChanged}) })

	return s
}

// Events returns the notification stream for the view layer.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		// The view is behind; it re-reads full snapshots anyway.
	}
}

// Start fetches identity and role, connects the realtime channel, and
// begins the polling loops. For participants it files the join request;
// the admission controller gates everything that follows.
func (s *Session) Start(ctx context.Context) error {
	snapshot, err := s.api.RoomDetails(ctx, s.roomID)
	if err != nil {
		return meeting.NewError("fetch room", err)
	}
	if snapshot.Status == api.RoomEnded {
		return meeting.NewError("fetch room", meeting.ErrRoomEnded)
	}

	s.mu.Lock()
	s.room = snapshot
	s.isHost = snapshot.HostUsername == s.username
	s.mu.Unlock()

	s.transport.SetHandler(s.dispatch)
	s.transport.Connect()

	var joined *api.Participant
	if s.isHost {
		if err := s.api.StartMeeting(ctx, s.roomID); err != nil {
			slog.Warn("start meeting failed", "error", err)
		}
		if err := s.initMedia(); err != nil {
			return err
		}
		s.startPoller(pendingInterval, func(ctx context.Context) {
			s.pending.Update(s.api.PendingRequests(ctx, s.roomID))
		})
	} else {
		// A prior rejected record does not block a fresh attempt: the
		// server resets it to pending on the next join request.
		p, err := s.api.JoinRequest(ctx, s.roomID)
		if err != nil {
			return meeting.NewError("join request", err)
		}
		joined = p
	}

	s.startPoller(roomInterval, s.pollRoom)
	s.startPoller(signalInterval, s.pollSignals)
	s.startPoller(handsInterval, s.hands.Poll)
	s.startPoller(chatInterval, s.chat.Poll)

	if err := s.chat.Load(ctx); err != nil {
		slog.Debug("chat history load failed", "error", err)
	}

	// A participant whose earlier request was already approved proceeds
	// now; everyone else starts out pending.
	if joined != nil {
		s.admission.Observe(joined.Status)
	}

	return nil
}

func (s *Session) startPoller(interval time.Duration, fn func(context.Context)) {
	p := meeting.NewPoller(interval, fn)
	s.mu.Lock()
	s.pollers = append(s.pollers, p)
	s.mu.Unlock()
	p.Start()
}

// pollRoom reconciles the cached room snapshot and feeds the admission
// state machine.
func (s *Session) pollRoom(ctx context.Context) {
	snapshot, err := s.api.RoomDetails(ctx, s.roomID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			s.emit(Event{Kind: EventEnded})
			return
		}
		slog.Debug("room poll failed", "error", err)
		return
	}

	s.mu.Lock()
	s.room = snapshot
	s.mu.Unlock()

	if snapshot.Status == api.RoomEnded {
		s.emit(Event{Kind: EventEnded})
		return
	}

	if !s.isHost {
		s.admission.Observe(snapshot.ParticipantStatus)
	}
	s.emit(Event{Kind: EventRoomUpdated})
}

// pollSignals is the HTTP fallback for the realtime channel. Both paths
// converge on dispatch, so redelivery is harmless.
func (s *Session) pollSignals(ctx context.Context) {
	records, err := s.api.GetSignals(ctx, s.roomID)
	if err != nil {
		slog.Debug("signal poll failed", "error", err)
		return
	}
	for _, rec := range records {
		s.dispatch(&signaling.Envelope{
			ID:        rec.ID,
			Type:      rec.MessageType,
			From:      rec.Sender,
			To:        rec.Receiver,
			Payload:   rec.Data,
			CreatedAt: rec.CreatedAt,
		})
	}
}

// dispatch is the single inbound path for every signal message. Messages
// are consumed at least once; the dedupe set makes processing idempotent.
func (s *Session) dispatch(env *signaling.Envelope) {
	if env.Type == signaling.TypePing {
		return
	}
	if env.From == s.username {
		return
	}
	if env.To != "" && env.To != s.username {
		return
	}
	if s.dedupe.Seen(env.ID) {
		return
	}

	if err := s.handle(env); err != nil {
		slog.Warn("signal handling failed", "type", env.Type, "from", env.From, "error", err)
	}
}

func (s *Session) handle(env *signaling.Envelope) error {
	switch env.Type {
	case signaling.TypeOffer:
		mgr := s.Manager()
		if mgr == nil {
			return nil // not admitted yet; the sender will retry
		}
		var payload signaling.SDPPayload
		if err := env.DecodePayload(&payload); err != nil {
			return meeting.WrapError("decode offer", meeting.ErrSignalingError, err.Error())
		}
		return mgr.HandleOffer(env.From, payload)

	case signaling.TypeAnswer:
		mgr := s.Manager()
		if mgr == nil {
			return nil
		}
		var payload signaling.SDPPayload
		if err := env.DecodePayload(&payload); err != nil {
			return meeting.WrapError("decode answer", meeting.ErrSignalingError, err.Error())
		}
		return mgr.HandleAnswer(env.From, payload)

	case signaling.TypeICECandidate:
		mgr := s.Manager()
		if mgr == nil {
			return nil
		}
		var payload signaling.CandidatePayload
		if err := env.DecodePayload(&payload); err != nil {
			return meeting.WrapError("decode candidate", meeting.ErrSignalingError, err.Error())
		}
		return mgr.HandleCandidate(env.From, payload)

	case signaling.TypeJoinReady:
		// Host is always the initiator toward a newly-admitted peer.
		if !s.isHost {
			return nil
		}
		mgr := s.Manager()
		if mgr == nil {
			return nil
		}
		_, err := mgr.EnsureConnection(env.From, true)
		return err

	case signaling.TypeApproval:
		var payload signaling.AdmissionPayload
		if err := env.DecodePayload(&payload); err == nil && payload.Username == s.username {
			s.admission.Observe(api.StatusApproved)
		}
		return nil

	case signaling.TypeRejection:
		var payload signaling.AdmissionPayload
		if err := env.DecodePayload(&payload); err == nil && payload.Username == s.username {
			s.admission.Observe(api.StatusRejected)
		}
		return nil

	case signaling.TypeJoinRequest:
		if s.isHost {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.pending.Update(s.api.PendingRequests(ctx, s.roomID))
		}
		return nil

	case signaling.TypeChatMessage:
		var payload signaling.ChatPayload
		if err := env.DecodePayload(&payload); err != nil {
			return err
		}
		s.chat.HandlePush(payload)
		return nil

	case signaling.TypeReaction:
		var payload signaling.ReactionPayload
		if err := env.DecodePayload(&payload); err != nil {
			return err
		}
		s.reactions.HandlePush(payload)
		return nil

	case signaling.TypeHandRaise:
		var payload signaling.HandPayload
		if err := env.DecodePayload(&payload); err != nil {
			return err
		}
		s.hands.HandlePush(payload)
		return nil

	case signaling.TypeScreenShareStart:
		s.mu.Lock()
		s.sharingUser = env.From
		s.mu.Unlock()
		s.emit(Event{Kind: EventScreenShare, Username: env.From})
		return nil

	case signaling.TypeScreenShareStop:
		s.mu.Lock()
		if s.sharingUser == env.From {
			s.sharingUser = ""
		}
		s.mu.Unlock()
		s.emit(Event{Kind: EventScreenShare})
		return nil

	case signaling.TypeUserJoined:
		slog.Info("user joined", "user", env.From)
		s.emit(Event{Kind: EventRoomUpdated, Username: env.From})
		return nil

	case signaling.TypeUserLeft:
		if mgr := s.Manager(); mgr != nil {
			mgr.ClosePeer(env.From)
		}
		return nil

	case signaling.TypeMeetingEnd:
		s.emit(Event{Kind: EventEnded})
		return nil

	default:
		slog.Debug("unhandled signal type", "type", env.Type)
		return nil
	}
}

// onApproved runs exactly once per session, no matter how many polls
// still observe approved: acquire media, stand up the connection manager,
// and (for participants) announce readiness to the host.
func (s *Session) onApproved() {
	if err := s.initMedia(); err != nil {
		s.emit(Event{Kind: EventMediaError, Err: err})
		return
	}
	s.emit(Event{Kind: EventApproved})

	if !s.isHost {
		go s.announceReady()
	}
}

func (s *Session) onRejected() {
	s.emit(Event{Kind: EventRejected, Err: meeting.ErrRejected})
}

func (s *Session) initMedia() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manager != nil {
		return nil
	}

	source, err := media.NewSource()
	if err != nil {
		return meeting.NewError("acquire media", meeting.ErrMediaDenied)
	}
	s.source = source
	s.manager = rtc.NewManager(s.cfg, source, s, s.username)
	s.manager.OnChange(func() { s.emit(Event{Kind: EventStreamsChanged}) })
	return nil
}

// announceReady resends the readiness signal on the retry schedule until
// the host's connection shows up or the session ends.
func (s *Session) announceReady() {
	host := s.HostUsername()
	for _, delay := range readySchedule {
		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}

		if mgr := s.Manager(); mgr != nil {
			if p, ok := mgr.Peer(host); ok && p.ConnectionState() == webrtc.PeerConnectionStateConnected {
				return
			}
		}
		s.SendSignal(host, signaling.TypeJoinReady, signaling.AdmissionPayload{Username: s.username})
	}
}

// SendSignal delivers a payload to one peer (or broadcast when to is
// empty): over the socket when it is open, through the REST fallback
// otherwise. Implements the connection manager's sender.
func (s *Session) SendSignal(to, msgType string, payload any) {
	env, err := signaling.NewEnvelope(msgType, s.username, to, payload)
	if err != nil {
		slog.Warn("signal encode failed", "type", msgType, "error", err)
		return
	}

	if s.transport.IsConnected() {
		s.transport.Send(env)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.api.SendSignal(ctx, s.roomID, msgType, to, env.Payload); err != nil {
		slog.Debug("signal fallback send failed", "type", msgType, "error", err)
	}
}

// Approve admits a pending participant. Host only; a second decision on
// the same participant is rejected by the server and may be ignored.
func (s *Session) Approve(ctx context.Context, participantID int64) error {
	if _, err := s.api.ApproveParticipant(ctx, s.roomID, participantID); err != nil {
		return err
	}
	s.pending.Update(s.api.PendingRequests(ctx, s.roomID))
	return nil
}

// Reject declines a pending participant. Host only.
func (s *Session) Reject(ctx context.Context, participantID int64) error {
	if err := s.api.RejectParticipant(ctx, s.roomID, participantID); err != nil {
		return err
	}
	s.pending.Update(s.api.PendingRequests(ctx, s.roomID))
	return nil
}

// ToggleMic flips the microphone and announces the state to peers.
func (s *Session) ToggleMic() {
	s.mu.Lock()
	source, mgr := s.source, s.manager
	s.mu.Unlock()
	if source == nil {
		return
	}
	source.SetMuted(!source.Muted())
	if mgr != nil {
		mgr.BroadcastStatus()
	}
}

// ToggleVideo flips the camera and announces the state to peers.
func (s *Session) ToggleVideo() {
	s.mu.Lock()
	source, mgr := s.source, s.manager
	s.mu.Unlock()
	if source == nil {
		return
	}
	source.SetVideoOff(!source.VideoOff())
	if mgr != nil {
		mgr.BroadcastStatus()
	}
}

// StartScreenShare swaps the outgoing video to the screen track on every
// existing connection and announces it to the room.
func (s *Session) StartScreenShare() error {
	mgr := s.Manager()
	if mgr == nil {
		return meeting.ErrNotAdmitted
	}
	if err := mgr.StartScreenShare(); err != nil {
		return err
	}
	s.SendSignal("", signaling.TypeScreenShareStart, signaling.AdmissionPayload{Username: s.username})
	return nil
}

// StopScreenShare restores the camera track and announces it.
func (s *Session) StopScreenShare() {
	mgr := s.Manager()
	if mgr == nil {
		return
	}
	mgr.StopScreenShare()
	s.SendSignal("", signaling.TypeScreenShareStop, signaling.AdmissionPayload{Username: s.username})
}

// Leave tears the session down and detaches from the room. The host can
// leave without ending: the room persists, hostless.
func (s *Session) Leave(ctx context.Context) {
	s.teardown()
	if err := s.api.LeaveRoom(ctx, s.roomID); err != nil {
		slog.Warn("leave room failed", "error", err)
	}
}

// End terminates the meeting for everyone. Host only.
func (s *Session) End(ctx context.Context) error {
	s.teardown()
	return s.api.EndMeeting(ctx, s.roomID)
}

// teardown stops every poller and timer before releasing connections so
// nothing mutates state after room exit. Idempotent.
func (s *Session) teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pollers := s.pollers
	s.pollers = nil
	mgr := s.manager
	s.mu.Unlock()

	close(s.done)
	for _, p := range pollers {
		p.Stop()
	}
	s.reactions.Close()
	if mgr != nil {
		mgr.Close()
	}
	s.transport.Close()
}

// Accessors for the view layer.

// Room returns the last-fetched room snapshot.
func (s *Session) Room() *api.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// IsHost reports whether the local user hosts this room.
func (s *Session) IsHost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isHost
}

// HostUsername returns the room host's username.
func (s *Session) HostUsername() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return ""
	}
	return s.room.HostUsername
}

// Username returns the local identity.
func (s *Session) Username() string {
	return s.username
}

// Manager returns the peer connection manager, or nil while admission has
// not yet allowed it to run.
func (s *Session) Manager() *rtc.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager
}

// Source returns the local media source, or nil before admission.
func (s *Session) Source() *media.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Streams returns the renderable remote stream set.
func (s *Session) Streams() []rtc.RemoteStream {
	mgr := s.Manager()
	if mgr == nil {
		return nil
	}
	return mgr.Streams()
}

// SharingUser returns who is currently screen sharing, if anyone.
func (s *Session) SharingUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sharingUser
}

// Admission exposes the local admission state machine.
func (s *Session) Admission() *meeting.Admission {
	return s.admission
}

// Pending exposes the host's pending-request queue.
func (s *Session) Pending() *meeting.PendingQueue {
	return s.pending
}

// Chat exposes the chat feature.
func (s *Session) Chat() *features.Chat {
	return s.chat
}

// Reactions exposes the reactions feature.
func (s *Session) Reactions() *features.Reactions {
	return s.reactions
}

// Hands exposes the raised-hand feature.
func (s *Session) Hands() *features.Hands {
	return s.hands
}
