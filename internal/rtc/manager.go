package rtc

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/chapelware/gather/internal/config"
	"github.com/chapelware/gather/internal/media"
	"github.com/chapelware/gather/internal/meeting"
	"github.com/chapelware/gather/internal/signaling"
	"github.com/pion/webrtc/v4"
)

// creationWait bounds how long a caller waits for another in-flight
// construction of the same peer to finish.
const creationWait = 5 * time.Second

// SignalSender delivers signaling payloads to a specific remote peer.
// Empty username means broadcast.
type SignalSender interface {
	SendSignal(to, msgType string, payload any)
}

// RemoteStream describes one remote participant's playable media.
type RemoteStream struct {
	Username string
	HasAudio bool
	HasVideo bool
	State    webrtc.PeerConnectionState
	Status   StatusMessage
}

// Manager maintains one media connection per remote participant: it
// mediates offer/answer/candidate exchange and exposes the set of
// currently playable remote streams.
type Manager struct {
	cfg      *config.Config
	source   *media.Source
	send     SignalSender
	username string

	mu       sync.Mutex
	peers    map[string]*Peer
	creating map[string]chan struct{}

	// Candidates that arrived before any connection existed for the
	// sender, keyed by remote username.
	early map[string][]webrtc.ICECandidateInit

	onChange func()
}

// NewManager creates a peer connection manager for the admitted session.
func NewManager(cfg *config.Config, source *media.Source, send SignalSender, username string) *Manager {
	return &Manager{
		cfg:      cfg,
		source:   source,
		send:     send,
		username: username,
		peers:    make(map[string]*Peer),
		creating: make(map[string]chan struct{}),
		early:    make(map[string][]webrtc.ICECandidateInit),
	}
}

// OnChange registers the callback fired whenever the remote stream set
// or a peer's state changes.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *Manager) notifyChange() {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (m *Manager) newPeerConnection() (*webrtc.PeerConnection, error) {
	iceServers := []webrtc.ICEServer{{URLs: m.cfg.GetSTUNServers()}}

	turnServers := m.cfg.GetTURNServers()
	if turnServers != nil {
		username, password := m.cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && m.cfg.ForceRelay {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
}

// EnsureConnection returns the live peer for username, constructing it if
// needed. At most one construction runs per key; concurrent callers wait
// (bounded) for the in-flight attempt. The initiator flag only matters at
// creation time: the host is always the initiator toward a newly-admitted
// participant.
func (m *Manager) EnsureConnection(username string, initiator bool) (*Peer, error) {
	for {
		m.mu.Lock()
		if p, ok := m.peers[username]; ok {
			state := p.ConnectionState()
			if state != webrtc.PeerConnectionStateFailed && state != webrtc.PeerConnectionStateClosed {
				m.mu.Unlock()
				return p, nil
			}
			// Superseding connection replaces the dead one.
			delete(m.peers, username)
			go p.close()
		}

		if inflight, ok := m.creating[username]; ok {
			m.mu.Unlock()
			select {
			case <-inflight:
				continue
			case <-time.After(creationWait):
				return nil, meeting.NewPeerError("create connection", username, meeting.ErrTimeout)
			}
		}

		inflight := make(chan struct{})
		m.creating[username] = inflight
		m.mu.Unlock()

		p, err := m.buildPeer(username, initiator)

		m.mu.Lock()
		delete(m.creating, username)
		close(inflight)
		var early []webrtc.ICECandidateInit
		if err == nil {
			m.peers[username] = p
			early = m.early[username]
			delete(m.early, username)
		}
		m.mu.Unlock()

		if err != nil {
			return nil, meeting.NewPeerError("create connection", username, err)
		}

		for _, candidate := range early {
			if addErr := p.addCandidate(candidate); addErr != nil {
				slog.Warn("early candidate rejected", "peer", username, "error", addErr)
			}
		}

		if initiator {
			if err := m.sendOffer(p); err != nil {
				return nil, err
			}
		}

		m.notifyChange()
		return p, nil
	}
}

func (m *Manager) buildPeer(username string, initiator bool) (*Peer, error) {
	pc, err := m.newPeerConnection()
	if err != nil {
		return nil, err
	}

	p := &Peer{username: username, initiator: initiator, pc: pc}

	audioSender, err := pc.AddTrack(m.source.Audio())
	if err != nil {
		pc.Close()
		return nil, err
	}
	videoSender, err := pc.AddTrack(m.source.Video())
	if err != nil {
		pc.Close()
		return nil, err
	}
	p.audioSender = audioSender
	p.videoSender = videoSender

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		m.send.SendSignal(username, signaling.TypeICECandidate, signaling.CandidatePayload{Candidate: raw})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.markTrack(track.Kind())
		slog.Debug("remote track", "peer", username, "kind", track.Kind().String())
		m.notifyChange()
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Debug("connection state", "peer", username, "state", state.String())
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			// Negotiation failure drops the stream silently; the next
			// admission/readiness cycle recovers it.
			m.dropPeer(username, p)
		}
		m.notifyChange()
	})

	onStatus := func(string, StatusMessage) { m.notifyChange() }
	if initiator {
		dc, err := pc.CreateDataChannel(statusChannelLabel, nil)
		if err != nil {
			pc.Close()
			return nil, err
		}
		p.setStatusChannel(dc, m.localStatus(), onStatus)
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			if dc.Label() != statusChannelLabel {
				return
			}
			p.setStatusChannel(dc, m.localStatus(), onStatus)
		})
	}

	return p, nil
}

func (m *Manager) sendOffer(p *Peer) error {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return meeting.NewPeerError("create offer", p.username, err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return meeting.NewPeerError("set local description", p.username, err)
	}

	local := p.pc.LocalDescription()
	m.send.SendSignal(p.username, signaling.TypeOffer, signaling.SDPPayload{
		Type: local.Type.String(),
		SDP:  local.SDP,
	})
	return nil
}

// HandleOffer applies a remote offer, creating the peer on demand. On
// glare the initiator's offer wins the round: the impolite side ignores
// the incoming offer entirely, while the polite (non-initiator) side
// abandons its own offer by replacing the connection and answering on
// the fresh one. SetLocalDescription rejects rollback descriptions, so
// yielding in place is not an option.
func (m *Manager) HandleOffer(from string, payload signaling.SDPPayload) error {
	p, err := m.EnsureConnection(from, false)
	if err != nil {
		return err
	}

	if p.pc.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
		if p.initiator {
			slog.Debug("ignoring remote offer, local offer wins", "peer", from)
			return nil
		}
		slog.Debug("superseding glared connection", "peer", from)
		p.mu.Lock()
		carried := p.pending
		p.pending = nil
		p.mu.Unlock()

		m.dropPeer(from, p)
		fresh, err := m.EnsureConnection(from, false)
		if err != nil {
			return err
		}
		for _, candidate := range carried {
			if addErr := fresh.addCandidate(candidate); addErr != nil {
				slog.Warn("carried candidate rejected", "peer", from, "error", addErr)
			}
		}
		p = fresh
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: payload.SDP}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return meeting.NewPeerError("set remote description", from, err)
	}
	p.flushPending()

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return meeting.NewPeerError("create answer", from, err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return meeting.NewPeerError("set local description", from, err)
	}

	local := p.pc.LocalDescription()
	m.send.SendSignal(from, signaling.TypeAnswer, signaling.SDPPayload{
		Type: local.Type.String(),
		SDP:  local.SDP,
	})
	return nil
}

// HandleAnswer applies a remote answer to our outstanding offer.
func (m *Manager) HandleAnswer(from string, payload signaling.SDPPayload) error {
	p, ok := m.Peer(from)
	if !ok {
		return meeting.NewPeerError("handle answer", from, meeting.ErrUnexpectedSignal)
	}
	if p.pc.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		// Redelivered or stale answer; the connection already moved on.
		return nil
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: payload.SDP}
	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return meeting.NewPeerError("set remote description", from, err)
	}
	p.flushPending()
	return nil
}

// HandleCandidate applies or buffers a remote ICE candidate. Candidates
// for peers that do not exist yet are held until the connection is built.
func (m *Manager) HandleCandidate(from string, payload signaling.CandidatePayload) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload.Candidate, &candidate); err != nil {
		return meeting.NewPeerError("parse candidate", from, err)
	}

	m.mu.Lock()
	p, ok := m.peers[from]
	if !ok {
		m.early[from] = append(m.early[from], candidate)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	return p.addCandidate(candidate)
}

// Peer returns the live connection for username, if any.
func (m *Manager) Peer(username string) (*Peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[username]
	return p, ok
}

// drop tears down the connection for username and discards its buffered
// state. Reconnection is not automatic.
func (m *Manager) drop(username string) {
	m.dropPeer(username, nil)
}

// dropPeer is drop with an identity guard: when only is non-nil the map
// entry is removed just if it still holds that peer, so a late state
// callback from a superseded connection cannot take down its replacement.
func (m *Manager) dropPeer(username string, only *Peer) {
	m.mu.Lock()
	p, ok := m.peers[username]
	if ok && only != nil && p != only {
		m.mu.Unlock()
		return
	}
	if ok {
		delete(m.peers, username)
	}
	delete(m.early, username)
	m.mu.Unlock()

	if ok {
		p.close()
		m.notifyChange()
	}
}

// ClosePeer removes the connection to one remote, e.g. when they leave.
func (m *Manager) ClosePeer(username string) {
	m.drop(username)
}

// Close tears down every connection.
func (m *Manager) Close() {
	m.mu.Lock()
	peers := m.peers
	m.peers = make(map[string]*Peer)
	m.early = make(map[string][]webrtc.ICECandidateInit)
	m.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
}

// Streams returns the current remote stream set for rendering.
func (m *Manager) Streams() []RemoteStream {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RemoteStream, 0, len(m.peers))
	for _, p := range m.peers {
		p.mu.Lock()
		out = append(out, RemoteStream{
			Username: p.username,
			HasAudio: p.hasAudio,
			HasVideo: p.hasVideo,
			State:    p.pc.ConnectionState(),
			Status:   p.remoteStatus,
		})
		p.mu.Unlock()
	}
	return out
}

func (m *Manager) localStatus() StatusMessage {
	return StatusMessage{
		Username: m.username,
		Muted:    m.source.Muted(),
		VideoOff: m.source.VideoOff(),
		Sharing:  m.source.Sharing(),
	}
}

// BroadcastStatus pushes the local mute/camera/share state to every
// connected peer over the status channel.
func (m *Manager) BroadcastStatus() {
	status := m.localStatus()

	m.mu.Lock()
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	for _, p := range peers {
		p.sendStatus(status)
	}
}

// StartScreenShare swaps the outgoing video on every existing connection
// to the screen track in place, without renegotiation.
func (m *Manager) StartScreenShare() error {
	track, err := m.source.StartScreen()
	if err != nil {
		return meeting.NewError("start screen share", err)
	}
	m.replaceVideoAll(track)
	m.BroadcastStatus()
	return nil
}

// StopScreenShare restores the camera track on the same connections.
func (m *Manager) StopScreenShare() {
	camera := m.source.StopScreen()
	m.replaceVideoAll(camera)
	m.BroadcastStatus()
}

func (m *Manager) replaceVideoAll(track webrtc.TrackLocal) {
	m.mu.Lock()
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	for _, p := range peers {
		if err := p.replaceVideo(track); err != nil {
			slog.Warn("track replace failed", "peer", p.username, "error", err)
		}
	}
}
