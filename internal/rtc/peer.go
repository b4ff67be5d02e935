package rtc

import (
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

const statusChannelLabel = "status"

// Peer is the logical connection to one remote participant. At most one
// live Peer exists per remote username; a superseding connection replaces
// it rather than accumulating.
//
// The initiator side is impolite: it generates the offer toward the remote
// and never yields on negotiation glare. The non-initiator is polite and
// abandons its own local offer, connection included, when a remote offer
// arrives mid-flight.
type Peer struct {
	username  string
	initiator bool
	pc        *webrtc.PeerConnection

	mu sync.Mutex

	// Remote ICE candidates that arrived before the remote description.
	// Buffered, never dropped; flushed the moment the description lands.
	pending []webrtc.ICECandidateInit

	audioSender *webrtc.RTPSender
	videoSender *webrtc.RTPSender

	status       *webrtc.DataChannel
	remoteStatus StatusMessage

	hasAudio bool
	hasVideo bool
	closed   bool
}

// Username returns the remote participant this peer connects to.
func (p *Peer) Username() string {
	return p.username
}

// Initiator reports whether the local side generated the offer.
func (p *Peer) Initiator() bool {
	return p.initiator
}

// ConnectionState returns the transport connectivity state.
func (p *Peer) ConnectionState() webrtc.PeerConnectionState {
	return p.pc.ConnectionState()
}

// addCandidate applies a remote ICE candidate, or buffers it when the
// remote description is not yet set.
func (p *Peer) addCandidate(candidate webrtc.ICECandidateInit) error {
	p.mu.Lock()
	if p.pc.RemoteDescription() == nil {
		p.pending = append(p.pending, candidate)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.pc.AddICECandidate(candidate)
}

// flushPending applies every buffered candidate. Called immediately after
// the remote description is applied.
func (p *Peer) flushPending() {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, candidate := range pending {
		if err := p.pc.AddICECandidate(candidate); err != nil {
			slog.Warn("buffered candidate rejected", "peer", p.username, "error", err)
		}
	}
}

// setStatusChannel wires the status data channel handlers for either the
// locally-created or remotely-announced channel.
func (p *Peer) setStatusChannel(dc *webrtc.DataChannel, local StatusMessage, onStatus func(string, StatusMessage)) {
	p.mu.Lock()
	p.status = dc
	p.mu.Unlock()

	dc.OnOpen(func() {
		if data, err := encodeStatus(local); err == nil {
			dc.Send(data)
		}
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		status, err := decodeStatus(msg.Data)
		if err != nil {
			slog.Debug("bad status message", "peer", p.username, "error", err)
			return
		}
		p.mu.Lock()
		p.remoteStatus = status
		p.mu.Unlock()
		onStatus(p.username, status)
	})
}

// sendStatus pushes the local status to the remote side if the channel
// is open.
func (p *Peer) sendStatus(status StatusMessage) {
	p.mu.Lock()
	dc := p.status
	p.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return
	}
	if data, err := encodeStatus(status); err == nil {
		dc.Send(data)
	}
}

// replaceVideo swaps the outgoing video track in place on the existing
// transport session, without renegotiation.
func (p *Peer) replaceVideo(track webrtc.TrackLocal) error {
	p.mu.Lock()
	sender := p.videoSender
	p.mu.Unlock()

	if sender == nil {
		return nil
	}
	return sender.ReplaceTrack(track)
}

func (p *Peer) markTrack(kind webrtc.RTPCodecType) {
	p.mu.Lock()
	switch kind {
	case webrtc.RTPCodecTypeAudio:
		p.hasAudio = true
	case webrtc.RTPCodecTypeVideo:
		p.hasVideo = true
	}
	p.mu.Unlock()
}

func (p *Peer) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.pending = nil
	p.mu.Unlock()

	if err := p.pc.Close(); err != nil {
		slog.Debug("peer close", "peer", p.username, "error", err)
	}
}
