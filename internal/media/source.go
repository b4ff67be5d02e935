package media

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// Source is the local media stream: one audio and one video track shared
// across all outgoing peer connections. There is exactly one Source per
// session; it is never cloned. Capture and encoding are the caller's
// concern: the Source only hands out tracks and swaps the outgoing video
// between camera and screen.
type Source struct {
	mu sync.Mutex

	audio  *webrtc.TrackLocalStaticSample
	camera *webrtc.TrackLocalStaticSample
	screen *webrtc.TrackLocalStaticSample

	muted    bool
	videoOff bool
}

// NewSource acquires the local tracks. Failure here is a media-permission
// class error: the session must not proceed until it is resolved.
func NewSource() (*Source, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "gather-mic")
	if err != nil {
		return nil, err
	}

	camera, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "gather-camera")
	if err != nil {
		return nil, err
	}

	return &Source{audio: audio, camera: camera}, nil
}

// Audio returns the shared microphone track.
func (s *Source) Audio() *webrtc.TrackLocalStaticSample {
	return s.audio
}

// Camera returns the shared camera track.
func (s *Source) Camera() *webrtc.TrackLocalStaticSample {
	return s.camera
}

// Video returns whichever video track is currently outgoing: the screen
// track while sharing, the camera otherwise.
func (s *Source) Video() *webrtc.TrackLocalStaticSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.screen != nil {
		return s.screen
	}
	return s.camera
}

// StartScreen creates the screen capture track. The existing connections
// keep running; callers swap the outgoing sender track in place.
func (s *Source) StartScreen() (*webrtc.TrackLocalStaticSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.screen != nil {
		return s.screen, nil
	}

	screen, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "screen", "gather-screen")
	if err != nil {
		return nil, err
	}
	s.screen = screen
	return screen, nil
}

// StopScreen drops the screen track and returns the camera track to
// restore on the same senders.
func (s *Source) StopScreen() *webrtc.TrackLocalStaticSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen = nil
	return s.camera
}

// Sharing reports whether the screen track is active.
func (s *Source) Sharing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen != nil
}

// SetMuted flips the microphone state. Sample producers consult this
// before writing.
func (s *Source) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *Source) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// SetVideoOff flips the camera state.
func (s *Source) SetVideoOff(off bool) {
	s.mu.Lock()
	s.videoOff = off
	s.mu.Unlock()
}

func (s *Source) VideoOff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoOff
}

// WriteAudio forwards a captured audio sample to the shared track,
// honoring the mute state.
func (s *Source) WriteAudio(sample media.Sample) error {
	if s.Muted() {
		return nil
	}
	return s.audio.WriteSample(sample)
}

// WriteVideo forwards a captured video sample to the current video track.
func (s *Source) WriteVideo(sample media.Sample) error {
	if s.VideoOff() && !s.Sharing() {
		return nil
	}
	return s.Video().WriteSample(sample)
}
