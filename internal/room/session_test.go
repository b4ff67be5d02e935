package room

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapelware/gather/internal/api"
	"github.com/chapelware/gather/internal/config"
	"github.com/chapelware/gather/internal/meeting"
	"github.com/chapelware/gather/internal/signaling"
)

// testServer records requests and answers everything with 200 and an
// empty JSON object, which satisfies every fire-and-forget endpoint.
type testServer struct {
	mu    sync.Mutex
	paths []string
	srv   *httptest.Server

	// handle overrides the default response when set.
	handle func(w http.ResponseWriter, r *http.Request) bool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.paths = append(ts.paths, r.URL.Path)
		handle := ts.handle
		ts.mu.Unlock()

		if handle != nil && handle(w, r) {
			return
		}
		w.Write([]byte("{}"))
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) sawPath(path string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, p := range ts.paths {
		if p == path {
			return true
		}
	}
	return false
}

func newTestSession(t *testing.T, ts *testServer) *Session {
	t.Helper()
	cfg, err := config.Load(config.Options{Username: "me", Token: "token"})
	require.NoError(t, err)

	client := api.NewClient(ts.srv.URL, "token")
	s := NewSession(cfg, client, "room1", "me")
	t.Cleanup(s.teardown)
	return s
}

func waitEvent(t *testing.T, s *Session, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("event %v never arrived", kind)
		}
	}
}

func envelope(t *testing.T, msgType, from, to string, payload any) *signaling.Envelope {
	t.Helper()
	env, err := signaling.NewEnvelope(msgType, from, to, payload)
	require.NoError(t, err)
	return env
}

func TestDispatchSkipsOwnEchoes(t *testing.T) {
	ts := newTestServer(t)
	s := newTestSession(t, ts)

	// The relay echoes broadcasts back to the sender.
	s.dispatch(envelope(t, signaling.TypeChatMessage, "me", "", signaling.ChatPayload{MessageID: 1, Content: "hi"}))
	assert.Empty(t, s.Chat().Messages())
}

func TestDispatchSkipsMessagesForOthers(t *testing.T) {
	ts := newTestServer(t)
	s := newTestSession(t, ts)

	s.dispatch(envelope(t, signaling.TypeChatMessage, "alice", "bob", signaling.ChatPayload{MessageID: 1, Content: "hi"}))
	assert.Empty(t, s.Chat().Messages())
}

func TestDispatchDeduplicatesByID(t *testing.T) {
	ts := newTestServer(t)
	s := newTestSession(t, ts)

	env := envelope(t, signaling.TypeChatMessage, "alice", "", signaling.ChatPayload{MessageID: 1, Sender: "alice", Content: "hi"})

	// Same envelope arrives over the socket and again from the polling
	// fallback; it must only be processed once.
	s.dispatch(env)
	s.dispatch(env)
	assert.Len(t, s.Chat().Messages(), 1)
}

func TestDispatchApprovalForSelf(t *testing.T) {
	ts := newTestServer(t)
	s := newTestSession(t, ts)

	s.dispatch(envelope(t, signaling.TypeApproval, "host", "me", signaling.AdmissionPayload{Username: "me"}))

	waitEvent(t, s, EventApproved)
	assert.True(t, s.Admission().Approved())
	assert.NotNil(t, s.Manager())
	assert.NotNil(t, s.Source())
}

func TestDispatchApprovalForSomeoneElse(t *testing.T) {
	ts := newTestServer(t)
	s := newTestSession(t, ts)

	// Broadcast approval notifications name the participant they concern.
	s.dispatch(envelope(t, signaling.TypeApproval, "host", "", signaling.AdmissionPayload{Username: "alice"}))
	assert.False(t, s.Admission().Approved())
	assert.Nil(t, s.Manager())
}

func TestDispatchRejectionIsTerminal(t *testing.T) {
	ts := newTestServer(t)
	s := newTestSession(t, ts)

	s.dispatch(envelope(t, signaling.TypeRejection, "host", "me", signaling.AdmissionPayload{Username: "me"}))

	waitEvent(t, s, EventRejected)
	assert.Equal(t, api.StatusRejected, s.Admission().Status())
	assert.Nil(t, s.Manager())
}

func TestDispatchMeetingEnded(t *testing.T) {
	ts := newTestServer(t)
	s := newTestSession(t, ts)

	s.dispatch(envelope(t, signaling.TypeMeetingEnd, "host", "", nil))
	waitEvent(t, s, EventEnded)
}

func TestDispatchScreenShareTracksPresenter(t *testing.T) {
	ts := newTestServer(t)
	s := newTestSession(t, ts)

	s.dispatch(envelope(t, signaling.TypeScreenShareStart, "alice", "", signaling.AdmissionPayload{Username: "alice"}))
	waitEvent(t, s, EventScreenShare)
	assert.Equal(t, "alice", s.SharingUser())

	// A stop from someone who is not the presenter changes nothing.
	s.dispatch(envelope(t, signaling.TypeScreenShareStop, "bob", "", nil))
	assert.Equal(t, "alice", s.SharingUser())

	s.dispatch(envelope(t, signaling.TypeScreenShareStop, "alice", "", nil))
	assert.Empty(t, s.SharingUser())
}

func TestDispatchUserJoinedRefreshesRoom(t *testing.T) {
	ts := newTestServer(t)
	s := newTestSession(t, ts)

	s.dispatch(envelope(t, signaling.TypeUserJoined, "alice", "", nil))

	ev := waitEvent(t, s, EventRoomUpdated)
	assert.Equal(t, "alice", ev.Username)
}

func TestHandleMalformedSDPPayload(t *testing.T) {
	ts := newTestServer(t)
	s := newTestSession(t, ts)

	// Manager exists once admission lands; a garbled relay payload after
	// that must surface as a signaling error, not a panic or silence.
	s.dispatch(envelope(t, signaling.TypeApproval, "host", "me", signaling.AdmissionPayload{Username: "me"}))
	waitEvent(t, s, EventApproved)

	err := s.handle(&signaling.Envelope{
		ID:      "sig-bad",
		Type:    signaling.TypeOffer,
		From:    "host",
		To:      "me",
		Payload: json.RawMessage(`"not an object"`),
	})
	assert.ErrorIs(t, err, meeting.ErrSignalingError)
}

func TestDispatchSignalsBeforeAdmissionIgnored(t *testing.T) {
	ts := newTestServer(t)
	s := newTestSession(t, ts)

	// An offer arriving before media setup must not crash or create state.
	err := s.handle(envelope(t, signaling.TypeOffer, "host", "me", signaling.SDPPayload{Type: "offer", SDP: "v=0"}))
	assert.NoError(t, err)
	assert.Nil(t, s.Manager())
}

func TestPollSignalsFeedsDispatch(t *testing.T) {
	ts := newTestServer(t)
	payload, _ := json.Marshal(signaling.ChatPayload{MessageID: 7, Sender: "alice", Content: "polled"})
	records := []api.SignalRecord{{
		ID:          "sig-1",
		MessageType: signaling.TypeChatMessage,
		Sender:      "alice",
		Data:        payload,
		CreatedAt:   time.Now().UTC(),
	}}
	ts.handle = func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == "/video-meetings/room1/get_signals/" {
			json.NewEncoder(w).Encode(records)
			return true
		}
		return false
	}

	s := newTestSession(t, ts)
	s.pollSignals(context.Background())

	msgs := s.Chat().Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "polled", msgs[0].Content)

	// Polling again redelivers the same record; dedupe holds.
	s.pollSignals(context.Background())
	assert.Len(t, s.Chat().Messages(), 1)
}

func TestStartFilesJoinRequestAfterEarlierRejection(t *testing.T) {
	ts := newTestServer(t)
	// The room snapshot still carries the rejected record from a prior
	// attempt until a new join request resets it to pending.
	ts.handle = func(w http.ResponseWriter, r *http.Request) bool {
		switch r.URL.Path {
		case "/video-meetings/room1/":
			status := api.StatusRejected
			if ts.sawPath("/video-meetings/room1/join_request/") {
				status = api.StatusPending
			}
			json.NewEncoder(w).Encode(api.Room{
				ID:                "room1",
				HostUsername:      "alice",
				Status:            api.RoomActive,
				ParticipantStatus: status,
			})
			return true
		case "/video-meetings/room1/join_request/":
			json.NewEncoder(w).Encode(api.Participant{ID: 7, Username: "me", Status: api.StatusPending})
			return true
		}
		return false
	}

	s := newTestSession(t, ts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, s.Start(ctx))
	assert.True(t, ts.sawPath("/video-meetings/room1/join_request/"))
	assert.Equal(t, api.StatusPending, s.Admission().Status())
}

func TestSendSignalFallsBackToREST(t *testing.T) {
	ts := newTestServer(t)
	s := newTestSession(t, ts)

	// The socket was never connected, so delivery must go through the API.
	s.SendSignal("alice", signaling.TypeJoinReady, signaling.AdmissionPayload{Username: "me"})

	assert.Eventually(t, func() bool {
		return ts.sawPath("/video-meetings/room1/send_signal/")
	}, 2*time.Second, 10*time.Millisecond)
}
