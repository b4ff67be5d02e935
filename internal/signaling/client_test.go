package signaling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// wsTestServer upgrades every request and hands the connection to accept.
func wsTestServer(t *testing.T, accept func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accept(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientConnectsAndReceives(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteJSON(&Envelope{ID: "e1", Type: TypeChatMessage, From: "alice"})
		time.Sleep(200 * time.Millisecond)
	})

	var mu sync.Mutex
	var received []*Envelope

	client := NewClient(wsURL(srv), "token")
	client.SetHandler(func(env *Envelope) {
		mu.Lock()
		received = append(received, env)
		mu.Unlock()
	})
	client.Connect()
	defer client.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "e1", received[0].ID)
	assert.Equal(t, "alice", received[0].From)
}

func TestClientSendsBearerToken(t *testing.T) {
	authCh := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCh <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	client := NewClient(wsURL(srv), "secret")
	client.Connect()
	defer client.Close()

	select {
	case auth := <-authCh:
		assert.Equal(t, "Bearer secret", auth)
	case <-time.After(2 * time.Second):
		t.Fatal("no connection attempt")
	}
}

func TestClientSendDeliversEnvelope(t *testing.T) {
	got := make(chan Envelope, 1)
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		var env Envelope
		if err := conn.ReadJSON(&env); err == nil {
			got <- env
		}
	})

	client := NewClient(wsURL(srv), "token")
	client.Connect()
	defer client.Close()

	require.Eventually(t, client.IsConnected, 2*time.Second, 10*time.Millisecond)
	client.Send(&Envelope{ID: "e2", Type: TypeJoinReady, From: "bob", To: "alice"})

	select {
	case env := <-got:
		assert.Equal(t, TypeJoinReady, env.Type)
		assert.Equal(t, "bob", env.From)
	case <-time.After(2 * time.Second):
		t.Fatal("envelope never arrived")
	}
}

func TestClientSendDropsWhenNotConnected(t *testing.T) {
	client := NewClient("ws://127.0.0.1:0/never", "token")

	// Never connected: Send must drop silently rather than block or queue.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			client.Send(&Envelope{ID: "x", Type: TypeOffer})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked while disconnected")
	}
	assert.False(t, client.IsConnected())
}

func TestClientHandlerReplacement(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteJSON(&Envelope{ID: "e3", Type: TypeReaction})
		time.Sleep(200 * time.Millisecond)
	})

	first := make(chan struct{}, 1)
	second := make(chan struct{}, 1)

	client := NewClient(wsURL(srv), "token")
	client.SetHandler(func(*Envelope) { first <- struct{}{} })
	client.SetHandler(func(*Envelope) { second <- struct{}{} })
	client.Connect()
	defer client.Close()

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement handler never invoked")
	}
	select {
	case <-first:
		t.Fatal("replaced handler still invoked")
	default:
	}
}

func TestClientCloseStopsReconnect(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		dials++
		mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	client := NewClient(wsURL(srv), "token")
	client.Connect()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dials >= 1
	}, 2*time.Second, 10*time.Millisecond)

	client.Close()
	client.Close() // idempotent

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	settled := dials
	mu.Unlock()

	// Reconnect delay is seconds; any further dial would be a bug.
	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, settled, dials)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(TypeOffer, "alice", "bob", SDPPayload{Type: "offer", SDP: "v=0"})
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "alice", env.From)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))

	var payload SDPPayload
	require.NoError(t, decoded.DecodePayload(&payload))
	assert.Equal(t, "v=0", payload.SDP)
}

func TestEnvelopeUniqueIDs(t *testing.T) {
	a, err := NewEnvelope(TypeJoinReady, "alice", "host", nil)
	require.NoError(t, err)
	b, err := NewEnvelope(TypeJoinReady, "alice", "host", nil)
	require.NoError(t, err)

	// Each retry is a distinct message so redelivery suppression never
	// collapses a deliberate resend.
	assert.NotEqual(t, a.ID, b.ID)
}
