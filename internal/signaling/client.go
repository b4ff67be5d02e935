package signaling

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	heartbeatInterval = 30 * time.Second
	reconnectDelay    = 3 * time.Second
	maxMessageSize    = 256 * 1024
)

// Handler receives inbound envelopes. At most one handler is active;
// registering a new one replaces the previous one.
type Handler func(*Envelope)

// Client manages the per-room WebSocket connection to the signaling relay.
// Connectivity is assumed eventually achievable: dial failures and
// unintentional closes feed a fixed-delay retry loop and are never
// surfaced to callers.
type Client struct {
	serverURL string
	token     string

	mu      sync.Mutex
	conn    *websocket.Conn
	handler Handler

	outgoing chan *Envelope
	done     chan struct{}
	closed   bool
}

// NewClient creates a signaling client for the given room socket URL.
func NewClient(serverURL, token string) *Client {
	return &Client{
		serverURL: serverURL,
		token:     token,
		outgoing:  make(chan *Envelope, 32),
		done:      make(chan struct{}),
	}
}

// SetHandler registers the inbound message handler, replacing any
// previous one.
func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Connect starts the connection supervisor. It returns immediately; the
// channel comes up in the background and recovers from transient drops
// until Close is called.
func (c *Client) Connect() {
	go c.run()
}

func (c *Client) run() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		header := http.Header{}
		if c.token != "" {
			header.Set("Authorization", "Bearer "+c.token)
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.serverURL, header)
		if err != nil {
			slog.Warn("signaling dial failed", "error", err)
			select {
			case <-c.done:
				return
			case <-time.After(reconnectDelay):
				continue
			}
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		slog.Debug("signaling channel open", "url", c.serverURL)

		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		stop := make(chan struct{})
		go c.writePump(conn, stop)
		c.readPump(conn)
		close(stop)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()

		select {
		case <-c.done:
			// Intentional teardown: no reconnect.
			return
		case <-time.After(reconnectDelay):
			slog.Debug("signaling reconnecting")
		}
	}
}

// readPump reads envelopes until the connection drops and hands each one
// to the active handler.
func (c *Client) readPump(conn *websocket.Conn) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			slog.Debug("signaling read closed", "error", err)
			return
		}

		c.mu.Lock()
		handler := c.handler
		c.mu.Unlock()

		if handler != nil {
			handler(&env)
		}
	}
}

// writePump writes outgoing envelopes and sends periodic keep-alives:
// a websocket-level ping and an application-level heartbeat envelope.
// A missing heartbeat response is not itself treated as disconnection.
func (c *Client) writePump(conn *websocket.Conn, stop chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	heartbeat := time.NewTicker(heartbeatInterval)

	defer func() {
		ping.Stop()
		heartbeat.Stop()
		conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				return
			}

		case <-heartbeat.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(&Envelope{Type: TypePing}); err != nil {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-stop:
			return

		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send enqueues an envelope for delivery, fire-and-forget. If the channel
// is not open the message is dropped, not queued; callers resend critical
// messages themselves.
func (c *Client) Send(env *Envelope) {
	if !c.IsConnected() {
		slog.Debug("signaling send dropped, channel not open", "type", env.Type)
		return
	}

	select {
	case c.outgoing <- env:
	default:
		slog.Debug("signaling send dropped, queue full", "type", env.Type)
	}
}

// IsConnected reports whether the channel is currently open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close tears the channel down for good. No reconnection is attempted.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
