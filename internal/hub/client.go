package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/AnkitKumarMitra/Discordia/internal/config"
	"github.com/AnkitKumarMitra/Discordia/internal/domain"
	pkglog "github.com/AnkitKumarMitra/Discordia/pkg/log"
	"github.com/gorilla/websocket"
)

// DisconnectHandler is called when a client disconnects, before the
// client is unregistered, so cleanup can still reach the session.
type DisconnectHandler func(*Client)

// Client represents one connected WebSocket client.
//
// Send is never closed: senders race with disconnection (a signaling
// relay can resolve a client that is tearing down at that instant), so
// shutdown is signalled through done instead.
type Client struct {
	ID      string
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Session *domain.Session

	done              chan struct{}
	closeOnce         sync.Once
	config            config.WebSocketConfig
	disconnectHandler DisconnectHandler
}

// NewClient creates a client bound to a connection. The session is
// created here but only authenticated by the connect handler.
func NewClient(id string, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:      id,
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Session: domain.NewSession(id),
		done:    make(chan struct{}),
		config:  cfg,
	}
}

// Done returns a channel that is closed once the client is shut down.
func (c *Client) Done() <-chan struct{} { return c.done }

// close marks the client shut down. Idempotent; called by the hub on
// unregister.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// SetDisconnectHandler sets the handler to be called on disconnect.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.disconnectHandler = handler
}

// ReadPump pumps messages from the WebSocket connection to the handler.
// A missed pong deadline breaks the loop and runs the disconnect path.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		if c.disconnectHandler != nil {
			c.disconnectHandler(c)
		}
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := pkglog.L()
				l.Error().Err(err).Str(pkglog.FieldClientID, c.ID).Msg("websocket error")
			}
			break
		}

		if c.Session != nil {
			c.Session.UpdateActivity()
		}

		handler(c, message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage marshals and queues a message for this client. Messages
// are dropped when the send buffer is full or the client has shut
// down; queueing to a disconnecting client must never panic.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	if c.isClosed() {
		return nil
	}
	select {
	case c.Send <- data:
	default:
	}
	return nil
}
