package websocket

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// Deep-chat events are pushed server to client; inbound traffic is limited
	// to keepalives, hence the small read limit.
	writeTimeout   = 10 * time.Second
	idleTimeout    = 75 * time.Second
	pingInterval   = 30 * time.Second
	maxInboundSize = 1024
	outboundBuffer = 64
)

var pongFrame = []byte(`{"type":"pong"}`)

// Client is one websocket connection of a user.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	UserID string
	Send   chan []byte
}

// Serve registers an upgraded connection for userID and blocks until either
// side closes it.
func Serve(hub *Hub, conn *websocket.Conn, userID string) {
	c := &Client{Hub: hub, Conn: conn, UserID: userID, Send: make(chan []byte, outboundBuffer)}
	hub.Register(c)

	go c.write()
	c.read()
}

// read extends the idle deadline on every control pong or application
// keepalive. Browsers cannot send ping frames, so {"type":"ping"} is answered
// with {"type":"pong"} through the outbound queue.
func (c *Client) read() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	extend := func() { c.Conn.SetReadDeadline(time.Now().Add(idleTimeout)) }
	c.Conn.SetReadLimit(maxInboundSize)
	extend()
	c.Conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		kind, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Client", "Connection closed unexpectedly", map[string]interface{}{"user_id": c.UserID, "error": err.Error()})
			}
			return
		}
		extend()
		if kind == websocket.TextMessage && isKeepalive(data) {
			select {
			case c.Send <- pongFrame:
			default:
			}
		}
	}
}

func isKeepalive(data []byte) bool {
	var frame struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(data, &frame) == nil && frame.Type == "ping"
}

// write drains the outbound queue. A closed queue means the hub dropped the
// client, which is reported to the peer as going away.
func (c *Client) write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("Client", "Write failed", map[string]interface{}{"user_id": c.UserID, "error": err.Error()})
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
