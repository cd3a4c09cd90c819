package websocket

import (
	"encoding/json"
	"time"

	"kbchat-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is a middleman between the websocket connection and the chat service.
type Client struct {
	Conn *websocket.Conn

	// Buffered channel of outbound frames.
	Send chan []byte

	logger logger.ILogger
}

func NewClient(conn *websocket.Conn, log logger.ILogger) *Client {
	return &Client{Conn: conn, Send: make(chan []byte, 256), logger: log}
}

// readPump hands every inbound text frame to handle, one at a time.
// Answers are therefore streamed in the order questions arrive.
func (c *Client) readPump(handle func(raw []byte)) {
	defer close(c.Send)

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WS", "Unexpected close", map[string]interface{}{"error": err.Error()})
			}
			return
		}
		handle(raw)
		// A long answer must not count against the idle deadline.
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// writePump pumps frames from Send to the websocket connection.
func (c *Client) writePump(done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		close(done)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("WS", "Write failed", map[string]interface{}{"error": err.Error()})
				c.drain()
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.drain()
				return
			}
		}
	}
}

// drain keeps the reader from blocking on Send after the writer is gone.
func (c *Client) drain() {
	go func() {
		for range c.Send {
		}
	}()
}

func (c *Client) sendJSON(v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("WS", "Cannot encode frame", map[string]interface{}{"error": err.Error()})
		return
	}
	c.Send <- raw
}
