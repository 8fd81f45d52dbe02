package hub

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound text fragments
	maxMessageSize = 64 * 1024
)

// Conn wraps a websocket connection for one session. Writes from the
// session and keepalive pings are serialized; reads belong to the session.
type Conn struct {
	ws *websocket.Conn

	mu    sync.Mutex
	stop  chan struct{}
	pings sync.WaitGroup
	once  sync.Once
	err   error
}

// NewConn prepares ws for a session and starts the ping loop.
func NewConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:   ws,
		stop: make(chan struct{}),
	}

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.pings.Add(1)
	go c.pingPump()
	return c
}

// ReadMessage reads the next frame. Any frame extends the read deadline.
func (c *Conn) ReadMessage() (int, []byte, error) {
	msgType, data, err := c.ws.ReadMessage()
	if err == nil {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	}
	return msgType, data, err
}

// WriteMessage writes one frame.
func (c *Conn) WriteMessage(msgType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(msgType, data)
}

// Close waits for the ping loop to stop, sends a close frame and closes the
// socket, which fails a pending ReadMessage. It is safe to call more than
// once and must be called before the websocket handler returns.
func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.stop)
		c.pings.Wait()

		c.mu.Lock()
		defer c.mu.Unlock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
		c.err = c.ws.Close()
	})
	return c.err
}

// pingPump keeps the connection alive while the session waits for speech.
func (c *Conn) pingPump() {
	defer c.pings.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		case <-c.stop:
			return
		}
	}
}
