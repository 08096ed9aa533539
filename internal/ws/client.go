package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// outFrame is an Envelope on its way out, with the body not yet encoded.
type outFrame struct {
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

// clientConn is one websocket client. gorilla allows a single concurrent
// writer, so data frames go through mu.
type clientConn struct {
	rawConn *websocket.Conn
	mu      sync.Mutex
}

func (c *clientConn) write(mt int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(mt, data)
}

func (c *clientConn) send(event string, body any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteJSON(outFrame{Event: event, Body: body})
}

// ping needs no lock: control frames may be written concurrently.
func (c *clientConn) ping() error {
	return c.rawConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}
