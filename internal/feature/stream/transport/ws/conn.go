package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stock_feed/internal/feature/quotes/domain/entity"
	"stock_feed/internal/feature/stream/usecase"
)

// ErrConnClosed is returned by push operations after Close. The
// scheduler treats any push error as transport loss and exits.
var ErrConnClosed = errors.New("websocket connection closed")

const writeTimeout = 10 * time.Second

// conn wraps a websocket with serialized writes. Both the read-handler
// goroutine and the scheduler loop write to the socket; gorilla permits
// only one concurrent writer, so a mutex guards every write together
// with the closed flag. After Close nothing is ever written again, even
// if an in-flight tick completes afterwards.
type conn struct {
	sock *websocket.Conn

	mu     sync.Mutex
	closed bool
}

var _ usecase.QuotePusher = (*conn)(nil)

func newConn(sock *websocket.Conn) *conn {
	return &conn{sock: sock}
}

// PushQuote sends a price_update message.
func (c *conn) PushQuote(q entity.Quote) error {
	return c.writeJSON(newPriceUpdate(q))
}

// PushError sends a structured error event for one symbol.
func (c *conn) PushError(symbol, message string) error {
	return c.writeJSON(errorMessage{Type: "error", Message: symbol + ": " + message})
}

// pushInvalid sends the bare error reply for malformed client input.
func (c *conn) pushInvalid(message string) error {
	return c.writeJSON(invalidMessage{Error: message})
}

// pushErrorMessage sends a structured error event without a symbol.
func (c *conn) pushErrorMessage(message string) error {
	return c.writeJSON(errorMessage{Type: "error", Message: message})
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	_ = c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.sock.WriteJSON(v); err != nil {
		return err
	}
	return nil
}

// Close marks the connection closed and closes the socket. Idempotent.
func (c *conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	_ = c.sock.Close()
}
