// Package wsclient is the client side of one hub channel.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/ketchup-chat/internal/protocol"
)

const writeWait = 10 * time.Second

var ErrClosed = errors.New("connection closed")

// Conn is a websocket connection to one hub channel. Incoming events are
// delivered on Events until the connection closes.
type Conn struct {
	conn    *websocket.Conn
	log     *log.Logger
	writeMu sync.Mutex
	events  chan protocol.ServerEvent
	done    chan struct{}
	once    sync.Once
}

func Dial(ctx context.Context, url string, logger *log.Logger) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Conn{
		conn:   ws,
		log:    logger,
		events: make(chan protocol.ServerEvent, 64),
		done:   make(chan struct{}),
	}
	go c.read()

	return c, nil
}

func (c *Conn) read() {
	defer close(c.events)
	defer c.close()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			return
		}

		var ev protocol.ServerEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Printf("ws: invalid event: %v", err)
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

// Send writes one event. It is safe for concurrent use.
func (c *Conn) Send(ctx context.Context, ev protocol.ClientEvent) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

func (c *Conn) Events() <-chan protocol.ServerEvent {
	return c.events
}

// Close sends a close frame and tears down the connection.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	c.close()
	return err
}

func (c *Conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
