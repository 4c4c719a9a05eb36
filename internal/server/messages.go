package server

import (
	"time"

	"github.com/npezzotti/ketchup-chat/internal/protocol"
)

// ClientMessage is an event read from a client, tagged with its origin.
type ClientMessage struct {
	protocol.ClientEvent
	client *Client
}

func (m *ClientMessage) Channel() protocol.Channel {
	if m.client == nil {
		return ""
	}

	return m.client.channel
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
