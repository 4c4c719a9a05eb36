// Package protocol defines the events exchanged between the broadcast hub
// and its clients. Each websocket text frame carries one JSON event.
package protocol

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/npezzotti/ketchup-chat/internal/types"
)

// Channel names one of the hub's two logical channels.
type Channel string

const (
	ChannelChat Channel = "chat"
	ChannelNews Channel = "news"
)

const (
	EventCreateOrJoin = "create-or-join"
	EventJoined       = "joined"
	EventChat         = "chat"
	EventNews         = "news"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrMissingRoom  = errors.New("missing room")
	ErrMissingUser  = errors.New("missing user id")
	ErrMissingText  = errors.New("missing text")
)

// ClientEvent is sent by a client to the hub.
type ClientEvent struct {
	Event  string       `json:"event"`
	Room   types.RoomId `json:"room,omitempty"`
	UserId string       `json:"user_id"`
	Text   string       `json:"text,omitempty"`
}

// ServerEvent is fanned out by the hub. Timestamp is assigned by the hub.
type ServerEvent struct {
	Event     string       `json:"event"`
	Room      types.RoomId `json:"room,omitempty"`
	UserId    string       `json:"user_id"`
	Text      string       `json:"text,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Validate reports whether e is a well-formed event for channel ch.
func (e *ClientEvent) Validate(ch Channel) error {
	switch ch {
	case ChannelChat:
		if e.Event != EventCreateOrJoin && e.Event != EventChat {
			return fmt.Errorf("%w %q on %s channel", ErrUnknownEvent, e.Event, ch)
		}
		if e.Room == "" {
			return ErrMissingRoom
		}
	case ChannelNews:
		if e.Event != EventCreateOrJoin && e.Event != EventNews {
			return fmt.Errorf("%w %q on %s channel", ErrUnknownEvent, e.Event, ch)
		}
	default:
		return fmt.Errorf("unknown channel %q", ch)
	}

	if e.UserId == "" {
		return ErrMissingUser
	}
	if (e.Event == EventChat || e.Event == EventNews) && strings.TrimSpace(e.Text) == "" {
		return ErrMissingText
	}

	return nil
}

func JoinRoom(room types.RoomId, userId string) ClientEvent {
	return ClientEvent{Event: EventCreateOrJoin, Room: room, UserId: userId}
}

func JoinNews(userId string) ClientEvent {
	return ClientEvent{Event: EventCreateOrJoin, UserId: userId}
}

func Chat(room types.RoomId, userId, text string) ClientEvent {
	return ClientEvent{Event: EventChat, Room: room, UserId: userId, Text: text}
}

func News(userId, text string) ClientEvent {
	return ClientEvent{Event: EventNews, UserId: userId, Text: text}
}
