package server

import (
	"context"
	"fmt"
	"log"

	"github.com/npezzotti/ketchup-chat/internal/protocol"
	"github.com/npezzotti/ketchup-chat/internal/stats"
	"github.com/npezzotti/ketchup-chat/internal/types"
)

const (
	metricActiveClients   = "NumActiveClients"
	metricActiveRooms     = "NumActiveRooms"
	metricEventsBroadcast = "EventsBroadcast"
	metricMalformedEvents = "MalformedEvents"
)

// newsRoom is the registry key of the news channel's implicit room.
const newsRoom types.RoomId = "news"

// ChatServer is the broadcast hub. All membership changes and fan-out
// happen on the Run goroutine, one event at a time.
type ChatServer struct {
	log            *log.Logger
	stats          stats.StatsProvider
	chat           *Registry
	news           *Registry
	clients        map[*Client]struct{}
	eventChan      chan *ClientMessage
	registerChan   chan *Client
	deRegisterChan chan *Client
	stop           chan struct{}
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, su stats.StatsProvider) (*ChatServer, error) {
	su.RegisterMetric(metricActiveClients)
	su.RegisterMetric(metricActiveRooms)
	su.RegisterMetric(metricEventsBroadcast)
	su.RegisterMetric(metricMalformedEvents)

	return &ChatServer{
		log:            logger,
		stats:          su,
		chat:           NewRegistry(),
		news:           NewRegistry(),
		clients:        make(map[*Client]struct{}),
		eventChan:      make(chan *ClientMessage, 256),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case c := <-cs.registerChan:
			cs.addClient(c)
		case c := <-cs.deRegisterChan:
			cs.removeClient(c)
		case msg := <-cs.eventChan:
			cs.dispatch(msg)
		case <-cs.stop:
			cs.log.Println("shutting down chat server")
			for c := range cs.clients {
				c.stopClient()
			}
			close(cs.done)
			return
		}
	}
}

// RegisterClient hands a newly connected client to the run loop.
func (cs *ChatServer) RegisterClient(c *Client) {
	select {
	case cs.registerChan <- c:
	case <-cs.done:
		c.stopClient()
	}
}

func (cs *ChatServer) deRegisterClient(c *Client) {
	select {
	case cs.deRegisterChan <- c:
	case <-cs.done:
	}
}

// queueEvent hands an event to the run loop without blocking the reader.
func (cs *ChatServer) queueEvent(msg *ClientMessage) bool {
	select {
	case cs.eventChan <- msg:
		return true
	default:
		cs.log.Printf("event queue full, dropping %q from client %s", msg.Event, msg.client.id)
		return false
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.log.Printf("adding %s connection %s", c.channel, c.id)
	cs.clients[c] = struct{}{}
	if c.channel == protocol.ChannelNews {
		cs.news.Join(newsRoom, c)
	}
	cs.stats.Incr(metricActiveClients)
}

// removeClient drops c from every room. No event is broadcast.
func (cs *ChatServer) removeClient(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}

	cs.log.Printf("removing %s connection %s", c.channel, c.id)
	delete(cs.clients, c)
	cs.news.LeaveAll(c)
	for _, room := range cs.chat.LeaveAll(c) {
		cs.log.Printf("room %q is empty, removing", room)
		cs.stats.Decr(metricActiveRooms)
	}
	cs.stats.Decr(metricActiveClients)
}

// dispatch applies one client event. A failure while handling an event is
// logged and never reaches the sender.
func (cs *ChatServer) dispatch(msg *ClientMessage) {
	defer func() {
		if err := recover(); err != nil {
			cs.log.Printf("panic handling %q event: %v", msg.Event, err)
			cs.stats.Incr(metricMalformedEvents)
		}
	}()

	ch := msg.Channel()
	if err := msg.Validate(ch); err != nil {
		cs.log.Printf("dropping malformed event: %v", err)
		cs.stats.Incr(metricMalformedEvents)
		return
	}

	switch {
	case ch == protocol.ChannelChat && msg.Event == protocol.EventCreateOrJoin:
		cs.joinRoom(msg.client, msg.Room, msg.UserId)
	case ch == protocol.ChannelChat && msg.Event == protocol.EventChat:
		cs.sendChat(msg.Room, msg.UserId, msg.Text)
	case ch == protocol.ChannelNews && msg.Event == protocol.EventCreateOrJoin:
		cs.joinNews(msg.client, msg.UserId)
	case ch == protocol.ChannelNews && msg.Event == protocol.EventNews:
		cs.sendNews(msg.UserId, msg.Text)
	default:
		panic(fmt.Sprintf("unhandled event %q on %s channel", msg.Event, ch))
	}
}

func (cs *ChatServer) joinRoom(c *Client, room types.RoomId, userId string) {
	if cs.chat.Join(room, c) {
		cs.log.Printf("created room %q", room)
		cs.stats.Incr(metricActiveRooms)
	}

	cs.log.Printf("%q joined room %q", userId, room)
	cs.broadcast(cs.chat, room, &protocol.ServerEvent{
		Event:     protocol.EventJoined,
		Room:      room,
		UserId:    userId,
		Timestamp: Now(),
	})
}

// sendChat does not require the sender to be a member of room.
func (cs *ChatServer) sendChat(room types.RoomId, userId, text string) {
	cs.broadcast(cs.chat, room, &protocol.ServerEvent{
		Event:     protocol.EventChat,
		Room:      room,
		UserId:    userId,
		Text:      text,
		Timestamp: Now(),
	})
}

func (cs *ChatServer) joinNews(c *Client, userId string) {
	cs.news.Join(newsRoom, c)
	cs.log.Printf("%q joined news", userId)
	cs.broadcast(cs.news, newsRoom, &protocol.ServerEvent{
		Event:     protocol.EventJoined,
		UserId:    userId,
		Timestamp: Now(),
	})
}

func (cs *ChatServer) sendNews(userId, text string) {
	cs.broadcast(cs.news, newsRoom, &protocol.ServerEvent{
		Event:     protocol.EventNews,
		UserId:    userId,
		Text:      text,
		Timestamp: Now(),
	})
}

func (cs *ChatServer) broadcast(reg *Registry, room types.RoomId, ev *protocol.ServerEvent) {
	members := reg.Members(room)
	if len(members) == 0 {
		cs.log.Printf("no members in room %q, dropping %q event", room, ev.Event)
		return
	}

	for _, c := range members {
		c.queueMessage(ev)
	}
	cs.stats.Incr(metricEventsBroadcast)
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	select {
	case cs.stop <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("stop chat server: %w", ctx.Err())
	}

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for chat server: %w", ctx.Err())
	}
}
