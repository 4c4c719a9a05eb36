// Package controller drives one client's participation in a chat room and
// the news feed. It owns the session state machine and the two append-only
// message logs, and is independent of any particular front end.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/npezzotti/ketchup-chat/internal/protocol"
	"github.com/npezzotti/ketchup-chat/internal/session"
	"github.com/npezzotti/ketchup-chat/internal/types"
	"github.com/teris-io/shortid"
	"golang.org/x/sync/errgroup"
)

type State int

const (
	StateNoIdentity State = iota
	StateIdentityKnown
	StateInRoom
)

func (s State) String() string {
	switch s {
	case StateNoIdentity:
		return "no identity"
	case StateIdentityKnown:
		return "identity known"
	case StateInRoom:
		return "in room"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const noMessages = "no messages"

var (
	ErrNoIdentity    = errors.New("no display name set")
	ErrNoRoom        = errors.New("no room selected")
	ErrAlreadyInRoom = errors.New("already in a room")
	ErrNotInRoom     = errors.New("not in a room")
	ErrEmptyMessage  = errors.New("message is empty")
)

// Navigation carries the room and name the client was started with.
type Navigation struct {
	Room string
	Name string
}

// Channel sends events on one logical hub channel.
type Channel interface {
	Send(ctx context.Context, ev protocol.ClientEvent) error
}

// HistoryStore persists messages and loads stored room history.
type HistoryStore interface {
	Persist(ctx context.Context, room types.RoomId, userId, text string) (types.Record, error)
	History(ctx context.Context, room types.RoomId) ([]types.Record, error)
}

// View renders controller output. Methods are called with the controller
// lock held and must not call back into the controller.
type View interface {
	PromptIdentity()
	PromptRoom()
	ShowSession(name string, room types.RoomId)
	AppendChat(entries ...Entry)
	AppendNews(entries ...Entry)
	Warn(msg string)
}

type Controller struct {
	mu      sync.Mutex
	log     *log.Logger
	session *session.Store
	chat    Channel
	news    Channel
	history HistoryStore
	view    View
	state   State
	room    types.RoomId
	chatLog []Entry
	newsLog []Entry
	wg      sync.WaitGroup
}

func New(logger *log.Logger, s *session.Store, chat, news Channel, hs HistoryStore, v View) *Controller {
	state := StateNoIdentity
	if s.Known() {
		state = StateIdentityKnown
	}

	return &Controller{
		log:     logger,
		session: s,
		chat:    chat,
		news:    news,
		history: hs,
		view:    v,
		state:   state,
	}
}

// Init resolves identity and room from nav. A name in nav replaces the
// stored one. When both are known the controller connects immediately.
func (c *Controller) Init(ctx context.Context, nav Navigation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name := strings.TrimSpace(nav.Name); name != "" {
		c.session.Set(name)
	}
	if room := strings.TrimSpace(nav.Room); room != "" {
		c.room = types.RoomId(room)
	}

	if !c.session.Known() {
		c.state = StateNoIdentity
		c.view.PromptIdentity()
		return ErrNoIdentity
	}
	c.state = StateIdentityKnown

	if c.room == "" {
		c.view.PromptRoom()
		return nil
	}

	return c.connectLocked(ctx)
}

// SetIdentity stores name. A blank name clears the identity.
func (c *Controller) SetIdentity(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateInRoom {
		return ErrAlreadyInRoom
	}

	c.session.Set(name)
	if !c.session.Known() {
		c.state = StateNoIdentity
		c.view.PromptIdentity()
		return ErrNoIdentity
	}

	c.state = StateIdentityKnown
	return nil
}

func (c *Controller) SelectRoom(room string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateInRoom {
		return ErrAlreadyInRoom
	}

	room = strings.TrimSpace(room)
	if room == "" {
		c.view.PromptRoom()
		return ErrNoRoom
	}

	c.room = types.RoomId(room)
	return nil
}

// GenerateRoom selects a new random room id.
func (c *Controller) GenerateRoom() (types.RoomId, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateInRoom {
		return "", ErrAlreadyInRoom
	}

	id, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate room id: %w", err)
	}

	c.room = types.RoomId(id)
	return c.room, nil
}

// ConnectToRoom joins the selected room and the news feed, then loads the
// history of both in the background.
func (c *Controller) ConnectToRoom(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked(ctx)
}

func (c *Controller) connectLocked(ctx context.Context) error {
	if c.state == StateInRoom {
		return ErrAlreadyInRoom
	}

	name := c.session.Get()
	if name == "" {
		c.state = StateNoIdentity
		c.view.PromptIdentity()
		return ErrNoIdentity
	}
	if c.room == "" {
		c.view.PromptRoom()
		return ErrNoRoom
	}

	if err := c.chat.Send(ctx, protocol.JoinRoom(c.room, name)); err != nil {
		c.view.Warn("could not join room: " + err.Error())
		return fmt.Errorf("join room %q: %w", c.room, err)
	}
	if err := c.news.Send(ctx, protocol.JoinNews(name)); err != nil {
		c.view.Warn("could not join news: " + err.Error())
		return fmt.Errorf("join news: %w", err)
	}

	c.log.Printf("%q joined room %q", name, c.room)
	c.state = StateInRoom
	c.view.ShowSession(name, c.room)

	room := c.room
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loadHistory(context.WithoutCancel(ctx), name, room)
	}()

	return nil
}

// loadHistory fetches news and room history concurrently. Each batch is
// appended as soon as it arrives.
func (c *Controller) loadHistory(ctx context.Context, name string, room types.RoomId) {
	var g errgroup.Group

	g.Go(func() error {
		records, err := c.history.History(ctx, types.NewsRoomId)
		c.appendHistory(name, records, err, func(e ...Entry) {
			c.newsLog = append(c.newsLog, e...)
			c.view.AppendNews(e...)
		})
		return err
	})
	g.Go(func() error {
		records, err := c.history.History(ctx, room)
		c.appendHistory(name, records, err, func(e ...Entry) {
			c.chatLog = append(c.chatLog, e...)
			c.view.AppendChat(e...)
		})
		return err
	})

	if err := g.Wait(); err != nil {
		c.log.Printf("load history: %v", err)
	}
}

func (c *Controller) appendHistory(name string, records []types.Record, err error, appendFn func(...Entry)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.view.Warn("could not load history: " + err.Error())
		return
	}

	if len(records) == 0 {
		appendFn(noticeEntry(noMessages))
		return
	}

	records = slices.Clone(records)
	types.SortRecords(records)

	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, messageEntry(r.UserId, name, r.Message, r.Timestamp))
	}
	appendFn(entries...)
}

// SendChatText broadcasts text to the current room and persists it.
func (c *Controller) SendChatText(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		c.view.Warn("cannot send an empty message")
		return ErrEmptyMessage
	}
	if c.state != StateInRoom {
		c.view.Warn("join a room before chatting")
		return ErrNotInRoom
	}

	name := c.session.Get()
	c.persist(ctx, c.room, name, text)

	if err := c.chat.Send(ctx, protocol.Chat(c.room, name, text)); err != nil {
		c.view.Warn("message not sent: " + err.Error())
		return fmt.Errorf("send chat: %w", err)
	}

	return nil
}

// SendNewsText broadcasts text to every news participant and persists it
// under the news room.
func (c *Controller) SendNewsText(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		c.view.Warn("cannot send an empty message")
		return ErrEmptyMessage
	}

	name := c.session.Get()
	if name == "" {
		c.view.PromptIdentity()
		return ErrNoIdentity
	}

	c.persist(ctx, types.NewsRoomId, name, text)

	if err := c.news.Send(ctx, protocol.News(name, text)); err != nil {
		c.view.Warn("news not sent: " + err.Error())
		return fmt.Errorf("send news: %w", err)
	}

	return nil
}

// persist stores a message in the background. Failures are reported as
// warnings and never affect the live send.
func (c *Controller) persist(ctx context.Context, room types.RoomId, name, text string) {
	ctx = context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if _, err := c.history.Persist(ctx, room, name, text); err != nil {
			c.log.Printf("persist message for room %q: %v", room, err)

			c.mu.Lock()
			c.view.Warn("message was not saved: " + err.Error())
			c.mu.Unlock()
		}
	}()
}

func (c *Controller) HandleChatEvent(ev protocol.ServerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.session.Get()

	var entry Entry
	switch ev.Event {
	case protocol.EventJoined:
		if ev.UserId == name {
			return
		}
		entry = Entry{
			Kind:      KindJoin,
			Author:    ev.UserId,
			Text:      fmt.Sprintf("%s joined room %s", ev.UserId, ev.Room),
			Timestamp: ev.Timestamp,
		}
	case protocol.EventChat:
		entry = messageEntry(ev.UserId, name, ev.Text, ev.Timestamp)
	default:
		c.log.Printf("ignoring %q event on chat channel", ev.Event)
		return
	}

	c.chatLog = append(c.chatLog, entry)
	c.view.AppendChat(entry)
}

func (c *Controller) HandleNewsEvent(ev protocol.ServerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.session.Get()

	var entry Entry
	switch ev.Event {
	case protocol.EventJoined:
		if ev.UserId == name {
			return
		}
		entry = Entry{
			Kind:      KindJoin,
			Author:    ev.UserId,
			Text:      ev.UserId + " joined general room",
			Timestamp: ev.Timestamp,
		}
	case protocol.EventNews:
		entry = messageEntry(ev.UserId, name, ev.Text, ev.Timestamp)
	default:
		c.log.Printf("ignoring %q event on news channel", ev.Event)
		return
	}

	c.newsLog = append(c.newsLog, entry)
	c.view.AppendNews(entry)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Room() types.RoomId {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Controller) Identity() string {
	return c.session.Get()
}

// ChatLog returns a copy of the chat log.
func (c *Controller) ChatLog() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.chatLog...)
}

// NewsLog returns a copy of the news log.
func (c *Controller) NewsLog() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.newsLog...)
}

// Wait blocks until background history loads and persist requests finish.
func (c *Controller) Wait() {
	c.wg.Wait()
}
