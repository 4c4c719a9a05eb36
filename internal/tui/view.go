package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/npezzotti/ketchup-chat/internal/controller"
	"github.com/npezzotti/ketchup-chat/internal/types"
)

type (
	promptIdentityMsg struct{}
	promptRoomMsg     struct{}
	sessionMsg        struct {
		name string
		room types.RoomId
	}
	chatEntriesMsg []controller.Entry
	newsEntriesMsg []controller.Entry
	warnMsg        string
	// DisconnectedMsg tells the model that a hub channel closed.
	DisconnectedMsg struct{ Channel string }
)

// Sender delivers a message to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// View forwards controller output to the bubbletea event loop.
type View struct {
	p Sender
}

func NewView(p Sender) *View {
	return &View{p: p}
}

func (v *View) PromptIdentity() {
	v.p.Send(promptIdentityMsg{})
}

func (v *View) PromptRoom() {
	v.p.Send(promptRoomMsg{})
}

func (v *View) ShowSession(name string, room types.RoomId) {
	v.p.Send(sessionMsg{name: name, room: room})
}

func (v *View) AppendChat(entries ...controller.Entry) {
	v.p.Send(chatEntriesMsg(entries))
}

func (v *View) AppendNews(entries ...controller.Entry) {
	v.p.Send(newsEntriesMsg(entries))
}

func (v *View) Warn(msg string) {
	v.p.Send(warnMsg(msg))
}
