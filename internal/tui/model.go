// Package tui is the terminal front end of the room controller.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/npezzotti/ketchup-chat/internal/controller"
	"github.com/npezzotti/ketchup-chat/internal/types"
)

var (
	purple = lipgloss.Color("99")
	red    = lipgloss.Color("196")
	yellow = lipgloss.Color("220")
	gray   = lipgloss.Color("241")
	white  = lipgloss.Color("255")
	orange = lipgloss.Color("214")
	blue   = lipgloss.Color("75")
	teal   = lipgloss.Color("30")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(purple).
			Foreground(white).
			Padding(0, 1)

	newsHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Background(teal).
			Foreground(white).
			Padding(0, 1)

	footerBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), true, false, false, false).
				BorderForeground(gray).
				Padding(0, 1)

	errorStyle  = lipgloss.NewStyle().Foreground(red)
	sysStyle    = lipgloss.NewStyle().Foreground(yellow).Italic(true)
	tsStyle     = lipgloss.NewStyle().Foreground(gray)
	myNameStyle = lipgloss.NewStyle().Bold(true).Foreground(orange)
	peerStyle   = lipgloss.NewStyle().Bold(true).Foreground(blue)
)

// Controller is the part of the room controller driven by user input.
type Controller interface {
	Init(ctx context.Context, nav controller.Navigation) error
	SetIdentity(name string) error
	SelectRoom(room string) error
	GenerateRoom() (types.RoomId, error)
	ConnectToRoom(ctx context.Context) error
	SendChatText(ctx context.Context, text string) error
	SendNewsText(ctx context.Context, text string) error
}

// resultMsg carries the outcome of a controller call.
// apply updates the header once the call has succeeded.
type resultMsg struct {
	info  string
	err   error
	apply func(*Model)
}

type Model struct {
	ctx  context.Context
	ctrl Controller
	nav  controller.Navigation

	ready     bool
	chatView  viewport.Model
	newsView  viewport.Model
	input     textinput.Model
	chatLines []string
	newsLines []string

	name   string
	room   types.RoomId
	prompt string
	status string

	width, height int
}

func NewModel(ctx context.Context, ctrl Controller, nav controller.Navigation) Model {
	ci := textinput.New()
	ci.Placeholder = "Type a message or /help"
	ci.CharLimit = 500
	ci.Focus()

	return Model{
		ctx:   ctx,
		ctrl:  ctrl,
		nav:   nav,
		input: ci,
		name:  nav.Name,
		room:  types.RoomId(nav.Room),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.call("", func() error {
		return m.ctrl.Init(m.ctx, m.nav)
	}))
}

// call runs fn off the event loop; the controller reports back through
// the View.
func (m Model) call(info string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{info: info, err: fn()}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chatH, newsH := m.viewHeights()
		if !m.ready {
			m.chatView = viewport.New(msg.Width, chatH)
			m.newsView = viewport.New(msg.Width, newsH)
			m.ready = true
		} else {
			m.chatView.Width, m.chatView.Height = msg.Width, chatH
			m.newsView.Width, m.newsView.Height = msg.Width, newsH
		}
		m.input.Width = msg.Width - 4
		m.refresh()
		return m, nil

	case promptIdentityMsg:
		m.prompt = "Enter your name with /name <name>"
		return m, nil

	case promptRoomMsg:
		m.prompt = "Pick a room with /room <id> or /new, then /join"
		return m, nil

	case sessionMsg:
		m.name, m.room = msg.name, msg.room
		m.prompt = ""
		m.status = ""
		return m, nil

	case chatEntriesMsg:
		for _, e := range msg {
			m.chatLines = append(m.chatLines, renderEntry(e))
		}
		m.refresh()
		return m, nil

	case newsEntriesMsg:
		for _, e := range msg {
			m.newsLines = append(m.newsLines, renderEntry(e))
		}
		m.refresh()
		return m, nil

	case warnMsg:
		m.status = string(msg)
		return m, nil

	case resultMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		if msg.apply != nil {
			msg.apply(&m)
		}
		if msg.info != "" {
			m.status = msg.info
		}
		return m, nil

	case DisconnectedMsg:
		m.status = fmt.Sprintf("disconnected from %s channel", msg.Channel)
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyPgUp:
		m.chatView.HalfViewUp()
		return m, nil

	case tea.KeyPgDown:
		m.chatView.HalfViewDown()
		return m, nil

	case tea.KeyEnter:
		line := m.input.Value()
		m.input.Reset()
		return m.execute(parseCommand(line))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) execute(c command) (tea.Model, tea.Cmd) {
	switch c.kind {
	case cmdChat:
		return m, m.call("", func() error { return m.ctrl.SendChatText(m.ctx, c.arg) })
	case cmdNews:
		return m, m.call("", func() error { return m.ctrl.SendNewsText(m.ctx, c.arg) })
	case cmdName:
		return m, func() tea.Msg {
			if err := m.ctrl.SetIdentity(c.arg); err != nil {
				return resultMsg{err: err}
			}
			return resultMsg{info: "name set to " + c.arg, apply: func(m *Model) {
				m.name = c.arg
				if c.arg != "" {
					m.prompt = ""
				}
			}}
		}
	case cmdRoom:
		return m, func() tea.Msg {
			if err := m.ctrl.SelectRoom(c.arg); err != nil {
				return resultMsg{err: err}
			}
			return resultMsg{info: "room " + c.arg + " selected, /join to enter", apply: func(m *Model) {
				m.room = types.RoomId(c.arg)
			}}
		}
	case cmdNewRoom:
		return m, func() tea.Msg {
			room, err := m.ctrl.GenerateRoom()
			if err != nil {
				return resultMsg{err: err}
			}
			return resultMsg{info: fmt.Sprintf("room %s selected, /join to enter", room), apply: func(m *Model) {
				m.room = room
			}}
		}
	case cmdJoin:
		return m, m.call("", func() error { return m.ctrl.ConnectToRoom(m.ctx) })
	case cmdQuit:
		return m, tea.Quit
	case cmdHelp:
		m.status = helpText
		return m, nil
	default:
		m.status = fmt.Sprintf("unknown command %s, try /help", c.arg)
		return m, nil
	}
}

func (m Model) viewHeights() (int, int) {
	// chat header, news header, status, footer border and input
	avail := m.height - 5
	if avail < 2 {
		return 1, 1
	}

	chatH := avail * 2 / 3
	return chatH, avail - chatH
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.chatView.SetContent(strings.Join(m.chatLines, "\n"))
	m.chatView.GotoBottom()
	m.newsView.SetContent(strings.Join(m.newsLines, "\n"))
	m.newsView.GotoBottom()
}

func renderEntry(e controller.Entry) string {
	switch e.Kind {
	case controller.KindNotice:
		return sysStyle.Render(e.Text)
	case controller.KindJoin:
		return tsStyle.Render("["+e.Timestamp.Local().Format(controller.TimeFormat)+"]") + " " + sysStyle.Render(e.Text)
	default:
		ts := tsStyle.Render("[" + e.Timestamp.Local().Format(controller.TimeFormat) + "]")
		name := peerStyle.Render(e.Author)
		if e.Author == controller.SelfAuthor {
			name = myNameStyle.Render(e.Author)
		}
		return ts + " " + name + ": " + e.Text
	}
}

func (m Model) View() string {
	if !m.ready {
		return "\n  Connecting…"
	}

	who := m.name
	if who == "" {
		who = "anonymous"
	}
	where := "no room"
	if m.room != "" {
		where = "room " + m.room.String()
	}

	hdr := headerStyle.
		Width(m.width).
		Render(fmt.Sprintf(" Ketchup Chat  ·  %s  ·  %s  ·  PgUp/Dn: Scroll  Ctrl+C: Quit", who, where))
	newsHdr := newsHeaderStyle.Width(m.width).Render(" General news")

	status := m.prompt
	if m.status != "" {
		status = errorStyle.Render(m.status)
	}

	footer := footerBorderStyle.
		Width(m.width - 2).
		Render(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left, hdr, m.chatView.View(), newsHdr, m.newsView.View(), status, footer)
}
