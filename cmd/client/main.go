package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/npezzotti/ketchup-chat/internal/config"
	"github.com/npezzotti/ketchup-chat/internal/controller"
	"github.com/npezzotti/ketchup-chat/internal/history"
	"github.com/npezzotti/ketchup-chat/internal/protocol"
	"github.com/npezzotti/ketchup-chat/internal/session"
	"github.com/npezzotti/ketchup-chat/internal/tui"
	"github.com/npezzotti/ketchup-chat/internal/wsclient"
)

var (
	serverURL string
	name      string
	room      string
	logFile   string
	timeout   time.Duration
)

func main() {
	flag.StringVar(&serverURL, "server", "http://localhost:8000", "chat server url")
	flag.StringVar(&name, "name", "", "display name")
	flag.StringVar(&room, "room", "", "room to join on start")
	flag.StringVar(&logFile, "log", "", "write logs to this file")
	flag.DurationVar(&timeout, "timeout", config.DefaultPersistenceTimeout, "timeout for history requests")
	flag.Parse()

	// the terminal belongs to the UI, so logs are discarded unless a file is given
	var out io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	logger := log.New(out, "[ketchup-client] ", log.LstdFlags)

	cfg, err := config.NewClientConfig(serverURL, name, room, timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	chatConn, err := wsclient.Dial(dialCtx, cfg.WebsocketURL("/ws/chat"), logger)
	if err != nil {
		dialCancel()
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	newsConn, err := wsclient.Dial(dialCtx, cfg.WebsocketURL("/ws/news"), logger)
	dialCancel()
	if err != nil {
		chatConn.Close()
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer chatConn.Close()
	defer newsConn.Close()

	gateway := history.NewGateway(cfg.ServerURL.String(), cfg.PersistenceTimeout)
	nav := controller.Navigation{Name: cfg.Name, Room: cfg.Room}

	var p *tea.Program
	view := tui.NewView(programSender{&p})
	ctrl := controller.New(logger, session.NewStore(), chatConn, newsConn, gateway, view)
	p = tea.NewProgram(tui.NewModel(ctx, ctrl, nav), tea.WithAltScreen())

	go pump(chatConn.Events(), ctrl.HandleChatEvent, p, protocol.ChannelChat)
	go pump(newsConn.Events(), ctrl.HandleNewsEvent, p, protocol.ChannelNews)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cancel()
	ctrl.Wait()
}

// programSender resolves the program lazily; the view is built before it.
type programSender struct {
	p **tea.Program
}

func (s programSender) Send(msg tea.Msg) {
	(*s.p).Send(msg)
}

// pump hands incoming hub events to the controller until the channel closes.
func pump(events <-chan protocol.ServerEvent, handle func(protocol.ServerEvent), p *tea.Program, ch protocol.Channel) {
	for ev := range events {
		handle(ev)
	}
	p.Send(tui.DisconnectedMsg{Channel: string(ch)})
}
