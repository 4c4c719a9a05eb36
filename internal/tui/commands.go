package tui

import "strings"

type commandKind int

const (
	cmdChat commandKind = iota
	cmdNews
	cmdName
	cmdRoom
	cmdNewRoom
	cmdJoin
	cmdQuit
	cmdHelp
	cmdUnknown
)

// command is one line typed into the input box.
type command struct {
	kind commandKind
	arg  string
}

const helpText = "/news <text>  /name [name]  /room <id>  /new  /join  /quit"

// parseCommand interprets a line of input. Text not starting with a slash
// is a chat message and is passed through untouched.
func parseCommand(line string) command {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return command{kind: cmdChat, arg: line}
	}

	name, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/news":
		return command{kind: cmdNews, arg: arg}
	case "/name":
		return command{kind: cmdName, arg: arg}
	case "/room":
		return command{kind: cmdRoom, arg: arg}
	case "/new":
		return command{kind: cmdNewRoom}
	case "/join":
		return command{kind: cmdJoin}
	case "/quit", "/exit":
		return command{kind: cmdQuit}
	case "/help":
		return command{kind: cmdHelp}
	default:
		return command{kind: cmdUnknown, arg: name}
	}
}
