package handlers

import "strings"

// Command is the closed set of inbound message kinds.
type Command int

const (
	CommandText Command = iota
	CommandStart
	CommandHelp
	CommandSubscribe
	CommandGetTrial
	CommandStatus
	CommandUnknown
)

var commandNames = map[string]Command{
	"start":     CommandStart,
	"help":      CommandHelp,
	"subscribe": CommandSubscribe,
	"get_trial": CommandGetTrial,
	"status":    CommandStatus,
}

func (c Command) String() string {
	switch c {
	case CommandText:
		return "text"
	case CommandStart:
		return "start"
	case CommandHelp:
		return "help"
	case CommandSubscribe:
		return "subscribe"
	case CommandGetTrial:
		return "get_trial"
	case CommandStatus:
		return "status"
	default:
		return "unknown"
	}
}

// ParseCommand classifies a message. "/status@bot extra" yields
// CommandStatus with payload "extra"; anything not starting with "/"
// is CommandText with the whole message as payload.
func ParseCommand(content string) (Command, string) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "/") {
		return CommandText, content
	}

	token, payload := content, ""
	if i := strings.IndexAny(content, " \t\n"); i >= 0 {
		token, payload = content[:i], strings.TrimSpace(content[i+1:])
	}

	name := strings.ToLower(strings.TrimPrefix(token, "/"))
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}

	if cmd, ok := commandNames[name]; ok {
		return cmd, payload
	}
	return CommandUnknown, payload
}
