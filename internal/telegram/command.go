package telegram

import (
	"fmt"
	"strings"
)

// The chat command surface. Both whitespace- and underscore-separated
// argument forms are accepted: "/digest_boiler" and "/digest boiler" are
// equivalent.
const (
	cmdHelp        = "help"
	cmdStart       = "start"
	cmdDigest      = "digest"
	cmdSubscribe   = "subscribe"
	cmdUnsubscribe = "unsubscribe"
)

var commandTakesArg = map[string]bool{
	cmdHelp:        false,
	cmdStart:       false,
	cmdDigest:      true,
	cmdSubscribe:   true,
	cmdUnsubscribe: true,
}

type command struct {
	name string
	arg  string
}

func parseCommand(text string) (command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return command{}, fmt.Errorf("commands start with '/'")
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return command{}, fmt.Errorf("empty command")
	}

	cmd := command{name: fields[0]}
	switch len(fields) {
	case 1:
	case 2:
		cmd.arg = fields[1]
	default:
		return command{}, fmt.Errorf("too many arguments for /%s", fields[0])
	}

	if _, known := commandTakesArg[cmd.name]; !known {
		// The underscore form folds the argument into the command word;
		// split on the first underscore only, channel names may contain
		// underscores themselves.
		if i := strings.Index(cmd.name, "_"); i > 0 && cmd.arg == "" {
			name, arg := cmd.name[:i], cmd.name[i+1:]
			if commandTakesArg[name] && arg != "" {
				cmd.name, cmd.arg = name, arg
			}
		}
	}

	takesArg, known := commandTakesArg[cmd.name]
	if !known {
		return command{}, fmt.Errorf("unknown command /%s", cmd.name)
	}
	if cmd.arg != "" && !takesArg {
		return command{}, fmt.Errorf("/%s takes no arguments", cmd.name)
	}
	return cmd, nil
}

const helpText = `These commands are supported:
/help - display this text
/digest - show a summary of all channels
/digest <channel> - show full statistics for one channel
/subscribe <channel> - subscribe this chat to alerts for a channel
/subscribe - list channels available for subscription
/unsubscribe <channel> - remove a subscription
/unsubscribe - list this chat's subscriptions`
