package router

import (
	"strings"

	"wipe-commander/internal/texts"
)

// Command is a recognized bot command
type Command int

const (
	CommandNone Command = iota
	CommandTotalWipe
	CommandPersonalWipe
	CommandHelp
	CommandImportHistory
	CommandSetRole
	CommandGetBalance
	CommandWipeHistory
)

var (
	groupCommands = []struct {
		token string
		cmd   Command
	}{
		{texts.CmdTotalWipe, CommandTotalWipe},
		{texts.CmdPersonalWipe, CommandPersonalWipe},
		{texts.CmdHelp, CommandHelp},
		{texts.CmdImportHistory, CommandImportHistory},
	}
	privateCommands = []struct {
		token string
		cmd   Command
	}{
		{texts.CmdSetRole, CommandSetRole},
		{texts.CmdGetBalance, CommandGetBalance},
		{texts.CmdWipeHistory, CommandWipeHistory},
	}
)

// ParseCommand finds a command among the whitespace separated tokens of text.
// Commands are checked in a fixed precedence order, so "/help /wipe_total"
// is a total wipe. A "/cmd@name" token counts only when name is botUsername.
func ParseCommand(text, botUsername string, private bool) Command {
	tokens := normalize(strings.Fields(text), botUsername)
	if len(tokens) == 0 {
		return CommandNone
	}

	table := groupCommands
	if private {
		table = privateCommands
	}
	for _, c := range table {
		if _, ok := tokens[c.token]; ok {
			return c.cmd
		}
	}
	return CommandNone
}

func normalize(fields []string, botUsername string) map[string]struct{} {
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if at := strings.IndexByte(f, '@'); at > 0 && strings.HasPrefix(f, "/") {
			if botUsername == "" || !strings.EqualFold(f[at+1:], botUsername) {
				continue
			}
			f = f[:at]
		}
		tokens[f] = struct{}{}
	}
	return tokens
}
