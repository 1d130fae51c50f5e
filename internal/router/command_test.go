package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		private bool
		want    Command
	}{
		{name: "total wipe", text: "/wipe_total", want: CommandTotalWipe},
		{name: "personal wipe", text: "/wipe_myself", want: CommandPersonalWipe},
		{name: "help", text: "/help", want: CommandHelp},
		{name: "import", text: "/import_history", want: CommandImportHistory},
		{name: "command inside text", text: "please /wipe_total now", want: CommandTotalWipe},
		{name: "total wipe outranks help", text: "/help /wipe_total", want: CommandTotalWipe},
		{name: "personal outranks help", text: "/help /wipe_myself", want: CommandPersonalWipe},
		{name: "addressed to us", text: "/wipe_total@wipe_bot", want: CommandTotalWipe},
		{name: "addressed case-insensitively", text: "/help@Wipe_Bot", want: CommandHelp},
		{name: "addressed to another bot", text: "/wipe_total@other_bot", want: CommandNone},
		{name: "prefix is not a command", text: "/wipe_totally", want: CommandNone},
		{name: "plain text", text: "hello there", want: CommandNone},
		{name: "empty", text: "", want: CommandNone},
		{name: "private commands ignored in groups", text: "/set_role", want: CommandNone},
		{name: "set role", text: "/set_role", private: true, want: CommandSetRole},
		{name: "balance", text: "/get_balance", private: true, want: CommandGetBalance},
		{name: "wipe history", text: "/wipe_history", private: true, want: CommandWipeHistory},
		{name: "group commands ignored in private", text: "/wipe_total", private: true, want: CommandNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(tt.text, "wipe_bot", tt.private))
		})
	}
}
