// Package texts contains every user-facing string of the bot. It has no
// behavior beyond formatting.
package texts

import (
	"fmt"
	"strings"
)

// Command tokens
const (
	CmdTotalWipe     = "/wipe_total"
	CmdPersonalWipe  = "/wipe_myself"
	CmdHelp          = "/help"
	CmdImportHistory = "/import_history"
	CmdSetRole       = "/set_role"
	CmdGetBalance    = "/get_balance"
	CmdWipeHistory   = "/wipe_history"
)

const (
	RunTotalWipe     = "❕ Starting a wipe of ALL messages in this group."
	RunPersonalWipe  = "❕ Starting a wipe of the PERSONAL message history of a member of this group"
	PermissionDenied = "❗️ Administrator rights are required for this procedure [*permission to delete messages*]"
	Complete         = "✅ Done"
	DeleteError      = "❌ Delete error"
	WipeFailed       = "❌ Failed to delete messages ❌"

	ImportHistoryComplete = "Message history import completed"
	ImportHistory         = "Send the bot a <b>result.json</b> file containing the message history of this group chat.\n" +
		"To get <b>result.json</b> press the three dots in the upper right corner.\n" +
		"<b>1.</b> Choose ⚙️ <i>\"Export chat history\"</i>.\n" +
		"<b>2.</b> In the window that opens find the <i>Format</i> field and press <i>HTML</i> next to it.\n" +
		"<b>3.</b> Change the format from <i>HTML</i> to <i>JSON</i> and save.\n" +
		"<b>4.</b> Press 👉🏻 <i>\"Export\"</i>. Telegram builds the file and downloads it to your device.\n" +
		"<b>5.</b> When the download finishes press 👉🏻 <i>\"Show my data\"</i> to open the folder with <b>result.json</b>.\n" +
		"<b>6.</b> Send that file here 📤"

	AboutBot = "<b>Hello!</b>\n" +
		"This bot quickly deletes the whole message history of this group chat at the members' request.\n" +
		"Members can also delete their own messages in this group.\n\n" +
		"❕ The bot needs administrator rights to work.\n\n" +
		"❕ If the group has more than 100 messages, make the whole history visible: open ⚙️ <i>\"Manage group\"</i>, " +
		"find ⚙️ <i>\"Chat history for new members\"</i> and set it to <i>\"Visible\"</i>\n\n"

	FilesNotSupported = "The DeepSeek API does not support file uploads at this time."
	AskRole           = "Send a text description of the AI role to the chat."
	RoleInstalled     = "New role installed"
	HistoryWiped      = "🧹 Conversation history cleared."
	AIUnavailable     = "‼️ The AI assistant is not configured."
)

// Help lists the group commands with the configured total-wipe threshold.
func Help(totalConfirms int) string {
	var b strings.Builder
	b.WriteString("✳️ To delete ALL messages send to the chat:\n")
	fmt.Fprintf(&b, "<code>%s</code>\n", CmdTotalWipe)
	fmt.Fprintf(&b, "<i>[%d request(s) from different members within 24 hours are required]</i>\n\n", totalConfirms)
	b.WriteString("✳️ To delete YOUR OWN messages send to the chat:\n")
	fmt.Fprintf(&b, "<code>%s</code>\n\n", CmdPersonalWipe)
	b.WriteString("🔄 All requests are reset after 24 hours.\n\n")
	b.WriteString("✳️ To get this help send to the chat:\n")
	fmt.Fprintf(&b, "<code>%s</code>", CmdHelp)
	return b.String()
}

// Welcome is sent when the bot joins a group.
func Welcome(totalConfirms int) string {
	return AboutBot + Help(totalConfirms)
}

// ConfirmTotalWipe reports the progress of a total-wipe vote.
func ConfirmTotalWipe(requests, missing int) string {
	return fmt.Sprintf("%d member(s) requested a wipe of all messages in this group chat during the last 24 hours.\n"+
		"\n%d more request(s) are needed to start the cleanup...", requests, missing)
}

// ConfirmPersonalWipe asks the requester to repeat the command.
func ConfirmPersonalWipe(name string, missing int) string {
	return fmt.Sprintf("%s, you requested the deletion of all your messages in this group chat.\n\n"+
		"To start the cleanup send %s %d more time(s) to confirm.", name, CmdPersonalWipe, missing)
}

// StartPersonalWipe announces a confirmed personal wipe.
func StartPersonalWipe(name string) string {
	return RunPersonalWipe + "\n" + name
}

// PersonalWipeDone is the reply after a personal wipe.
func PersonalWipeDone(name string) string {
	return Complete + ", " + name
}

// PersonalWipeFailed is sent when a personal wipe cannot run.
func PersonalWipeFailed(userID int64) string {
	return fmt.Sprintf("An error occurred while deleting user messages %d", userID)
}

// RequestError reports a failed AI turn with its cause.
func RequestError(err error) string {
	return fmt.Sprintf("‼️ Request Error: %v", err)
}

// HistoryWipeIncomplete reports a conversation wipe that left messages behind.
func HistoryWipeIncomplete(failed, attempted int) string {
	return fmt.Sprintf("⚠️ Conversation history partly cleared: %d of %d messages could not be deleted.", failed, attempted)
}

// Balance formats the account balance.
func Balance(amount string) string {
	return "💰 Balance: " + amount
}

// FullName joins first and last name the way Telegram displays them.
func FullName(first, last string) string {
	if last == "" {
		return first
	}
	return first + " " + last
}
