// Package chat holds the transport-neutral message model shared by the wipe,
// history and router packages.
package chat

import (
	"context"
)

// ParseMode selects how the transport renders outgoing text
type ParseMode string

const (
	ParsePlain    ParseMode = ""
	ParseHTML     ParseMode = "HTML"
	ParseMarkdown ParseMode = "Markdown"
)

// MessageRecord is the minimal view of a chat message. It is rebuilt from the
// transport every time it is needed and never persisted by the core.
type MessageRecord struct {
	ID        int
	SenderID  int64
	Text      string
	ReplyToID int
}

// Filter narrows IterateMessages. A zero SenderID means every sender.
type Filter struct {
	SenderID int64
}

// Identity describes the bot account itself.
type Identity struct {
	ID       int64
	Username string
}

// AdminRights is the cached rights flag some transports attach to a chat.
type AdminRights struct {
	DeleteMessages bool
}

// MemberStatus classifies a chat participant.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// Permissions is the result of an explicit member lookup.
type Permissions struct {
	Status            MemberStatus
	CanDeleteMessages bool
}

// Transport is everything the bot needs from the messaging network.
//
// IterateMessages walks messages newest first and stops at the first error
// returned by fn.
type Transport interface {
	Send(ctx context.Context, chatID int64, text string, mode ParseMode) error
	Reply(ctx context.Context, chatID int64, messageID int, text string, mode ParseMode, attachment string) error
	SendAlbum(ctx context.Context, chatID int64, files []string, caption string, mode ParseMode) error
	Typing(ctx context.Context, chatID int64) error
	DeleteMessages(ctx context.Context, chatID int64, ids []int, revoke bool) error
	IterateMessages(ctx context.Context, chatID int64, filter Filter, fn func(MessageRecord) error) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
	Self(ctx context.Context) (Identity, error)
	ChatAdminRights(ctx context.Context, chatID int64) (*AdminRights, error)
	Permissions(ctx context.Context, chatID, userID int64) (Permissions, error)
}
