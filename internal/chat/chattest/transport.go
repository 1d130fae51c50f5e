// Package chattest provides an in-memory chat.Transport for tests.
package chattest

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"wipe-commander/internal/chat"
)

// Sent is one outgoing message recorded by Transport.
type Sent struct {
	ChatID     int64
	ReplyTo    int
	Text       string
	Mode       chat.ParseMode
	Attachment string
	Album      []string
}

// DeleteCall is one DeleteMessages invocation.
type DeleteCall struct {
	ChatID int64
	IDs    []int
	Revoke bool
}

// Transport keeps messages per chat in arrival order and records every
// outgoing call. Exported fields configure lookups and failures; set them
// before the transport is shared.
type Transport struct {
	Me          chat.Identity
	Rights      map[int64]*chat.AdminRights
	Members     map[int64]chat.Permissions
	Files       map[string][]byte
	PermErr     error
	IterateErr  error
	DownloadErr error
	SendErr     error
	// ReplyErr fails replies to a message while plain sends still succeed.
	ReplyErr error
	// DeleteErr, when set, decides the result of the n-th DeleteMessages call
	// (0-based). A failed call leaves the messages in place.
	DeleteErr func(n int, ids []int) error

	mu       sync.Mutex
	messages map[int64][]chat.MessageRecord
	sent     []Sent
	deletes  []DeleteCall
	typing   int
}

// New returns a transport acting as me.
func New(me chat.Identity) *Transport {
	return &Transport{
		Me:       me,
		Rights:   make(map[int64]*chat.AdminRights),
		Members:  make(map[int64]chat.Permissions),
		Files:    make(map[string][]byte),
		messages: make(map[int64][]chat.MessageRecord),
	}
}

// Add appends messages to chatID, oldest first.
func (t *Transport) Add(chatID int64, msgs ...chat.MessageRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages[chatID] = append(t.messages[chatID], msgs...)
}

// Messages returns the messages still present in chatID, oldest first.
func (t *Transport) Messages(chatID int64) []chat.MessageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]chat.MessageRecord(nil), t.messages[chatID]...)
}

// Sent returns every outgoing message so far.
func (t *Transport) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Sent(nil), t.sent...)
}

// Texts returns the texts sent to chatID in order.
func (t *Transport) Texts(chatID int64) []string {
	var out []string
	for _, s := range t.Sent() {
		if s.ChatID == chatID {
			out = append(out, s.Text)
		}
	}
	return out
}

// Deletes returns every DeleteMessages call so far.
func (t *Transport) Deletes() []DeleteCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]DeleteCall(nil), t.deletes...)
}

// TypingCount returns how many typing actions were sent.
func (t *Transport) TypingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

// Send records a message that replies to nothing.
func (t *Transport) Send(ctx context.Context, chatID int64, text string, mode chat.ParseMode) error {
	return t.Reply(ctx, chatID, 0, text, mode, "")
}

// Reply records a message. A zero messageID is a plain send.
func (t *Transport) Reply(_ context.Context, chatID int64, messageID int, text string, mode chat.ParseMode, attachment string) error {
	if t.SendErr != nil {
		return t.SendErr
	}
	if t.ReplyErr != nil && messageID != 0 {
		return t.ReplyErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, Sent{ChatID: chatID, ReplyTo: messageID, Text: text, Mode: mode, Attachment: attachment})
	return nil
}

func (t *Transport) SendAlbum(_ context.Context, chatID int64, files []string, caption string, mode chat.ParseMode) error {
	if t.SendErr != nil {
		return t.SendErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, Sent{ChatID: chatID, Text: caption, Mode: mode, Album: append([]string(nil), files...)})
	return nil
}

func (t *Transport) Typing(_ context.Context, _ int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.typing++
	return nil
}

func (t *Transport) DeleteMessages(_ context.Context, chatID int64, ids []int, revoke bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.deletes)
	t.deletes = append(t.deletes, DeleteCall{ChatID: chatID, IDs: append([]int(nil), ids...), Revoke: revoke})
	if t.DeleteErr != nil {
		if err := t.DeleteErr(n, ids); err != nil {
			return err
		}
	}

	drop := make(map[int]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := t.messages[chatID][:0]
	for _, m := range t.messages[chatID] {
		if !drop[m.ID] {
			kept = append(kept, m)
		}
	}
	t.messages[chatID] = kept
	return nil
}

// IterateMessages walks newest first over a copy taken under the lock.
func (t *Transport) IterateMessages(_ context.Context, chatID int64, filter chat.Filter, fn func(chat.MessageRecord) error) error {
	if t.IterateErr != nil {
		return t.IterateErr
	}
	msgs := t.Messages(chatID)
	for i := len(msgs) - 1; i >= 0; i-- {
		if filter.SenderID != 0 && msgs[i].SenderID != filter.SenderID {
			continue
		}
		if err := fn(msgs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) DownloadFile(_ context.Context, fileID string) ([]byte, error) {
	if t.DownloadErr != nil {
		return nil, t.DownloadErr
	}
	data, ok := t.Files[fileID]
	if !ok {
		return nil, errors.Errorf("file %s not found", fileID)
	}
	return data, nil
}

func (t *Transport) Self(_ context.Context) (chat.Identity, error) {
	return t.Me, nil
}

func (t *Transport) ChatAdminRights(_ context.Context, chatID int64) (*chat.AdminRights, error) {
	return t.Rights[chatID], nil
}

func (t *Transport) Permissions(_ context.Context, chatID, userID int64) (chat.Permissions, error) {
	if t.PermErr != nil {
		return chat.Permissions{}, t.PermErr
	}
	if userID != t.Me.ID {
		return chat.Permissions{Status: chat.StatusMember}, nil
	}
	perms, ok := t.Members[chatID]
	if !ok {
		return chat.Permissions{Status: chat.StatusMember}, nil
	}
	return perms, nil
}

var _ chat.Transport = (*Transport)(nil)
