// Package telegram implements chat.Transport on the Telegram Bot API.
package telegram

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"wipe-commander/internal/chat"
	"wipe-commander/internal/journal"
)

// maxFileSize is the Bot API download limit.
const maxFileSize = 20 << 20

// DefaultRate is the outgoing request rate, a little under the Bot API's 30/s.
const DefaultRate = 25

// Transport wraps a BotAPI. Every message it sends or observes goes to the
// journal, which then answers IterateMessages.
type Transport struct {
	api     *tgbotapi.BotAPI
	journal *journal.Journal
	limiter *rate.Limiter
	http    *http.Client
	logger  *logrus.Logger

	rightsMu sync.RWMutex
	rights   map[int64]chat.AdminRights
}

// NewTransport creates a transport. perSecond <= 0 selects DefaultRate.
func NewTransport(api *tgbotapi.BotAPI, j *journal.Journal, perSecond float64, logger *logrus.Logger) *Transport {
	if perSecond <= 0 {
		perSecond = DefaultRate
	}
	return &Transport{
		api:     api,
		journal: j,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
		rights:  make(map[int64]chat.AdminRights),
	}
}

// Send posts text to chatID without quoting a message.
func (t *Transport) Send(ctx context.Context, chatID int64, text string, mode chat.ParseMode) error {
	return t.Reply(ctx, chatID, 0, text, mode, "")
}

// Reply sends text as a reply to messageID (0 sends a plain message). With an
// attachment the text becomes the photo caption. A reply still goes out when
// the quoted message is gone, which happens after a wipe.
func (t *Transport) Reply(ctx context.Context, chatID int64, messageID int, text string, mode chat.ParseMode, attachment string) error {
	build := func(mode chat.ParseMode) tgbotapi.Chattable {
		if attachment != "" {
			photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(attachment))
			photo.Caption = text
			photo.ParseMode = string(mode)
			photo.ReplyToMessageID = messageID
			photo.AllowSendingWithoutReply = true
			return photo
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = string(mode)
		msg.ReplyToMessageID = messageID
		msg.AllowSendingWithoutReply = true
		return msg
	}

	sent, err := t.send(ctx, build(mode))
	if err != nil && mode != chat.ParsePlain && isEntityError(err) {
		t.logger.WithField("chat_id", chatID).WithError(err).Warn("Formatting rejected, resending as plain text")
		sent, err = t.send(ctx, build(chat.ParsePlain))
	}
	if err != nil {
		return errors.Wrapf(err, "failed to send message to chat %d", chatID)
	}

	t.observeOwn(ctx, sent)
	return nil
}

// SendAlbum posts files as one media group with caption on the first photo.
func (t *Transport) SendAlbum(ctx context.Context, chatID int64, files []string, caption string, mode chat.ParseMode) error {
	media := make([]interface{}, 0, len(files))
	for i, f := range files {
		photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(f))
		if i == 0 {
			photo.Caption = caption
			photo.ParseMode = string(mode)
		}
		media = append(media, photo)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	msgs, err := t.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media))
	if err != nil {
		return errors.Wrapf(err, "failed to send album to chat %d", chatID)
	}
	for i := range msgs {
		t.observeOwn(ctx, msgs[i])
	}
	return nil
}

// Typing shows the typing indicator in chatID.
func (t *Transport) Typing(ctx context.Context, chatID int64) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := t.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

// DeleteMessages calls deleteMessages, which the Bot API caps at 100 ids.
// Bots always delete for every participant, so revoke has no effect here.
func (t *Transport) DeleteMessages(ctx context.Context, chatID int64, ids []int, revoke bool) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	params := tgbotapi.Params{}
	params["chat_id"] = strconv.FormatInt(chatID, 10)
	if err := params.AddInterface("message_ids", ids); err != nil {
		return errors.Wrap(err, "failed to encode message ids")
	}

	if _, err := t.api.MakeRequest("deleteMessages", params); err != nil {
		return errors.Wrapf(err, "failed to delete %d messages in chat %d", len(ids), chatID)
	}

	if err := t.journal.Forget(ctx, chatID, ids); err != nil {
		t.logger.WithField("chat_id", chatID).WithError(err).Warn("Failed to prune journal")
	}
	return nil
}

// IterateMessages walks the journaled messages of chatID, newest first.
func (t *Transport) IterateMessages(ctx context.Context, chatID int64, filter chat.Filter, fn func(chat.MessageRecord) error) error {
	return t.journal.Iterate(ctx, chatID, filter, fn)
}

// DownloadFile fetches the content of a Telegram file.
func (t *Transport) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve file")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build download request")
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to download file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("file download returned %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	if len(data) > maxFileSize {
		return nil, errors.New("file exceeds the 20MB download limit")
	}
	return data, nil
}

// Self returns the bot account.
func (t *Transport) Self(_ context.Context) (chat.Identity, error) {
	return chat.Identity{ID: t.api.Self.ID, Username: t.api.Self.UserName}, nil
}

// ChatAdminRights returns the rights learned from my_chat_member updates, or
// nil when the bot has not seen one for the chat.
func (t *Transport) ChatAdminRights(_ context.Context, chatID int64) (*chat.AdminRights, error) {
	t.rightsMu.RLock()
	defer t.rightsMu.RUnlock()
	rights, ok := t.rights[chatID]
	if !ok {
		return nil, nil
	}
	return &rights, nil
}

// Permissions looks up the membership of userID in chatID.
func (t *Transport) Permissions(ctx context.Context, chatID, userID int64) (chat.Permissions, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return chat.Permissions{}, err
	}
	member, err := t.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return chat.Permissions{}, errors.Wrapf(err, "failed to get member %d of chat %d", userID, chatID)
	}
	return chat.Permissions{
		Status:            chat.MemberStatus(member.Status),
		CanDeleteMessages: member.CanDeleteMessages,
	}, nil
}

// ObserveMembership caches the bot's own rights from a my_chat_member update.
func (t *Transport) ObserveMembership(update *tgbotapi.ChatMemberUpdated) {
	member := update.NewChatMember
	if member.User == nil || member.User.ID != t.api.Self.ID {
		return
	}

	t.rightsMu.Lock()
	defer t.rightsMu.Unlock()
	switch {
	case member.IsCreator():
		t.rights[update.Chat.ID] = chat.AdminRights{DeleteMessages: true}
	case member.IsAdministrator():
		t.rights[update.Chat.ID] = chat.AdminRights{DeleteMessages: member.CanDeleteMessages}
	default:
		delete(t.rights, update.Chat.ID)
	}

	t.logger.WithFields(logrus.Fields{
		"chat_id": update.Chat.ID,
		"status":  member.Status,
	}).Info("Bot membership changed")
}

// Observe journals an inbound message.
func (t *Transport) Observe(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	if err := t.journal.Record(ctx, msg.Chat.ID, toRecord(msg), int64(msg.Date)); err != nil {
		t.logger.WithField("chat_id", msg.Chat.ID).WithError(err).Warn("Failed to journal message")
	}
}

func (t *Transport) observeOwn(ctx context.Context, msg tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	record := toRecord(&msg)
	record.SenderID = t.api.Self.ID
	if err := t.journal.Record(ctx, msg.Chat.ID, record, int64(msg.Date)); err != nil {
		t.logger.WithField("chat_id", msg.Chat.ID).WithError(err).Warn("Failed to journal sent message")
	}
}

func (t *Transport) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	return t.api.Send(c)
}

func toRecord(msg *tgbotapi.Message) chat.MessageRecord {
	record := chat.MessageRecord{
		ID:   msg.MessageID,
		Text: msg.Text,
	}
	if record.Text == "" {
		record.Text = msg.Caption
	}
	switch {
	case msg.From != nil:
		record.SenderID = msg.From.ID
	case msg.SenderChat != nil:
		record.SenderID = msg.SenderChat.ID
	}
	if msg.ReplyToMessage != nil {
		record.ReplyToID = msg.ReplyToMessage.MessageID
	}
	return record
}

func isEntityError(err error) bool {
	return strings.Contains(err.Error(), "can't parse entities")
}
