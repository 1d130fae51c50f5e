package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"wipe-commander/internal/router"
)

// Submitter receives converted events, typically router.Mailboxes.
type Submitter interface {
	Submit(ctx context.Context, ev router.Event)
}

// Bot is the long-polling update loop.
type Bot struct {
	api       *tgbotapi.BotAPI
	transport *Transport
	events    Submitter
	logger    *logrus.Logger
}

// NewBotAPI connects to Telegram and resolves the bot identity.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bot")
	}
	api.Debug = false
	return api, nil
}

// NewBot creates the update loop.
func NewBot(api *tgbotapi.BotAPI, transport *Transport, events Submitter, logger *logrus.Logger) *Bot {
	return &Bot{
		api:       api,
		transport: transport,
		events:    events,
		logger:    logger,
	}
}

// Start polls updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.WithField("username", b.api.Self.UserName).Info("Telegram bot started")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return errors.New("update channel closed")
			}
			b.handleUpdate(ctx, update)
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down")
			b.api.StopReceivingUpdates()
			return nil
		}
	}
}

// Username returns the bot's username.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.MyChatMember != nil {
		b.transport.ObserveMembership(update.MyChatMember)
	}
	if update.EditedMessage != nil {
		b.transport.Observe(ctx, update.EditedMessage)
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	b.transport.Observe(ctx, msg)

	ev, ok := toEvent(msg, b.api.Self.ID)
	if !ok {
		return
	}
	b.events.Submit(ctx, ev)
}

// toEvent converts private, group and supergroup messages. Channel posts
// and service messages without a sender are dropped.
func toEvent(msg *tgbotapi.Message, selfID int64) (router.Event, bool) {
	if msg.From == nil {
		return router.Event{}, false
	}
	private := msg.Chat.IsPrivate()
	if !private && !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
		return router.Event{}, false
	}
	if msg.From.ID == selfID {
		return router.Event{}, false
	}

	ev := router.Event{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Private:   private,
		SenderID:  msg.From.ID,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
		Text:      msg.Text,
		HasMedia:  hasMedia(msg),
	}
	if ev.Text == "" {
		ev.Text = msg.Caption
	}
	if msg.Document != nil {
		ev.Document = &router.Document{
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
		}
	}
	for _, member := range msg.NewChatMembers {
		if member.ID == selfID {
			ev.BotAdded = true
		}
	}
	return ev, true
}

func hasMedia(msg *tgbotapi.Message) bool {
	return len(msg.Photo) > 0 ||
		msg.Document != nil ||
		msg.Video != nil ||
		msg.Audio != nil ||
		msg.Voice != nil ||
		msg.VideoNote != nil ||
		msg.Animation != nil ||
		msg.Sticker != nil
}
