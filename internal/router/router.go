// Package router maps inbound chat events to wipe votes, wipes and AI turns.
package router

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"wipe-commander/internal/chat"
	"wipe-commander/internal/history"
	"wipe-commander/internal/snapshot"
	"wipe-commander/internal/texts"
	"wipe-commander/internal/wipe"
)

// Event is an inbound message, already stripped of transport details.
type Event struct {
	ChatID    int64
	MessageID int
	Private   bool
	SenderID  int64
	FirstName string
	LastName  string
	Text      string
	HasMedia  bool
	Document  *Document
	BotAdded  bool
}

// Document is an attached file.
type Document struct {
	FileID   string
	FileName string
	MimeType string
}

// IsJSON reports whether the document looks like a chat export.
func (d *Document) IsJSON() bool {
	return d != nil && (d.MimeType == "application/json" || strings.HasSuffix(strings.ToLower(d.FileName), ".json"))
}

// Gate decides whether the bot may delete messages in a chat.
type Gate interface {
	CanDelete(ctx context.Context, chatID int64) bool
}

// Wiper executes confirmed wipes.
type Wiper interface {
	Total(ctx context.Context, chatID int64) (wipe.Report, error)
	Personal(ctx context.Context, chatID, userID int64) (wipe.Report, error)
	Conversation(ctx context.Context, chatID int64) (wipe.Report, error)
}

// Transcripts rebuilds the AI conversation of a chat.
type Transcripts interface {
	Build(ctx context.Context, chatID int64, role string) ([]history.Turn, error)
}

// Completer is the text completion service.
type Completer interface {
	Chat(ctx context.Context, turns []history.Turn, temperature float64) (string, error)
	Balance(ctx context.Context) (string, error)
}

// SnapshotSaver stores imported chat exports.
type SnapshotSaver interface {
	Save(ctx context.Context, chatID int64, data []byte) error
}

// Deps are the collaborators of a Router. Completer and Snapshots may be nil.
type Deps struct {
	Transport     chat.Transport
	Gate          Gate
	TotalVotes    *wipe.Ledger
	PersonalVotes *wipe.Ledger
	Wiper         Wiper
	Transcripts   Transcripts
	Completer     Completer
	Snapshots     SnapshotSaver
	States        *StateStore
	Roles         *RoleStore
	Logger        *logrus.Logger
}

// Options tune a Router.
type Options struct {
	Temperature float64
	ImagesDir   string
	Now         func() time.Time
}

// Router dispatches events. It holds no package level state; everything
// mutable is injected through Deps.
type Router struct {
	Deps
	temperature float64
	imagesDir   string
	now         func() time.Time
}

// New creates a router.
func New(deps Deps, opts Options) *Router {
	if deps.States == nil {
		deps.States = NewStateStore()
	}
	if deps.Roles == nil {
		deps.Roles = NewRoleStore()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{
		Deps:        deps,
		temperature: opts.Temperature,
		imagesDir:   opts.ImagesDir,
		now:         opts.Now,
	}
}

// Handle processes one event.
func (r *Router) Handle(ctx context.Context, ev Event) {
	r.Logger.WithFields(logrus.Fields{
		"chat_id":   ev.ChatID,
		"sender_id": ev.SenderID,
		"private":   ev.Private,
		"text":      ev.Text,
	}).Debug("Received message")

	if ev.Private {
		r.handlePrivate(ctx, ev)
		return
	}
	r.handleGroup(ctx, ev)
}

func (r *Router) handleGroup(ctx context.Context, ev Event) {
	switch {
	case ev.BotAdded:
		r.send(ctx, ev.ChatID, texts.Welcome(r.TotalVotes.Threshold()), chat.ParseHTML)
		return
	case ev.Document.IsJSON():
		r.importSnapshot(ctx, ev)
		return
	case ev.Text == "":
		return
	}

	switch ParseCommand(ev.Text, r.botUsername(ctx), false) {
	case CommandTotalWipe:
		r.handleTotalWipe(ctx, ev)
	case CommandPersonalWipe:
		r.handlePersonalWipe(ctx, ev)
	case CommandHelp:
		r.send(ctx, ev.ChatID, texts.Help(r.TotalVotes.Threshold()), chat.ParseHTML)
	case CommandImportHistory:
		r.sendImportInstructions(ctx, ev.ChatID)
	}
}

func (r *Router) handleTotalWipe(ctx context.Context, ev Event) {
	if !r.Gate.CanDelete(ctx, ev.ChatID) {
		r.send(ctx, ev.ChatID, texts.PermissionDenied, chat.ParsePlain)
		return
	}

	outcome := r.TotalVotes.Register(wipe.TotalScope(ev.ChatID), ev.SenderID, r.now())
	if !outcome.Confirmed {
		r.send(ctx, ev.ChatID, texts.ConfirmTotalWipe(outcome.Count, outcome.Required), chat.ParsePlain)
		return
	}

	r.send(ctx, ev.ChatID, texts.RunTotalWipe, chat.ParsePlain)

	_, err := r.Wiper.Total(ctx, ev.ChatID)
	switch {
	case errors.Is(err, wipe.ErrBatchTooLarge):
		r.send(ctx, ev.ChatID, texts.DeleteError, chat.ParsePlain)
	case err != nil:
		r.send(ctx, ev.ChatID, texts.WipeFailed, chat.ParsePlain)
	default:
		r.reply(ctx, ev.ChatID, ev.MessageID, texts.Complete, chat.ParsePlain, r.image("pepe.png"))
	}
}

func (r *Router) handlePersonalWipe(ctx context.Context, ev Event) {
	if !r.Gate.CanDelete(ctx, ev.ChatID) {
		r.send(ctx, ev.ChatID, texts.PermissionDenied, chat.ParsePlain)
		return
	}

	name := texts.FullName(ev.FirstName, ev.LastName)
	outcome := r.PersonalVotes.Register(wipe.PersonalScope(ev.ChatID, ev.SenderID), ev.SenderID, r.now())
	if !outcome.Confirmed {
		r.send(ctx, ev.ChatID, texts.ConfirmPersonalWipe(name, outcome.Required), chat.ParsePlain)
		return
	}

	r.send(ctx, ev.ChatID, texts.StartPersonalWipe(name), chat.ParsePlain)

	_, err := r.Wiper.Personal(ctx, ev.ChatID, ev.SenderID)
	switch {
	case errors.Is(err, wipe.ErrBatchTooLarge):
		r.send(ctx, ev.ChatID, texts.DeleteError, chat.ParsePlain)
	case err != nil:
		r.send(ctx, ev.ChatID, texts.PersonalWipeFailed(ev.SenderID), chat.ParsePlain)
	default:
		r.reply(ctx, ev.ChatID, ev.MessageID, texts.PersonalWipeDone(name), chat.ParsePlain, r.image("pepe.png"))
	}
}

func (r *Router) sendImportInstructions(ctx context.Context, chatID int64) {
	var photos []string
	for _, name := range []string{"1.png", "2.png", "3.png", "4.png", "5.png", "6.png"} {
		if path := r.image(name); path != "" {
			photos = append(photos, path)
		}
	}
	if len(photos) == 0 {
		r.send(ctx, chatID, texts.ImportHistory, chat.ParseHTML)
		return
	}
	if err := r.Transport.SendAlbum(ctx, chatID, photos, texts.ImportHistory, chat.ParseHTML); err != nil {
		r.Logger.WithField("chat_id", chatID).WithError(err).Error("Failed to send import instructions")
	}
}

func (r *Router) importSnapshot(ctx context.Context, ev Event) {
	entry := r.Logger.WithFields(logrus.Fields{
		"chat_id":   ev.ChatID,
		"file_name": ev.Document.FileName,
	})
	if r.Snapshots == nil {
		entry.Warn("Snapshot storage is not configured, ignoring export")
		return
	}

	data, err := r.Transport.DownloadFile(ctx, ev.Document.FileID)
	if err != nil {
		entry.WithError(err).Error("Failed to download export")
		return
	}
	if _, err := snapshot.Parse(data, ev.ChatID); err != nil {
		entry.WithError(err).Warn("Ignoring document that is not an export of this chat")
		return
	}
	if err := r.Snapshots.Save(ctx, ev.ChatID, data); err != nil {
		entry.WithError(err).Error("Failed to store export")
		return
	}

	entry.Info("Chat export imported")
	r.reply(ctx, ev.ChatID, ev.MessageID, texts.ImportHistoryComplete, chat.ParsePlain, "")
}

func (r *Router) handlePrivate(ctx context.Context, ev Event) {
	switch ParseCommand(ev.Text, r.botUsername(ctx), true) {
	case CommandSetRole:
		r.States.Set(ev.ChatID, StateWaitingRole)
		r.send(ctx, ev.ChatID, texts.AskRole, chat.ParsePlain)
		return
	case CommandGetBalance:
		r.handleBalance(ctx, ev.ChatID)
		return
	case CommandWipeHistory:
		r.handleWipeHistory(ctx, ev.ChatID)
		return
	}

	if r.States.Get(ev.ChatID) == StateWaitingRole {
		role := strings.TrimSpace(ev.Text)
		if role == "" {
			if ev.HasMedia || ev.Document != nil {
				r.send(ctx, ev.ChatID, texts.FilesNotSupported, chat.ParsePlain)
			}
			return
		}
		r.Roles.Set(ev.ChatID, role)
		r.States.Reset(ev.ChatID)
		r.send(ctx, ev.ChatID, texts.RoleInstalled, chat.ParsePlain)
		return
	}

	r.handleConversation(ctx, ev)
}

func (r *Router) handleBalance(ctx context.Context, chatID int64) {
	if r.Completer == nil {
		r.send(ctx, chatID, texts.AIUnavailable, chat.ParsePlain)
		return
	}
	balance, err := r.Completer.Balance(ctx)
	if err != nil {
		r.send(ctx, chatID, texts.RequestError(err), chat.ParsePlain)
		return
	}
	r.send(ctx, chatID, texts.Balance(balance), chat.ParsePlain)
}

func (r *Router) handleWipeHistory(ctx context.Context, chatID int64) {
	report, err := r.Wiper.Conversation(ctx, chatID)
	if err != nil {
		r.send(ctx, chatID, texts.RequestError(err), chat.ParsePlain)
		return
	}
	if failed := report.Failed + report.Rejected; failed > 0 {
		r.send(ctx, chatID, texts.HistoryWipeIncomplete(failed, report.Attempted), chat.ParsePlain)
		return
	}
	r.send(ctx, chatID, texts.HistoryWiped, chat.ParsePlain)
}

func (r *Router) handleConversation(ctx context.Context, ev Event) {
	if ev.HasMedia || ev.Document != nil {
		r.send(ctx, ev.ChatID, texts.FilesNotSupported, chat.ParsePlain)
		return
	}
	if ev.Text == "" {
		return
	}
	if r.Completer == nil {
		r.send(ctx, ev.ChatID, texts.AIUnavailable, chat.ParsePlain)
		return
	}

	if err := r.Transport.Typing(ctx, ev.ChatID); err != nil {
		r.Logger.WithError(err).Debug("Failed to send typing action")
	}

	answer, err := r.complete(ctx, ev)
	if err != nil {
		r.Logger.WithField("chat_id", ev.ChatID).WithError(err).Error("AI request failed")
		r.send(ctx, ev.ChatID, texts.RequestError(err), chat.ParsePlain)
		return
	}
	if err := r.deliver(ctx, ev, answer); err != nil {
		r.Logger.WithField("chat_id", ev.ChatID).WithError(err).Error("Failed to deliver AI answer")
		r.send(ctx, ev.ChatID, texts.RequestError(err), chat.ParsePlain)
	}
}

// deliver replies with the answer, continuing in plain messages when it is
// longer than one Telegram message allows.
func (r *Router) deliver(ctx context.Context, ev Event, answer string) error {
	for i, part := range splitMessage(answer, maxMessageRunes) {
		var err error
		if i == 0 {
			err = r.Transport.Reply(ctx, ev.ChatID, ev.MessageID, part, chat.ParseMarkdown, "")
		} else {
			err = r.Transport.Send(ctx, ev.ChatID, part, chat.ParseMarkdown)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to send answer part %d", i+1)
		}
	}
	return nil
}

func (r *Router) complete(ctx context.Context, ev Event) (string, error) {
	turns, err := r.Transcripts.Build(ctx, ev.ChatID, r.Roles.Get(ev.ChatID))
	if err != nil {
		return "", err
	}
	turns = append(turns, history.Turn{Role: history.RoleUser, Content: ev.Text})
	return r.Completer.Chat(ctx, turns, r.temperature)
}

func (r *Router) botUsername(ctx context.Context) string {
	me, err := r.Transport.Self(ctx)
	if err != nil {
		return ""
	}
	return me.Username
}

func (r *Router) image(name string) string {
	if r.imagesDir == "" {
		return ""
	}
	path := filepath.Join(r.imagesDir, name)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func (r *Router) send(ctx context.Context, chatID int64, text string, mode chat.ParseMode) {
	if err := r.Transport.Send(ctx, chatID, text, mode); err != nil {
		r.Logger.WithFields(logrus.Fields{
			"chat_id": chatID,
			"text":    text,
		}).WithError(err).Error("Failed to send message")
	}
}

func (r *Router) reply(ctx context.Context, chatID int64, messageID int, text string, mode chat.ParseMode, attachment string) {
	if err := r.Transport.Reply(ctx, chatID, messageID, text, mode, attachment); err != nil {
		r.Logger.WithFields(logrus.Fields{
			"chat_id":    chatID,
			"message_id": messageID,
		}).WithError(err).Error("Failed to send reply")
	}
}
