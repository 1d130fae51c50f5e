// Package history rebuilds an AI conversation from the chat itself: every
// bot message that replies to a user message becomes a user/assistant pair.
package history

import (
	"context"

	"github.com/pkg/errors"

	"wipe-commander/internal/chat"
)

const (
	// Limit is the number of turns kept after the system turn.
	Limit = 40
	// DefaultPersona is used when the chat has no role override.
	DefaultPersona = "You are a helpful assistant."
)

// Roles of a conversation turn
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrQuotedMessageMissing is returned when a bot reply quotes a message that
// is not in the enumerated history.
var ErrQuotedMessageMissing = errors.New("quoted message not found in chat history")

// Turn is one role-tagged message of a transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source enumerates chat messages and names the bot.
type Source interface {
	IterateMessages(ctx context.Context, chatID int64, filter chat.Filter, fn func(chat.MessageRecord) error) error
	Self(ctx context.Context) (chat.Identity, error)
}

// Reconstructor builds transcripts from a Source.
type Reconstructor struct {
	source Source
	limit  int
}

// NewReconstructor creates a reconstructor keeping the last Limit turns.
func NewReconstructor(source Source) *Reconstructor {
	return &Reconstructor{source: source, limit: Limit}
}

// Build returns the transcript of chatID: one system turn (role, or
// DefaultPersona when empty) followed by at most Limit turns, oldest first.
func (r *Reconstructor) Build(ctx context.Context, chatID int64, role string) ([]Turn, error) {
	me, err := r.source.Self(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve bot identity")
	}

	var botMessages []chat.MessageRecord
	userMessages := make(map[int]chat.MessageRecord)

	err = r.source.IterateMessages(ctx, chatID, chat.Filter{}, func(m chat.MessageRecord) error {
		if m.SenderID == me.ID {
			botMessages = append(botMessages, m)
		} else {
			userMessages[m.ID] = m
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read history of chat %d", chatID)
	}

	turns, err := Pair(botMessages, userMessages)
	if err != nil {
		return nil, err
	}

	if len(turns) > r.limit {
		turns = turns[len(turns)-r.limit:]
	}

	return append([]Turn{SystemTurn(role)}, turns...), nil
}

// Pair walks botMessages (newest first, as enumerated) from the oldest and
// emits the quoted user message followed by the bot answer. Bot messages
// without a reply target are skipped.
func Pair(botMessages []chat.MessageRecord, userMessages map[int]chat.MessageRecord) ([]Turn, error) {
	turns := make([]Turn, 0, 2*len(botMessages))
	for i := len(botMessages) - 1; i >= 0; i-- {
		answer := botMessages[i]
		if answer.ReplyToID == 0 {
			continue
		}
		question, ok := userMessages[answer.ReplyToID]
		if !ok {
			return nil, errors.Wrapf(ErrQuotedMessageMissing, "message %d replies to %d", answer.ID, answer.ReplyToID)
		}
		turns = append(turns,
			Turn{Role: RoleUser, Content: question.Text},
			Turn{Role: RoleAssistant, Content: answer.Text},
		)
	}
	return turns, nil
}

// SystemTurn returns the persona turn for role.
func SystemTurn(role string) Turn {
	if role == "" {
		role = DefaultPersona
	}
	return Turn{Role: RoleSystem, Content: role}
}
