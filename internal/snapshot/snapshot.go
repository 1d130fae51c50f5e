// Package snapshot stores Telegram chat exports (result.json) so that a total
// wipe can reach messages that are no longer visible to the bot.
package snapshot

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound means no export was imported for the chat.
	ErrNotFound = errors.New("snapshot not found")
	// ErrInvalid means the document is not an export of the receiving chat.
	ErrInvalid = errors.New("invalid chat export")
)

// Export is the subset of a Telegram Desktop JSON export the bot needs.
type Export struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	ID       int64           `json:"id"`
	Messages []ExportMessage `json:"messages"`
}

// ExportMessage is one exported message.
type ExportMessage struct {
	ID   int    `json:"id"`
	Type string `json:"type,omitempty"`
}

// Store persists one export per chat.
type Store interface {
	Save(ctx context.Context, chatID int64, data []byte) error
	Load(ctx context.Context, chatID int64) (*Export, error)
}

// Parse decodes data and checks it belongs to chatID.
func Parse(data []byte, chatID int64) (*Export, error) {
	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}
	if err := export.Validate(chatID); err != nil {
		return nil, err
	}
	return &export, nil
}

// Validate requires a name, at least one message and an id naming chatID.
func (e *Export) Validate(chatID int64) error {
	if e.Name == "" {
		return errors.Wrap(ErrInvalid, "missing name")
	}
	if len(e.Messages) == 0 {
		return errors.Wrap(ErrInvalid, "no messages")
	}
	if !MatchesChat(e.ID, chatID) {
		return errors.Wrapf(ErrInvalid, "export id %d does not match chat %d", e.ID, chatID)
	}
	return nil
}

// MessageIDs returns the exported message ids in file order.
func (e *Export) MessageIDs() []int {
	ids := make([]int, 0, len(e.Messages))
	for _, m := range e.Messages {
		if m.ID > 0 {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// MatchesChat reports whether an export id refers to chatID. Exports carry
// the bare peer id while the Bot API prefixes groups with "-" and
// supergroups with "-100".
func MatchesChat(exportID, chatID int64) bool {
	if exportID == 0 {
		return false
	}
	if exportID == chatID {
		return true
	}
	id := strconv.FormatInt(exportID, 10)
	chat := strconv.FormatInt(chatID, 10)
	return chat == "-"+id || chat == "-100"+id
}

func fileName(chatID int64) string {
	return strconv.FormatInt(chatID, 10) + ".json"
}

func decode(data []byte) (*Export, error) {
	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, errors.Wrap(err, "failed to parse stored snapshot")
	}
	return &export, nil
}
