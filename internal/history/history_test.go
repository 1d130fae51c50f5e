package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wipe-commander/internal/chat"
	"wipe-commander/internal/chat/chattest"
)

const (
	botID  = 42
	userID = 7
	chatID = 7
)

// conversation appends n question/answer pairs starting at message id from.
func conversation(tr *chattest.Transport, from, n int) {
	for i := 0; i < n; i++ {
		q := from + 2*i
		tr.Add(chatID,
			chat.MessageRecord{ID: q, SenderID: userID, Text: fmt.Sprintf("q%d", i)},
			chat.MessageRecord{ID: q + 1, SenderID: botID, Text: fmt.Sprintf("a%d", i), ReplyToID: q},
		)
	}
}

func TestBuildPairsRepliesOldestFirst(t *testing.T) {
	tr := chattest.New(chat.Identity{ID: botID})
	conversation(tr, 1, 3)
	// unrelated messages: a user message nobody answered and a bot notice
	tr.Add(chatID,
		chat.MessageRecord{ID: 20, SenderID: userID, Text: "ignored"},
		chat.MessageRecord{ID: 21, SenderID: botID, Text: "Role installed"},
	)

	turns, err := NewReconstructor(tr).Build(context.Background(), chatID, "")
	require.NoError(t, err)

	assert.Equal(t, []Turn{
		{Role: RoleSystem, Content: DefaultPersona},
		{Role: RoleUser, Content: "q0"},
		{Role: RoleAssistant, Content: "a0"},
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "q2"},
		{Role: RoleAssistant, Content: "a2"},
	}, turns)
}

func TestBuildKeepsLastTurns(t *testing.T) {
	tr := chattest.New(chat.Identity{ID: botID})
	conversation(tr, 1, 25)

	turns, err := NewReconstructor(tr).Build(context.Background(), chatID, "")
	require.NoError(t, err)

	require.Len(t, turns, Limit+1)
	assert.Equal(t, RoleSystem, turns[0].Role)
	// 25 pairs minus the 5 oldest
	assert.Equal(t, Turn{Role: RoleUser, Content: "q5"}, turns[1])
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "a24"}, turns[len(turns)-1])
}

func TestBuildRoleOverride(t *testing.T) {
	tr := chattest.New(chat.Identity{ID: botID})

	turns, err := NewReconstructor(tr).Build(context.Background(), chatID, "You are a pirate.")
	require.NoError(t, err)

	assert.Equal(t, []Turn{{Role: RoleSystem, Content: "You are a pirate."}}, turns)
}

func TestBuildQuotedMessageMissing(t *testing.T) {
	tr := chattest.New(chat.Identity{ID: botID})
	conversation(tr, 1, 1)
	tr.Add(chatID, chat.MessageRecord{ID: 10, SenderID: botID, Text: "late answer", ReplyToID: 9})

	_, err := NewReconstructor(tr).Build(context.Background(), chatID, "")

	assert.True(t, errors.Is(err, ErrQuotedMessageMissing))
}

func TestBuildEnumerationError(t *testing.T) {
	tr := chattest.New(chat.Identity{ID: botID})
	tr.IterateErr = errors.New("offline")

	_, err := NewReconstructor(tr).Build(context.Background(), chatID, "")

	assert.Error(t, err)
}

func TestPairSkipsBotMessagesWithoutReply(t *testing.T) {
	bot := []chat.MessageRecord{
		{ID: 4, SenderID: botID, Text: "answer", ReplyToID: 3},
		{ID: 2, SenderID: botID, Text: "Welcome"},
	}
	users := map[int]chat.MessageRecord{
		3: {ID: 3, SenderID: userID, Text: "question"},
	}

	turns, err := Pair(bot, users)
	require.NoError(t, err)

	assert.Equal(t, []Turn{
		{Role: RoleUser, Content: "question"},
		{Role: RoleAssistant, Content: "answer"},
	}, turns)
}

func TestSystemTurn(t *testing.T) {
	assert.Equal(t, Turn{Role: RoleSystem, Content: DefaultPersona}, SystemTurn(""))
	assert.Equal(t, Turn{Role: RoleSystem, Content: "Be brief."}, SystemTurn("Be brief."))
}
