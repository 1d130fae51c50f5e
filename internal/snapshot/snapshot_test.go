package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExport = `{
  "name": "Weekend plans",
  "type": "private_supergroup",
  "id": 1234567890,
  "messages": [
    {"id": 1, "type": "service"},
    {"id": 2, "type": "message"},
    {"id": 5, "type": "message"}
  ]
}`

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		chatID  int64
		wantErr bool
	}{
		{name: "supergroup export", data: sampleExport, chatID: -1001234567890},
		{name: "foreign chat", data: sampleExport, chatID: -1009999999999, wantErr: true},
		{name: "not json", data: "hello", chatID: -1001234567890, wantErr: true},
		{name: "missing name", data: `{"id": 1, "messages": [{"id": 1}]}`, chatID: -1, wantErr: true},
		{name: "no messages", data: `{"name": "x", "id": 1, "messages": []}`, chatID: -1, wantErr: true},
		{name: "missing id", data: `{"name": "x", "messages": [{"id": 1}]}`, chatID: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			export, err := Parse([]byte(tt.data), tt.chatID)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Weekend plans", export.Name)
			assert.Equal(t, []int{1, 2, 5}, export.MessageIDs())
		})
	}
}

func TestMatchesChat(t *testing.T) {
	tests := []struct {
		exportID int64
		chatID   int64
		want     bool
	}{
		{exportID: 42, chatID: 42, want: true},
		{exportID: 42, chatID: -42, want: true},
		{exportID: 42, chatID: -10042, want: true},
		{exportID: 42, chatID: -43, want: false},
		{exportID: 42, chatID: -1042, want: false},
		{exportID: 0, chatID: 0, want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesChat(tt.exportID, tt.chatID), "export %d chat %d", tt.exportID, tt.chatID)
	}
}

func TestMessageIDsSkipsInvalid(t *testing.T) {
	e := &Export{Messages: []ExportMessage{{ID: 0}, {ID: 3}, {ID: -1}, {ID: 4}}}
	assert.Equal(t, []int{3, 4}, e.MessageIDs())
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(ctx, -1001234567890)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Save(ctx, -1001234567890, []byte(sampleExport)))
	export, err := store.Load(ctx, -1001234567890)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 5}, export.MessageIDs())
	assert.Equal(t, "-1001234567890.json", filepath.Base(store.Path(-1001234567890)))

	// a second import replaces the first
	require.NoError(t, store.Save(ctx, -1001234567890, []byte(`{"name":"n","id":1234567890,"messages":[{"id":9}]}`)))
	export, err = store.Load(ctx, -1001234567890)
	require.NoError(t, err)
	assert.Equal(t, []int{9}, export.MessageIDs())
}
