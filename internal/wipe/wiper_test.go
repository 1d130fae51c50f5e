package wipe

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wipe-commander/internal/chat"
	"wipe-commander/internal/chat/chattest"
	"wipe-commander/internal/snapshot"
)

type stubSnapshots struct {
	export *snapshot.Export
	err    error
}

func (s stubSnapshots) Load(context.Context, int64) (*snapshot.Export, error) {
	return s.export, s.err
}

func liveChat() *chattest.Transport {
	tr := chattest.New(chat.Identity{ID: botID})
	tr.Add(-100,
		chat.MessageRecord{ID: 10, SenderID: 1},
		chat.MessageRecord{ID: 11, SenderID: 2},
	)
	return tr
}

func TestWiperTotalDeletesSnapshotFirst(t *testing.T) {
	tr := liveChat()
	export := &snapshot.Export{
		Name: "group",
		ID:   100,
		Messages: []snapshot.ExportMessage{
			{ID: 1}, {ID: 2}, {ID: 3},
		},
	}
	w := NewWiper(NewDeleter(tr, quietLogger(), WithPacing(0)), stubSnapshots{export: export}, quietLogger())

	report, err := w.Total(context.Background(), -100)
	require.NoError(t, err)

	calls := tr.Deletes()
	require.Len(t, calls, 2)
	assert.Equal(t, []int{1, 2, 3}, calls[0].IDs)
	assert.Equal(t, []int{11, 10}, calls[1].IDs)
	assert.Equal(t, 5, report.Attempted)
	assert.Empty(t, tr.Messages(-100))
}

func TestWiperTotalSnapshotFailureDoesNotBlock(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "not imported", err: snapshot.ErrNotFound},
		{name: "storage error", err: errors.New("disk on fire")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := liveChat()
			w := NewWiper(NewDeleter(tr, quietLogger(), WithPacing(0)), stubSnapshots{err: tt.err}, quietLogger())

			report, err := w.Total(context.Background(), -100)

			require.NoError(t, err)
			assert.Len(t, tr.Deletes(), 1)
			assert.Equal(t, 2, report.Attempted)
		})
	}
}

func TestWiperTotalWithoutSnapshotStore(t *testing.T) {
	tr := liveChat()
	w := NewWiper(NewDeleter(tr, quietLogger(), WithPacing(0)), nil, quietLogger())

	_, err := w.Total(context.Background(), -100)

	require.NoError(t, err)
	assert.Len(t, tr.Deletes(), 1)
}

func TestWiperTotalEnumerationFailure(t *testing.T) {
	tr := liveChat()
	tr.IterateErr = errors.New("history unavailable")
	w := NewWiper(NewDeleter(tr, quietLogger(), WithPacing(0)), nil, quietLogger())

	_, err := w.Total(context.Background(), -100)

	assert.Error(t, err)
}

func TestWiperPersonal(t *testing.T) {
	tr := liveChat()
	w := NewWiper(NewDeleter(tr, quietLogger(), WithPacing(0)), nil, quietLogger())

	report, err := w.Personal(context.Background(), -100, 2)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, []chat.MessageRecord{{ID: 10, SenderID: 1}}, tr.Messages(-100))
}

func TestWiperPersonalOversizedBatch(t *testing.T) {
	tr := chattest.New(chat.Identity{ID: botID})
	for _, id := range seq(1, 120) {
		tr.Add(-100, chat.MessageRecord{ID: id, SenderID: 5})
	}
	w := NewWiper(NewDeleter(tr, quietLogger(), WithBatchSize(120), WithPacing(0)), nil, quietLogger())

	_, err := w.Personal(context.Background(), -100, 5)

	assert.True(t, errors.Is(err, ErrBatchTooLarge))
	assert.Empty(t, tr.Deletes())
}
