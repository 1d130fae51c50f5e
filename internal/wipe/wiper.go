package wipe

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"wipe-commander/internal/snapshot"
)

// SnapshotLoader reads imported chat exports.
type SnapshotLoader interface {
	Load(ctx context.Context, chatID int64) (*snapshot.Export, error)
}

// Wiper runs total and personal wipes on top of a Deleter.
type Wiper struct {
	deleter   *Deleter
	snapshots SnapshotLoader
	logger    *logrus.Logger
}

// NewWiper creates a wiper. snapshots may be nil.
func NewWiper(deleter *Deleter, snapshots SnapshotLoader, logger *logrus.Logger) *Wiper {
	return &Wiper{deleter: deleter, snapshots: snapshots, logger: logger}
}

// Total deletes every message of the chat. Ids from an imported export are
// deleted first so messages outside the live window are covered too; a
// failure there is logged and the live pass still runs.
func (w *Wiper) Total(ctx context.Context, chatID int64) (Report, error) {
	entry := w.logger.WithFields(logrus.Fields{
		"run_id":  uuid.NewString(),
		"chat_id": chatID,
		"kind":    "total",
	})
	entry.Info("Wipe started")

	var report Report
	var batchErr error

	if ids, err := w.snapshotIDs(ctx, chatID); err != nil {
		entry.WithError(err).Error("Error when trying to remove messages from the export file")
	} else if len(ids) > 0 {
		r, err := w.deleter.DeleteAll(ctx, chatID, ExplicitIDs(ids))
		report.Add(r)
		if err != nil {
			entry.WithError(err).Error("Snapshot pass finished with errors")
			if errors.Is(err, ErrBatchTooLarge) {
				batchErr = err
			}
		}
	}

	r, err := w.deleter.DeleteAll(ctx, chatID, AllMessages())
	report.Add(r)
	if err != nil && !errors.Is(err, ErrBatchTooLarge) {
		entry.WithError(err).Error("Error when trying to remove messages")
		return report, err
	}
	if err != nil {
		batchErr = err
	}

	entry.WithField("attempted", report.Attempted).Info("Wipe finished")
	return report, batchErr
}

// Personal deletes every message userID sent to the chat.
func (w *Wiper) Personal(ctx context.Context, chatID, userID int64) (Report, error) {
	entry := w.logger.WithFields(logrus.Fields{
		"run_id":  uuid.NewString(),
		"chat_id": chatID,
		"user_id": userID,
		"kind":    "personal",
	})
	entry.Info("Wipe started")

	report, err := w.deleter.DeleteAll(ctx, chatID, MessagesFrom(userID))
	if err != nil {
		entry.WithError(err).Error("An error occurred while deleting user messages")
		return report, err
	}

	entry.WithField("attempted", report.Attempted).Info("Wipe finished")
	return report, nil
}

// Conversation deletes a private conversation with the bot.
func (w *Wiper) Conversation(ctx context.Context, chatID int64) (Report, error) {
	return w.deleter.DeleteAll(ctx, chatID, AllMessages())
}

func (w *Wiper) snapshotIDs(ctx context.Context, chatID int64) ([]int, error) {
	if w.snapshots == nil {
		return nil, nil
	}
	export, err := w.snapshots.Load(ctx, chatID)
	if errors.Is(err, snapshot.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return export.MessageIDs(), nil
}
