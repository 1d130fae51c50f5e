package wipe

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"wipe-commander/internal/chat"
)

const (
	// MaxBatch is the transport's hard limit of ids per deletion call.
	MaxBatch = 100
	// DefaultPacing is the pause between two deletion calls.
	DefaultPacing = 500 * time.Millisecond
)

// ErrBatchTooLarge is returned for a batch above MaxBatch. Such a batch is
// never sent, nor is it truncated.
var ErrBatchTooLarge = errors.New("deletion batch exceeds transport cap")

// SourceKind selects where the ids of a deletion come from
type SourceKind int

const (
	SourceAll SourceKind = iota
	SourceSender
	SourceIDs
)

// Source describes the message set to delete.
type Source struct {
	Kind     SourceKind
	SenderID int64
	IDs      []int
}

// AllMessages selects every message in the chat.
func AllMessages() Source { return Source{Kind: SourceAll} }

// MessagesFrom selects the messages of one sender.
func MessagesFrom(senderID int64) Source { return Source{Kind: SourceSender, SenderID: senderID} }

// ExplicitIDs selects a previously imported id list.
func ExplicitIDs(ids []int) Source { return Source{Kind: SourceIDs, IDs: ids} }

// Report aggregates the result of a DeleteAll call.
type Report struct {
	Attempted int
	Failed    int
	Rejected  int
	Batches   int
}

// Add merges another report into r.
func (r *Report) Add(o Report) {
	r.Attempted += o.Attempted
	r.Failed += o.Failed
	r.Rejected += o.Rejected
	r.Batches += o.Batches
}

// Deleter turns an unbounded id set into paced deletion calls.
type Deleter struct {
	transport chat.Transport
	logger    *logrus.Logger
	batchSize int
	pace      func(ctx context.Context) error
}

// DeleterOption customizes a Deleter.
type DeleterOption func(*Deleter)

// WithBatchSize overrides the partition size. Values above MaxBatch are kept
// as-is so a misconfiguration surfaces as rejected batches.
func WithBatchSize(n int) DeleterOption {
	return func(d *Deleter) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithPacing sets a fixed sleep between batches.
func WithPacing(delay time.Duration) DeleterOption {
	return func(d *Deleter) {
		d.pace = sleeper(delay)
	}
}

// WithPacer replaces the pause between batches.
func WithPacer(pace func(ctx context.Context) error) DeleterOption {
	return func(d *Deleter) {
		d.pace = pace
	}
}

// NewDeleter creates a deleter over transport.
func NewDeleter(transport chat.Transport, logger *logrus.Logger, opts ...DeleterOption) *Deleter {
	d := &Deleter{
		transport: transport,
		logger:    logger,
		batchSize: MaxBatch,
		pace:      sleeper(DefaultPacing),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DeleteAll deletes every message selected by src.
//
// Failing batches are logged and counted; only a failed enumeration aborts the
// call. If any batch was rejected for exceeding MaxBatch the returned error
// wraps ErrBatchTooLarge and the report is still complete.
func (d *Deleter) DeleteAll(ctx context.Context, chatID int64, src Source) (Report, error) {
	ids, err := d.collect(ctx, chatID, src)
	if err != nil {
		return Report{}, errors.Wrapf(err, "failed to enumerate messages of chat %d", chatID)
	}

	var report Report
	for i, batch := range Partition(ids, d.batchSize) {
		if i > 0 {
			if err := d.pace(ctx); err != nil {
				return report, errors.Wrap(err, "deletion interrupted")
			}
		}

		report.Batches++
		report.Attempted += len(batch)

		if err := d.DeleteBatch(ctx, chatID, batch); err != nil {
			if errors.Is(err, ErrBatchTooLarge) {
				report.Rejected += len(batch)
			} else {
				report.Failed += len(batch)
			}
			d.logger.WithFields(logrus.Fields{
				"chat_id":    chatID,
				"batch":      i,
				"batch_size": len(batch),
			}).WithError(err).Error("Failed to delete message batch")
		}
	}

	d.logger.WithFields(logrus.Fields{
		"chat_id":   chatID,
		"attempted": report.Attempted,
		"failed":    report.Failed,
		"rejected":  report.Rejected,
		"batches":   report.Batches,
	}).Info("Deletion finished")

	if report.Rejected > 0 {
		return report, errors.Wrapf(ErrBatchTooLarge, "%d ids rejected", report.Rejected)
	}
	return report, nil
}

// DeleteBatch issues a single deletion call for ids.
func (d *Deleter) DeleteBatch(ctx context.Context, chatID int64, ids []int) error {
	if len(ids) > MaxBatch {
		return errors.Wrapf(ErrBatchTooLarge, "got %d ids, cap is %d", len(ids), MaxBatch)
	}
	if len(ids) == 0 {
		return nil
	}
	return d.transport.DeleteMessages(ctx, chatID, ids, true)
}

func (d *Deleter) collect(ctx context.Context, chatID int64, src Source) ([]int, error) {
	if src.Kind == SourceIDs {
		return src.IDs, nil
	}

	filter := chat.Filter{}
	if src.Kind == SourceSender {
		filter.SenderID = src.SenderID
	}

	var ids []int
	err := d.transport.IterateMessages(ctx, chatID, filter, func(m chat.MessageRecord) error {
		ids = append(ids, m.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Partition splits ids into consecutive chunks of at most size.
func Partition(ids []int, size int) [][]int {
	if size <= 0 {
		size = MaxBatch
	}
	batches := make([][]int, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

func sleeper(delay time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if delay <= 0 {
			return nil
		}
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
