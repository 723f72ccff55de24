package purge

import (
	"context"
	"errors"
	"log/slog"
)

// DefaultBatchSize bounds how many entries one RunPending pass handles.
const DefaultBatchSize = 100

type queue interface {
	Pending(ctx context.Context, maxAttempts, limit int) ([]Entry, error)
	Done(ctx context.Context, fileID string) error
	Failed(ctx context.Context, fileID, reason string) error
}

type deleter interface {
	DeleteByFileID(ctx context.Context, fileID string) (bool, error)
}

// Purger deletes queued storage objects.
type Purger struct {
	queue       queue
	store       deleter
	maxAttempts int
	batchSize   int
	logger      *slog.Logger
}

// NewPurger creates a Purger. Entries that fail maxAttempts times stay in the
// queue for inspection but are no longer retried.
func NewPurger(q queue, store deleter, maxAttempts int, logger *slog.Logger) *Purger {
	if maxAttempts < 1 {
		maxAttempts = 10
	}
	return &Purger{
		queue:       q,
		store:       store,
		maxAttempts: maxAttempts,
		batchSize:   DefaultBatchSize,
		logger:      logger.With("component", "purge"),
	}
}

// Purge deletes every object of fileID and settles its queue entry. It
// reports whether storage is now clean. Errors are logged, not returned.
func (p *Purger) Purge(ctx context.Context, fileID string) bool {
	if fileID == "" {
		return true
	}

	ok, err := p.store.DeleteByFileID(ctx, fileID)
	if err == nil && !ok {
		err = errors.New("some objects could not be deleted")
	}
	if err != nil {
		p.logger.Warn("purge attempt failed", "file_id", fileID, "error", err)
		if qerr := p.queue.Failed(ctx, fileID, err.Error()); qerr != nil {
			p.logger.Error("record purge failure", "file_id", fileID, "error", qerr)
		}
		return false
	}

	if err := p.queue.Done(ctx, fileID); err != nil {
		p.logger.Error("complete purge", "file_id", fileID, "error", err)
	}
	return true
}

// PurgeAll purges each of fileIDs in turn and returns how many succeeded.
func (p *Purger) PurgeAll(ctx context.Context, fileIDs ...string) int {
	n := 0
	for _, id := range fileIDs {
		if p.Purge(ctx, id) {
			n++
		}
	}
	return n
}

// RunPending retries queued entries that still have attempts left.
func (p *Purger) RunPending(ctx context.Context) (purged, failed int, err error) {
	entries, err := p.queue.Pending(ctx, p.maxAttempts, p.batchSize)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return purged, failed, ctx.Err()
		}
		if p.Purge(ctx, e.FileID) {
			purged++
		} else {
			failed++
		}
	}
	if len(entries) > 0 {
		p.logger.Info("purge pass finished", "purged", purged, "failed", failed)
	}
	return purged, failed, nil
}
