// Package purge tracks storage objects whose metadata row has been deleted
// and removes them, immediately when possible and on a schedule otherwise.
package purge

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one pending purge.
type Entry struct {
	FileID    string    `json:"fileId"`
	Attempts  int       `json:"attempts"`
	LastError *string   `json:"lastError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Execer runs a statement; satisfied by pgx.Tx and *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Enqueue records fileIDs for purging. Called inside the transaction that
// deletes the owning rows so the queue never misses an orphan.
func Enqueue(ctx context.Context, q Execer, fileIDs ...string) error {
	var ids []string
	for _, id := range fileIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := q.Exec(ctx,
		`INSERT INTO storage_purges (file_id)
		 SELECT UNNEST($1::text[])
		 ON CONFLICT (file_id) DO UPDATE SET updated_at = NOW()`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("enqueue purge: %w", err)
	}
	return nil
}

// Repository persists the purge queue.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new purge Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Pending returns up to limit entries that have been tried fewer than
// maxAttempts times, oldest first.
func (r *Repository) Pending(ctx context.Context, maxAttempts, limit int) ([]Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT file_id, attempts, last_error, created_at, updated_at
		 FROM storage_purges
		 WHERE attempts < $1
		 ORDER BY updated_at
		 LIMIT $2`,
		maxAttempts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending purges: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.FileID, &e.Attempts, &e.LastError, &e.CreatedAt, &e.UpdatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan pending purges: %w", err)
	}
	return entries, nil
}

// Done removes fileID from the queue.
func (r *Repository) Done(ctx context.Context, fileID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM storage_purges WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("complete purge: %w", err)
	}
	return nil
}

// Failed records a failed attempt for fileID.
func (r *Repository) Failed(ctx context.Context, fileID, reason string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE storage_purges
		 SET attempts = attempts + 1, last_error = $2, updated_at = NOW()
		 WHERE file_id = $1`,
		fileID, reason,
	)
	if err != nil {
		return fmt.Errorf("record purge failure: %w", err)
	}
	return nil
}
