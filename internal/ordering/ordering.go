// Package ordering implements the bulk display-order rewrite shared by
// categories, albums and photos.
package ordering

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gallery/service/internal/apperr"
)

// Item is one (id, position) pair of a reorder request.
type Item struct {
	ID           string `json:"id"           validate:"required"`
	DisplayOrder int    `json:"displayOrder" validate:"gte=0"`
}

// Request is the body accepted by every .../order/update endpoint.
type Request struct {
	Items []Item `json:"items" validate:"required,min=1,unique=ID,dive"`
}

// Beginner starts a transaction; satisfied by *pgxpool.Pool.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// IDs returns the ids of items in request order.
func IDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// Missing returns the ids in want that are absent from have, preserving order.
func Missing(want, have []string) []string {
	seen := make(map[string]struct{}, len(have))
	for _, id := range have {
		seen[id] = struct{}{}
	}
	var missing []string
	for _, id := range want {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// Apply rewrites display_order for every item of table inside a single
// transaction. The referenced rows are locked and checked first; if any id is
// missing the transaction is rolled back before a single row is written.
// table and entity are compile-time constants of the calling repository.
func Apply(ctx context.Context, db Beginner, table, entity string, items []Item) error {
	ids := IDs(items)

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE id = ANY($1) FOR UPDATE`, table), ids)
	if err != nil {
		return fmt.Errorf("lock %s rows: %w", table, err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("scan %s ids: %w", table, err)
	}
	if missing := Missing(ids, found); len(missing) > 0 {
		return apperr.NotFoundMany(entity, missing)
	}

	batch := &pgx.Batch{}
	update := fmt.Sprintf(`UPDATE %s SET display_order = $2, updated_at = NOW() WHERE id = $1`, table)
	for _, it := range items {
		batch.Queue(update, it.ID, it.DisplayOrder)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("update %s order: %w", table, err)
	}

	return tx.Commit(ctx)
}
