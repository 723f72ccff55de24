// Package album manages albums: ordered collections of photos that belong
// to one category.
package album

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery/service/internal/db"
	"github.com/gallery/service/internal/ordering"
	"github.com/gallery/service/internal/purge"
)

// Album is an ordered set of photos.
type Album struct {
	ID            string    `json:"id"            example:"9b2e4c1d-5a6f-4e3b-8c7d-1f2a3b4c5d6e"`
	Name          string    `json:"name"          example:"Alps 2024"`
	Slug          string    `json:"slug"          example:"alps-2024"`
	Description   *string   `json:"description"   example:"Two weeks above the tree line."`
	CategoryID    string    `json:"categoryId"    example:"3f1c9a52-8d1e-4d7a-9b55-0c8d2f7f5a10"`
	DisplayOrder  int       `json:"displayOrder"  example:"0"`
	CoverImageURL *string   `json:"coverImageUrl" example:"http://localhost:9000/gallery/photos/thumbnails/abc.jpg"`
	IsHidden      bool      `json:"isHidden"      example:"false"`
	PhotoCount    int       `json:"photoCount"    example:"24"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Filter narrows List.
type Filter struct {
	CategoryID    string
	IncludeHidden bool
}

// Patch lists the columns an update may change; nil fields are left alone.
type Patch struct {
	Name          *string
	Slug          *string
	Description   *string
	CategoryID    *string
	DisplayOrder  *int
	CoverImageURL *string
	IsHidden      *bool
}

var (
	// ErrNotFound is returned when an album does not exist.
	ErrNotFound = errors.New("album not found")
	// ErrSlugTaken is returned when the unique slug index rejects a write.
	ErrSlugTaken = errors.New("album slug already exists")
	// ErrCategoryNotFound is returned when the referenced category is missing.
	ErrCategoryNotFound = errors.New("category not found")
)

const selectColumns = `
	SELECT a.id, a.name, a.slug, a.description, a.category_id, a.display_order,
	       a.cover_image_url, a.is_hidden,
	       (SELECT COUNT(*) FROM photos p WHERE p.album_id = a.id),
	       a.created_at, a.updated_at
	FROM albums a`

// Repository handles all album database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanAlbum(row pgx.Row) (*Album, error) {
	a := &Album{}
	err := row.Scan(&a.ID, &a.Name, &a.Slug, &a.Description, &a.CategoryID, &a.DisplayOrder,
		&a.CoverImageURL, &a.IsHidden, &a.PhotoCount, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// List returns albums ordered by category then display order.
func (r *Repository) List(ctx context.Context, f Filter) ([]Album, error) {
	rows, err := r.db.Query(ctx,
		selectColumns+`
		 WHERE ($1 = '' OR a.category_id = $1)
		   AND ($2 OR NOT a.is_hidden)
		 ORDER BY a.category_id, a.display_order, a.created_at`,
		f.CategoryID, f.IncludeHidden,
	)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Album, error) {
		a, err := scanAlbum(row)
		if err != nil {
			return Album{}, err
		}
		return *a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan albums: %w", err)
	}
	return out, nil
}

// GetByID fetches an album by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*Album, error) {
	a, err := scanAlbum(r.db.QueryRow(ctx, selectColumns+` WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get album by id: %w", err)
	}
	return a, nil
}

// GetBySlug fetches an album by slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Album, error) {
	a, err := scanAlbum(r.db.QueryRow(ctx, selectColumns+` WHERE a.slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get album by slug: %w", err)
	}
	return a, nil
}

// SlugTaken reports whether another album (not excludeID) uses slug.
func (r *Repository) SlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM albums WHERE slug = $1 AND id <> $2)`,
		slug, excludeID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check album slug: %w", err)
	}
	return taken, nil
}

// CategoryExists reports whether the category exists.
func (r *Repository) CategoryExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return ok, nil
}

// NextDisplayOrder returns max(display_order)+1 within the category, or 0.
func (r *Repository) NextDisplayOrder(ctx context.Context, categoryID string) (int, error) {
	var next int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(display_order) + 1, 0) FROM albums WHERE category_id = $1`,
		categoryID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next album order: %w", err)
	}
	return next, nil
}

// Create inserts a and fills in its generated fields.
func (r *Repository) Create(ctx context.Context, a *Album) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO albums (name, slug, description, category_id, display_order, cover_image_url, is_hidden)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		a.Name, a.Slug, a.Description, a.CategoryID, a.DisplayOrder, a.CoverImageURL, a.IsHidden,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return classify("create album", err)
}

// Update applies p in a single statement. An empty description clears it.
func (r *Repository) Update(ctx context.Context, id string, p Patch) (*Album, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE albums SET
		   name            = COALESCE($2, name),
		   slug            = COALESCE($3, slug),
		   description     = CASE WHEN $4::text IS NULL THEN description ELSE NULLIF($4, '') END,
		   category_id     = COALESCE($5, category_id),
		   display_order   = COALESCE($6, display_order),
		   cover_image_url = CASE WHEN $7::text IS NULL THEN cover_image_url ELSE NULLIF($7, '') END,
		   is_hidden       = COALESCE($8, is_hidden),
		   updated_at      = NOW()
		 WHERE id = $1`,
		id, p.Name, p.Slug, p.Description, p.CategoryID, p.DisplayOrder, p.CoverImageURL, p.IsHidden,
	)
	if err := classify("update album", err); err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// SetCover sets or, with nil, clears the cover image.
func (r *Repository) SetCover(ctx context.Context, id string, url *string) (*Album, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE albums SET cover_image_url = $2, updated_at = NOW() WHERE id = $1`,
		id, url,
	)
	if err != nil {
		return nil, fmt.Errorf("set album cover: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes the album and its photos in one transaction, queueing the
// photos' stored objects for purging. It returns the queued file ids.
func (r *Repository) Delete(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, `DELETE FROM photos WHERE album_id = $1 AND file_id <> '' RETURNING file_id`, id)
	if err != nil {
		return nil, fmt.Errorf("delete album photos: %w", err)
	}
	fileIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect photo file ids: %w", err)
	}
	if err := purge.Enqueue(ctx, tx, fileIDs...); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM albums WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete album: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit album delete: %w", err)
	}
	return fileIDs, nil
}

// Reorder rewrites display_order for the given albums atomically.
func (r *Repository) Reorder(ctx context.Context, items []ordering.Item) error {
	return ordering.Apply(ctx, r.db, "albums", "album", items)
}

func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return ErrSlugTaken
	case db.IsForeignKeyViolation(err):
		return ErrCategoryNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
