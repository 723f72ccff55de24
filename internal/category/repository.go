// Package category manages gallery categories, the top level of the
// category → album → photo hierarchy.
package category

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery/service/internal/db"
	"github.com/gallery/service/internal/ordering"
)

// Category groups albums for navigation.
type Category struct {
	ID           string    `json:"id"           example:"3f1c9a52-8d1e-4d7a-9b55-0c8d2f7f5a10"`
	Name         string    `json:"name"         example:"Nature"`
	Slug         string    `json:"slug"         example:"nature"`
	DisplayOrder int       `json:"displayOrder" example:"0"`
	ShowInMenu   bool      `json:"showInMenu"   example:"true"`
	AlbumCount   int       `json:"albumCount"   example:"4"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Patch lists the columns an update may change; nil fields are left alone.
type Patch struct {
	Name         *string
	Slug         *string
	DisplayOrder *int
	ShowInMenu   *bool
}

var (
	// ErrNotFound is returned when a category does not exist.
	ErrNotFound = errors.New("category not found")
	// ErrSlugTaken is returned when the unique slug index rejects a write.
	ErrSlugTaken = errors.New("category slug already exists")
	// ErrHasAlbums is returned when a delete is blocked by dependent albums.
	ErrHasAlbums = errors.New("category has albums")
)

const selectColumns = `
	SELECT c.id, c.name, c.slug, c.display_order, c.show_in_menu,
	       (SELECT COUNT(*) FROM albums a WHERE a.category_id = c.id),
	       c.created_at, c.updated_at
	FROM categories c`

// Repository handles all category database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanCategory(row pgx.Row) (*Category, error) {
	c := &Category{}
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.DisplayOrder, &c.ShowInMenu, &c.AlbumCount, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// List returns categories ordered by display order, optionally only those
// shown in the menu.
func (r *Repository) List(ctx context.Context, menuOnly bool) ([]Category, error) {
	rows, err := r.db.Query(ctx,
		selectColumns+`
		 WHERE ($1 = FALSE OR c.show_in_menu)
		 ORDER BY c.display_order, c.created_at`,
		menuOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Category, error) {
		c, err := scanCategory(row)
		if err != nil {
			return Category{}, err
		}
		return *c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	return out, nil
}

// GetByID fetches a category by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*Category, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, selectColumns+` WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category by id: %w", err)
	}
	return c, nil
}

// GetBySlug fetches a category by slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, selectColumns+` WHERE c.slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category by slug: %w", err)
	}
	return c, nil
}

// SlugTaken reports whether another category (not excludeID) uses slug.
func (r *Repository) SlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE slug = $1 AND id <> $2)`,
		slug, excludeID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check category slug: %w", err)
	}
	return taken, nil
}

// NextDisplayOrder returns max(display_order)+1, or 0 when there are none.
func (r *Repository) NextDisplayOrder(ctx context.Context) (int, error) {
	var next int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(display_order) + 1, 0) FROM categories`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next category order: %w", err)
	}
	return next, nil
}

// Create inserts c and fills in its generated fields.
func (r *Repository) Create(ctx context.Context, c *Category) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO categories (name, slug, display_order, show_in_menu)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		c.Name, c.Slug, c.DisplayOrder, c.ShowInMenu,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// Update applies p in a single statement.
func (r *Repository) Update(ctx context.Context, id string, p Patch) (*Category, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE categories SET
		   name          = COALESCE($2, name),
		   slug          = COALESCE($3, slug),
		   display_order = COALESCE($4, display_order),
		   show_in_menu  = COALESCE($5, show_in_menu),
		   updated_at    = NOW()
		 WHERE id = $1`,
		id, p.Name, p.Slug, p.DisplayOrder, p.ShowInMenu,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes the category only if no album references it. When blocked
// it returns ErrHasAlbums together with the number of dependent albums.
func (r *Repository) Delete(ctx context.Context, id string) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM categories c
		 WHERE c.id = $1
		   AND NOT EXISTS (SELECT 1 FROM albums a WHERE a.category_id = c.id)`,
		id,
	)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return r.blockedBy(ctx, id)
		}
		return 0, fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return 0, nil
	}
	return r.blockedBy(ctx, id)
}

// blockedBy explains why a delete matched no row.
func (r *Repository) blockedBy(ctx context.Context, id string) (int, error) {
	var exists bool
	var albums int
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1),
		        (SELECT COUNT(*) FROM albums WHERE category_id = $1)`,
		id,
	).Scan(&exists, &albums)
	if err != nil {
		return 0, fmt.Errorf("inspect category: %w", err)
	}
	if !exists {
		return 0, ErrNotFound
	}
	return albums, ErrHasAlbums
}

// Reorder rewrites display_order for the given categories atomically.
func (r *Repository) Reorder(ctx context.Context, items []ordering.Item) error {
	return ordering.Apply(ctx, r.db, "categories", "category", items)
}
