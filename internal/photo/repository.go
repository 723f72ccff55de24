// Package photo manages photos: stored images placed in an album.
package photo

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

// Photo is one image within an album.
type Photo struct {
	ID            string            `json:"id"            example:"5d0c2f4e-7b1a-4c3d-9e8f-a1b2c3d4e5f6"`
	AlbumID       string            `json:"albumId"       example:"9b2e4c1d-5a6f-4e3b-8c7d-1f2a3b4c5d6e"`
	FileID        string            `json:"fileId"        example:"1c7e8f9a-0b1c-4d2e-8f3a-4b5c6d7e8f90"`
	Filename      string            `json:"filename"      example:"IMG_2041.jpg"`
	OriginalURL   string            `json:"originalUrl"   example:"http://localhost:9000/gallery/photos/original/1c7e8f9a.jpg"`
	ThumbnailURL  string            `json:"thumbnailUrl"  example:"http://localhost:9000/gallery/photos/thumbnails/1c7e8f9a.jpg"`
	WebPURLs      map[string]string `json:"webpUrls"`
	DisplayOrder  int               `json:"displayOrder"  example:"0"`
	IsSliderImage bool              `json:"isSliderImage" example:"false"`
	Width         int               `json:"width"         example:"2000"`
	Height        int               `json:"height"        example:"1000"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Patch lists the columns an update may change; nil fields are left alone.
type Patch struct {
	AlbumID       *string
	Filename      *string
	DisplayOrder  *int
	IsSliderImage *bool
}

var (
	// ErrNotFound is returned when a photo does not exist.
	ErrNotFound = errors.New("photo not found")
	// ErrAlbumNotFound is returned when the referenced album is missing.
	ErrAlbumNotFound = errors.New("album not found")
)

const selectColumns = `
	SELECT p.id, p.album_id, p.file_id, p.filename, p.original_url, p.thumbnail_url, p.webp_urls,
	       p.display_order, p.is_slider_image, p.width, p.height, p.created_at, p.updated_at
	FROM photos p`

// Repository handles all photo database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanPhoto(row pgx.Row) (*Photo, error) {
	p := &Photo{}
	err := row.Scan(&p.ID, &p.AlbumID, &p.FileID, &p.Filename, &p.OriginalURL, &p.ThumbnailURL, &p.WebPURLs,
		&p.DisplayOrder, &p.IsSliderImage, &p.Width, &p.Height, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]Photo, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Photo, error) {
		p, err := scanPhoto(row)
		if err != nil {
			return Photo{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan photos: %w", err)
	}
	return out, nil
}

// List returns every photo grouped by album in display order.
func (r *Repository) List(ctx context.Context) ([]Photo, error) {
	return r.query(ctx, selectColumns+` ORDER BY p.album_id, p.display_order, p.created_at`)
}

// ListByAlbum returns the album's photos in display order.
func (r *Repository) ListByAlbum(ctx context.Context, albumID string) ([]Photo, error) {
	return r.query(ctx,
		selectColumns+` WHERE p.album_id = $1 ORDER BY p.display_order, p.created_at`,
		albumID,
	)
}

// ListSlider returns slider photos from visible albums.
func (r *Repository) ListSlider(ctx context.Context) ([]Photo, error) {
	return r.query(ctx,
		selectColumns+`
		 JOIN albums a ON a.id = p.album_id
		 WHERE p.is_slider_image AND NOT a.is_hidden
		 ORDER BY p.display_order, p.created_at`,
	)
}

// GetByID fetches a photo by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*Photo, error) {
	p, err := scanPhoto(r.db.QueryRow(ctx, selectColumns+` WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get photo by id: %w", err)
	}
	return p, nil
}

// AlbumExists reports whether the album exists.
func (r *Repository) AlbumExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM albums WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check album: %w", err)
	}
	return ok, nil
}

// NextDisplayOrder returns max(display_order)+1 within the album, or 0.
func (r *Repository) NextDisplayOrder(ctx context.Context, albumID string) (int, error) {
	var next int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(display_order) + 1, 0) FROM photos WHERE album_id = $1`,
		albumID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next photo order: %w", err)
	}
	return next, nil
}

// Create inserts p and fills in its generated fields.
func (r *Repository) Create(ctx context.Context, p *Photo) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO photos (album_id, file_id, filename, original_url, thumbnail_url, webp_urls,
		                     display_order, is_slider_image, width, height)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		p.AlbumID, p.FileID, p.Filename, p.OriginalURL, p.ThumbnailURL, p.WebPURLs,
		p.DisplayOrder, p.IsSliderImage, p.Width, p.Height,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrAlbumNotFound
		}
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

// Update applies p in a single statement.
func (r *Repository) Update(ctx context.Context, id string, p Patch) (*Photo, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE photos SET
		   album_id        = COALESCE($2, album_id),
		   filename        = COALESCE($3, filename),
		   display_order   = COALESCE($4, display_order),
		   is_slider_image = COALESCE($5, is_slider_image),
		   updated_at      = NOW()
		 WHERE id = $1`,
		id, p.AlbumID, p.Filename, p.DisplayOrder, p.IsSliderImage,
	)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, ErrAlbumNotFound
		}
		return nil, fmt.Errorf("update photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes the photo and, in the same transaction, queues its stored
// objects for purging. It returns the deleted row.
func (r *Repository) Delete(ctx context.Context, id string) (*Photo, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	p, err := scanPhoto(tx.QueryRow(ctx,
		`DELETE FROM photos p WHERE p.id = $1
		 RETURNING p.id, p.album_id, p.file_id, p.filename, p.original_url, p.thumbnail_url, p.webp_urls,
		           p.display_order, p.is_slider_image, p.width, p.height, p.created_at, p.updated_at`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete photo: %w", err)
	}

	if err := purge.Enqueue(ctx, tx, p.FileID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit photo delete: %w", err)
	}
	return p, nil
}

// Reorder rewrites display_order for the given photos atomically.
func (r *Repository) Reorder(ctx context.Context, items []ordering.Item) error {
	return ordering.Apply(ctx, r.db, "photos", "photo", items)
}
