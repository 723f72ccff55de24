// Package stats reports content totals for the admin dashboard.
package stats

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery/service/internal/response"
)

// Counts summarises the gallery's content.
type Counts struct {
	Categories    int `json:"categories"    example:"4"`
	Albums        int `json:"albums"        example:"12"`
	HiddenAlbums  int `json:"hiddenAlbums"  example:"2"`
	Photos        int `json:"photos"        example:"318"`
	SliderPhotos  int `json:"sliderPhotos"  example:"6"`
	PendingPurges int `json:"pendingPurges" example:"0"`
}

// Repository reads the totals.
type Repository struct {
	db          *pgxpool.Pool
	maxAttempts int
}

// NewRepository creates a Repository. Purge entries that reached maxAttempts
// are not counted as pending.
func NewRepository(db *pgxpool.Pool, maxAttempts int) *Repository {
	return &Repository{db: db, maxAttempts: maxAttempts}
}

// Counts returns every total in one round trip.
func (r *Repository) Counts(ctx context.Context) (*Counts, error) {
	c := &Counts{}
	err := r.db.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM categories),
		   (SELECT COUNT(*) FROM albums),
		   (SELECT COUNT(*) FROM albums WHERE is_hidden),
		   (SELECT COUNT(*) FROM photos),
		   (SELECT COUNT(*) FROM photos WHERE is_slider_image),
		   (SELECT COUNT(*) FROM storage_purges WHERE attempts < $1)`,
		r.maxAttempts,
	).Scan(&c.Categories, &c.Albums, &c.HiddenAlbums, &c.Photos, &c.SliderPhotos, &c.PendingPurges)
	if err != nil {
		return nil, fmt.Errorf("count content: %w", err)
	}
	return c, nil
}

type counter interface {
	Counts(ctx context.Context) (*Counts, error)
}

// Handler serves the stats endpoint.
type Handler struct {
	repo counter
}

// NewHandler creates a stats Handler.
func NewHandler(repo counter) *Handler {
	return &Handler{repo: repo}
}

// Get godoc
//
//	@Summary	Content totals
//	@Tags		stats
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	response.Envelope{data=Counts}
//	@Failure	401	{object}	response.Envelope
//	@Router		/stats [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.repo.Counts(r.Context())
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, c)
}
