package photo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gallery/service/internal/apperr"
	"github.com/gallery/service/internal/ordering"
	"github.com/gallery/service/internal/upload"
)

const entity = "photo"

type repository interface {
	List(ctx context.Context) ([]Photo, error)
	ListByAlbum(ctx context.Context, albumID string) ([]Photo, error)
	ListSlider(ctx context.Context) ([]Photo, error)
	GetByID(ctx context.Context, id string) (*Photo, error)
	AlbumExists(ctx context.Context, id string) (bool, error)
	NextDisplayOrder(ctx context.Context, albumID string) (int, error)
	Create(ctx context.Context, p *Photo) error
	Update(ctx context.Context, id string, p Patch) (*Photo, error)
	Delete(ctx context.Context, id string) (*Photo, error)
	Reorder(ctx context.Context, items []ordering.Item) error
}

type uploader interface {
	UploadFile(ctx context.Context, f upload.File) (*upload.Result, error)
	Discard(ctx context.Context, fileID string) bool
}

type purger interface {
	Purge(ctx context.Context, fileID string) bool
}

// CreateInput registers a photo whose images are already stored.
type CreateInput struct {
	AlbumID       string            `json:"albumId"                 validate:"required"`
	FileID        string            `json:"fileId,omitempty"`
	Filename      string            `json:"filename"                validate:"required,max=255"  example:"IMG_2041.jpg"`
	OriginalURL   string            `json:"originalUrl"             validate:"required,url"`
	ThumbnailURL  string            `json:"thumbnailUrl"            validate:"required,url"`
	WebPURLs      map[string]string `json:"webpUrls,omitempty"      validate:"omitempty,dive,url"`
	DisplayOrder  *int              `json:"displayOrder,omitempty"  validate:"omitempty,gte=0"`
	IsSliderImage bool              `json:"isSliderImage"`
	Width         int               `json:"width"                   validate:"gte=0"`
	Height        int               `json:"height"                  validate:"gte=0"`
}

// UploadInput carries the non-file fields of an upload form.
type UploadInput struct {
	AlbumID       string `json:"albumId"       validate:"required"`
	DisplayOrder  *int   `json:"displayOrder"  validate:"omitempty,gte=0"`
	IsSliderImage bool   `json:"isSliderImage"`
}

// UpdateInput is the validated body of a partial update; nil fields are kept.
type UpdateInput struct {
	AlbumID       *string `json:"albumId,omitempty"       validate:"omitempty,min=1"`
	Filename      *string `json:"filename,omitempty"      validate:"omitempty,min=1,max=255"`
	DisplayOrder  *int    `json:"displayOrder,omitempty"  validate:"omitempty,gte=0"`
	IsSliderImage *bool   `json:"isSliderImage,omitempty"`
}

// Service contains the business logic for photos.
type Service struct {
	repo     repository
	uploader uploader
	purger   purger
	logger   *slog.Logger
}

// NewService creates a new photo Service.
func NewService(repo repository, uploader uploader, purger purger, logger *slog.Logger) *Service {
	return &Service{repo: repo, uploader: uploader, purger: purger, logger: logger.With("component", "photo")}
}

// List returns every photo.
func (s *Service) List(ctx context.Context) ([]Photo, error) {
	return s.repo.List(ctx)
}

// ListByAlbum returns an album's photos ordered by display order.
func (s *Service) ListByAlbum(ctx context.Context, albumID string) ([]Photo, error) {
	if err := s.ensureAlbum(ctx, albumID); err != nil {
		return nil, err
	}
	return s.repo.ListByAlbum(ctx, albumID)
}

// Slider returns photos flagged for the homepage carousel.
func (s *Service) Slider(ctx context.Context) ([]Photo, error) {
	return s.repo.ListSlider(ctx)
}

// Get returns the photo with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Photo, error) {
	p, err := s.repo.GetByID(ctx, id)
	return p, translate(err, id)
}

// Create registers a photo whose objects already exist in storage.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Photo, error) {
	if err := s.ensureAlbum(ctx, in.AlbumID); err != nil {
		return nil, err
	}
	p := &Photo{
		AlbumID:       in.AlbumID,
		FileID:        in.FileID,
		Filename:      in.Filename,
		OriginalURL:   in.OriginalURL,
		ThumbnailURL:  in.ThumbnailURL,
		WebPURLs:      in.WebPURLs,
		IsSliderImage: in.IsSliderImage,
		Width:         in.Width,
		Height:        in.Height,
	}
	if err := s.insert(ctx, p, in.DisplayOrder); err != nil {
		return nil, err
	}
	return p, nil
}

// Upload stores f and its derivatives, then records the photo in the album.
// The album is checked before any processing. If the record cannot be
// written, the stored objects are removed again.
func (s *Service) Upload(ctx context.Context, in UploadInput, f upload.File) (*Photo, error) {
	if err := s.ensureAlbum(ctx, in.AlbumID); err != nil {
		return nil, err
	}

	res, err := s.uploader.UploadFile(ctx, f)
	if err != nil {
		return nil, err
	}

	p := &Photo{
		AlbumID:       in.AlbumID,
		FileID:        res.FileID,
		Filename:      res.Filename,
		OriginalURL:   res.OriginalURL,
		ThumbnailURL:  res.ThumbnailURL,
		WebPURLs:      res.WebP,
		IsSliderImage: in.IsSliderImage,
		Width:         res.Width,
		Height:        res.Height,
	}
	if err := s.insert(ctx, p, in.DisplayOrder); err != nil {
		s.logger.Warn("photo insert failed, discarding stored objects", "file_id", res.FileID, "error", err)
		s.uploader.Discard(context.WithoutCancel(ctx), res.FileID)
		return nil, err
	}
	s.logger.Info("photo uploaded", "id", p.ID, "album_id", p.AlbumID, "file_id", p.FileID)
	return p, nil
}

func (s *Service) insert(ctx context.Context, p *Photo, order *int) error {
	if order != nil {
		p.DisplayOrder = *order
	} else {
		next, err := s.repo.NextDisplayOrder(ctx, p.AlbumID)
		if err != nil {
			return err
		}
		p.DisplayOrder = next
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrAlbumNotFound) {
			return apperr.NotFound("album", p.AlbumID)
		}
		return err
	}
	return nil
}

// Update applies the provided fields.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Photo, error) {
	if in.AlbumID != nil {
		if err := s.ensureAlbum(ctx, *in.AlbumID); err != nil {
			return nil, err
		}
	}
	p, err := s.repo.Update(ctx, id, Patch{
		AlbumID:       in.AlbumID,
		Filename:      in.Filename,
		DisplayOrder:  in.DisplayOrder,
		IsSliderImage: in.IsSliderImage,
	})
	if errors.Is(err, ErrAlbumNotFound) {
		return nil, apperr.NotFound("album", *in.AlbumID)
	}
	return p, translate(err, id)
}

// Delete removes the photo record, then tries to remove its stored objects.
// A storage failure leaves the objects queued for the purge job and does
// not fail the delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.repo.Delete(ctx, id)
	if err != nil {
		return translate(err, id)
	}
	clean := s.purger.Purge(context.WithoutCancel(ctx), p.FileID)
	s.logger.Info("photo deleted", "id", id, "file_id", p.FileID, "storage_clean", clean)
	return nil
}

// Reorder applies a full ordering; unknown ids reject the whole batch.
func (s *Service) Reorder(ctx context.Context, items []ordering.Item) error {
	return s.repo.Reorder(ctx, items)
}

func (s *Service) ensureAlbum(ctx context.Context, id string) error {
	ok, err := s.repo.AlbumExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("album", id)
	}
	return nil
}

func translate(err error, key string) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(entity, key)
	}
	return err
}
