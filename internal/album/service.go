package album

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/gallery/service/internal/apperr"
	"github.com/gallery/service/internal/ordering"
	"github.com/gallery/service/internal/slug"
)

const entity = "album"

type repository interface {
	List(ctx context.Context, f Filter) ([]Album, error)
	GetByID(ctx context.Context, id string) (*Album, error)
	GetBySlug(ctx context.Context, slug string) (*Album, error)
	SlugTaken(ctx context.Context, slug, excludeID string) (bool, error)
	CategoryExists(ctx context.Context, id string) (bool, error)
	NextDisplayOrder(ctx context.Context, categoryID string) (int, error)
	Create(ctx context.Context, a *Album) error
	Update(ctx context.Context, id string, p Patch) (*Album, error)
	SetCover(ctx context.Context, id string, url *string) (*Album, error)
	Delete(ctx context.Context, id string) ([]string, error)
	Reorder(ctx context.Context, items []ordering.Item) error
}

type purger interface {
	PurgeAll(ctx context.Context, fileIDs ...string) int
}

// CreateInput is the validated body of a create request.
type CreateInput struct {
	Name          string  `json:"name"                    validate:"required,max=200"       example:"Alps 2024"`
	Slug          *string `json:"slug,omitempty"          validate:"omitempty,slug,max=200" example:"alps-2024"`
	Description   *string `json:"description,omitempty"   validate:"omitempty,max=5000"`
	CategoryID    string  `json:"categoryId"              validate:"required"`
	DisplayOrder  *int    `json:"displayOrder,omitempty"  validate:"omitempty,gte=0"`
	CoverImageURL *string `json:"coverImageUrl,omitempty" validate:"omitempty,url"`
	IsHidden      bool    `json:"isHidden"`
}

// UpdateInput is the validated body of a partial update; nil fields are kept.
// An empty description clears it. Covers are cleared through SetCover.
type UpdateInput struct {
	Name          *string `json:"name,omitempty"          validate:"omitempty,min=1,max=200"`
	Slug          *string `json:"slug,omitempty"          validate:"omitempty,slug,max=200"`
	Description   *string `json:"description,omitempty"   validate:"omitempty,max=5000"`
	CategoryID    *string `json:"categoryId,omitempty"    validate:"omitempty,min=1"`
	DisplayOrder  *int    `json:"displayOrder,omitempty"  validate:"omitempty,gte=0"`
	CoverImageURL *string `json:"coverImageUrl,omitempty" validate:"omitempty,url"`
	IsHidden      *bool   `json:"isHidden,omitempty"`
}

// CoverInput sets or, when null, clears an album's cover image.
type CoverInput struct {
	CoverImageURL *string `json:"coverImageUrl" validate:"omitempty,url"`
}

// Service contains the business logic for albums.
type Service struct {
	repo   repository
	purger purger
	policy *bluemonday.Policy
	logger *slog.Logger
}

// NewService creates a new album Service.
func NewService(repo repository, purger purger, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		purger: purger,
		policy: bluemonday.UGCPolicy(),
		logger: logger.With("component", "album"),
	}
}

// List returns albums matching f. Hidden albums are excluded unless asked for.
func (s *Service) List(ctx context.Context, f Filter) ([]Album, error) {
	return s.repo.List(ctx, f)
}

// Get returns the album with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Album, error) {
	a, err := s.repo.GetByID(ctx, id)
	return a, translate(err, id)
}

// GetBySlug returns the album with the given slug.
func (s *Service) GetBySlug(ctx context.Context, sl string) (*Album, error) {
	a, err := s.repo.GetBySlug(ctx, sl)
	return a, translate(err, sl)
}

// Create inserts an album into an existing category, deriving slug and
// display order when omitted.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Album, error) {
	sl, err := slug.Resolve(in.Slug, in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(ctx, sl, ""); err != nil {
		return nil, err
	}
	if err := s.ensureCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	a := &Album{
		Name:          in.Name,
		Slug:          sl,
		Description:   s.sanitize(in.Description),
		CategoryID:    in.CategoryID,
		CoverImageURL: in.CoverImageURL,
		IsHidden:      in.IsHidden,
	}
	if in.DisplayOrder != nil {
		a.DisplayOrder = *in.DisplayOrder
	} else if a.DisplayOrder, err = s.repo.NextDisplayOrder(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, s.translateWrite(err, sl, in.CategoryID)
	}
	s.logger.Info("album created", "id", a.ID, "slug", a.Slug, "category_id", a.CategoryID)
	return a, nil
}

// Update applies the provided fields.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Album, error) {
	if in.Slug != nil {
		if err := s.ensureSlugFree(ctx, *in.Slug, id); err != nil {
			return nil, err
		}
	}
	if in.CategoryID != nil {
		if err := s.ensureCategory(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
	}

	var desc *string
	if in.Description != nil {
		clean := ""
		if d := s.sanitize(in.Description); d != nil {
			clean = *d
		}
		desc = &clean
	}

	a, err := s.repo.Update(ctx, id, Patch{
		Name:          in.Name,
		Slug:          in.Slug,
		Description:   desc,
		CategoryID:    in.CategoryID,
		DisplayOrder:  in.DisplayOrder,
		CoverImageURL: in.CoverImageURL,
		IsHidden:      in.IsHidden,
	})
	if err != nil {
		sl, cat := id, ""
		if in.Slug != nil {
			sl = *in.Slug
		}
		if in.CategoryID != nil {
			cat = *in.CategoryID
		}
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound(entity, id)
		}
		return nil, s.translateWrite(err, sl, cat)
	}
	return a, nil
}

// SetCover sets or clears the cover image.
func (s *Service) SetCover(ctx context.Context, id string, url *string) (*Album, error) {
	if url != nil && *url == "" {
		url = nil
	}
	a, err := s.repo.SetCover(ctx, id, url)
	return a, translate(err, id)
}

// Delete removes the album with its photos and purges their stored objects.
// Objects that cannot be removed now stay queued for the purge job.
func (s *Service) Delete(ctx context.Context, id string) error {
	fileIDs, err := s.repo.Delete(ctx, id)
	if err != nil {
		return translate(err, id)
	}
	purged := 0
	if len(fileIDs) > 0 {
		purged = s.purger.PurgeAll(context.WithoutCancel(ctx), fileIDs...)
	}
	s.logger.Info("album deleted", "id", id, "photos", len(fileIDs), "purged", purged)
	return nil
}

// Reorder applies a full ordering; unknown ids reject the whole batch.
func (s *Service) Reorder(ctx context.Context, items []ordering.Item) error {
	return s.repo.Reorder(ctx, items)
}

// sanitize strips unsafe markup; whitespace-only input becomes nil.
func (s *Service) sanitize(d *string) *string {
	if d == nil {
		return nil
	}
	clean := strings.TrimSpace(s.policy.Sanitize(*d))
	if clean == "" {
		return nil
	}
	return &clean
}

func (s *Service) ensureSlugFree(ctx context.Context, sl, excludeID string) error {
	taken, err := s.repo.SlugTaken(ctx, sl, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Duplicate(entity, sl)
	}
	return nil
}

func (s *Service) ensureCategory(ctx context.Context, id string) error {
	ok, err := s.repo.CategoryExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("category", id)
	}
	return nil
}

func (s *Service) translateWrite(err error, sl, categoryID string) error {
	switch {
	case errors.Is(err, ErrSlugTaken):
		return apperr.Duplicate(entity, sl)
	case errors.Is(err, ErrCategoryNotFound):
		return apperr.NotFound("category", categoryID)
	default:
		return err
	}
}

func translate(err error, key string) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(entity, key)
	}
	return err
}
