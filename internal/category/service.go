package category

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gallery/service/internal/apperr"
	"github.com/gallery/service/internal/ordering"
	"github.com/gallery/service/internal/slug"
)

const entity = "category"

type repository interface {
	List(ctx context.Context, menuOnly bool) ([]Category, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	GetBySlug(ctx context.Context, slug string) (*Category, error)
	SlugTaken(ctx context.Context, slug, excludeID string) (bool, error)
	NextDisplayOrder(ctx context.Context) (int, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, id string, p Patch) (*Category, error)
	Delete(ctx context.Context, id string) (int, error)
	Reorder(ctx context.Context, items []ordering.Item) error
}

// CreateInput is the validated body of a create request.
type CreateInput struct {
	Name         string  `json:"name"                   validate:"required,max=200"       example:"Nature"`
	Slug         *string `json:"slug,omitempty"         validate:"omitempty,slug,max=200" example:"nature"`
	DisplayOrder *int    `json:"displayOrder,omitempty" validate:"omitempty,gte=0"        example:"0"`
	ShowInMenu   *bool   `json:"showInMenu,omitempty"                                     example:"true"`
}

// UpdateInput is the validated body of a partial update; nil fields are kept.
type UpdateInput struct {
	Name         *string `json:"name,omitempty"         validate:"omitempty,min=1,max=200"`
	Slug         *string `json:"slug,omitempty"         validate:"omitempty,slug,max=200"`
	DisplayOrder *int    `json:"displayOrder,omitempty" validate:"omitempty,gte=0"`
	ShowInMenu   *bool   `json:"showInMenu,omitempty"`
}

// Service contains the business logic for categories.
type Service struct {
	repo   repository
	logger *slog.Logger
}

// NewService creates a new category Service.
func NewService(repo repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With("component", "category")}
}

// List returns all categories, or only menu categories when menuOnly is set.
func (s *Service) List(ctx context.Context, menuOnly bool) ([]Category, error) {
	return s.repo.List(ctx, menuOnly)
}

// Get returns the category with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Category, error) {
	c, err := s.repo.GetByID(ctx, id)
	return c, s.translate(err, id)
}

// GetBySlug returns the category with the given slug.
func (s *Service) GetBySlug(ctx context.Context, sl string) (*Category, error) {
	c, err := s.repo.GetBySlug(ctx, sl)
	return c, s.translate(err, sl)
}

// Create inserts a category, deriving slug and display order when omitted.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Category, error) {
	sl, err := slug.Resolve(in.Slug, in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(ctx, sl, ""); err != nil {
		return nil, err
	}

	c := &Category{Name: in.Name, Slug: sl, ShowInMenu: true}
	if in.ShowInMenu != nil {
		c.ShowInMenu = *in.ShowInMenu
	}
	if in.DisplayOrder != nil {
		c.DisplayOrder = *in.DisplayOrder
	} else if c.DisplayOrder, err = s.repo.NextDisplayOrder(ctx); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, s.translate(err, sl)
	}
	s.logger.Info("category created", "id", c.ID, "slug", c.Slug)
	return c, nil
}

// Update applies the provided fields. A new name never regenerates the slug.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Category, error) {
	if in.Slug != nil {
		if err := s.ensureSlugFree(ctx, *in.Slug, id); err != nil {
			return nil, err
		}
	}
	c, err := s.repo.Update(ctx, id, Patch{
		Name:         in.Name,
		Slug:         in.Slug,
		DisplayOrder: in.DisplayOrder,
		ShowInMenu:   in.ShowInMenu,
	})
	if err != nil {
		key := id
		if errors.Is(err, ErrSlugTaken) {
			key = *in.Slug
		}
		return nil, s.translate(err, key)
	}
	return c, nil
}

// Delete removes a category that owns no albums.
func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrHasAlbums) {
		return apperr.Constraint("cannot delete category %q: it still has %d album(s)", id, n)
	}
	if err != nil {
		return s.translate(err, id)
	}
	s.logger.Info("category deleted", "id", id)
	return nil
}

// Reorder applies a full ordering; unknown ids reject the whole batch.
func (s *Service) Reorder(ctx context.Context, items []ordering.Item) error {
	return s.repo.Reorder(ctx, items)
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

func (s *Service) translate(err error, key string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(entity, key)
	case errors.Is(err, ErrSlugTaken):
		return apperr.Duplicate(entity, key)
	default:
		return err
	}
}
