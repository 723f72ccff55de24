package category

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery/service/internal/apperr"
	"github.com/gallery/service/internal/logging"
	"github.com/gallery/service/internal/ordering"
)

// memRepo is an in-memory repository with the same semantics as the SQL one.
type memRepo struct {
	mu     sync.Mutex
	seq    int
	rows   map[string]*Category
	albums map[string]int // category id -> album count
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]*Category{}, albums: map[string]int{}}
}

func (m *memRepo) List(_ context.Context, menuOnly bool) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Category
	for _, c := range m.rows {
		if menuOnly && !c.ShowInMenu {
			continue
		}
		cp := *c
		cp.AlbumCount = m.albums[c.ID]
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) GetBySlug(_ context.Context, slug string) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) SlugTaken(_ context.Context, slug, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.rows {
		if c.Slug == slug && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) NextDisplayOrder(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) == 0 {
		return 0, nil
	}
	hi := -1
	for _, c := range m.rows {
		if c.DisplayOrder > hi {
			hi = c.DisplayOrder
		}
	}
	return hi + 1, nil
}

func (m *memRepo) Create(_ context.Context, c *Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Slug == c.Slug {
			return ErrSlugTaken
		}
	}
	m.seq++
	c.ID = fmt.Sprintf("cat-%d", m.seq)
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memRepo) Update(_ context.Context, id string, p Patch) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Slug != nil {
		c.Slug = *p.Slug
	}
	if p.DisplayOrder != nil {
		c.DisplayOrder = *p.DisplayOrder
	}
	if p.ShowInMenu != nil {
		c.ShowInMenu = *p.ShowInMenu
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) Delete(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return 0, ErrNotFound
	}
	if n := m.albums[id]; n > 0 {
		return n, ErrHasAlbums
	}
	delete(m.rows, id)
	return 0, nil
}

func (m *memRepo) Reorder(_ context.Context, items []ordering.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var have []string
	for id := range m.rows {
		have = append(have, id)
	}
	if missing := ordering.Missing(ordering.IDs(items), have); len(missing) > 0 {
		return apperr.NotFoundMany(entity, missing)
	}
	for _, it := range items {
		m.rows[it.ID].DisplayOrder = it.DisplayOrder
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func newService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, logging.Discard()), repo
}

func TestCreateDerivesSlugAndOrder(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{Name: "Nature"})
	require.NoError(t, err)
	assert.Equal(t, "nature", first.Slug)
	assert.Equal(t, 0, first.DisplayOrder)
	assert.True(t, first.ShowInMenu)

	second, err := svc.Create(ctx, CreateInput{Name: "Street Life", DisplayOrder: ptr(7)})
	require.NoError(t, err)
	assert.Equal(t, "street-life", second.Slug)
	assert.Equal(t, 7, second.DisplayOrder)

	third, err := svc.Create(ctx, CreateInput{Name: "Portraits", ShowInMenu: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, 8, third.DisplayOrder)
	assert.False(t, third.ShowInMenu)
}

func TestCreateUsesGivenSlugVerbatim(t *testing.T) {
	svc, _ := newService()

	c, err := svc.Create(context.Background(), CreateInput{Name: "Nature", Slug: ptr("outdoors")})
	require.NoError(t, err)
	assert.Equal(t, "outdoors", c.Slug)
}

func TestCreateDuplicateSlug(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "Nature"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Name: "Nature"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDuplicate))
	assert.Contains(t, err.Error(), `"nature"`)
}

func TestUpdateSlugSelfExclusion(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{Name: "Nature"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "Cities"})
	require.NoError(t, err)

	// Re-submitting its own slug is fine.
	got, err := svc.Update(ctx, a.ID, UpdateInput{Slug: ptr("nature")})
	require.NoError(t, err)
	assert.Equal(t, "nature", got.Slug)

	_, err = svc.Update(ctx, a.ID, UpdateInput{Slug: ptr("cities")})
	assert.True(t, apperr.Is(err, apperr.KindDuplicate))
}

func TestUpdateNameKeepsSlug(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateInput{Name: "Nature"})
	require.NoError(t, err)

	got, err := svc.Update(ctx, c.ID, UpdateInput{Name: ptr("Wild Nature")})
	require.NoError(t, err)
	assert.Equal(t, "Wild Nature", got.Name)
	assert.Equal(t, "nature", got.Slug)
	assert.Equal(t, c.DisplayOrder, got.DisplayOrder)
}

func TestUpdateMissing(t *testing.T) {
	svc, _ := newService()

	_, err := svc.Update(context.Background(), "nope", UpdateInput{Name: ptr("x")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteBlockedByAlbums(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateInput{Name: "Nature"})
	require.NoError(t, err)
	repo.albums[c.ID] = 3

	err = svc.Delete(ctx, c.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConstraint))
	assert.Contains(t, err.Error(), "3 album(s)")

	repo.albums[c.ID] = 0
	require.NoError(t, svc.Delete(ctx, c.ID))

	_, err = svc.Get(ctx, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReorderRejectsUnknownIDs(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{Name: "A"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, CreateInput{Name: "B"})
	require.NoError(t, err)

	err = svc.Reorder(ctx, []ordering.Item{{ID: a.ID, DisplayOrder: 5}, {ID: "ghost", DisplayOrder: 0}})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.DisplayOrder, "no row may change when the batch is rejected")

	require.NoError(t, svc.Reorder(ctx, []ordering.Item{{ID: a.ID, DisplayOrder: 1}, {ID: b.ID, DisplayOrder: 0}}))
	list, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, []string{list[0].ID, list[1].ID})
}

func TestListMenuOnly(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "Shown"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "Hidden", ShowInMenu: ptr(false)})
	require.NoError(t, err)

	menu, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, menu, 1)
	assert.Equal(t, "shown", menu[0].Slug)
}

func TestGetBySlug(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "Black & White"})
	require.NoError(t, err)

	c, err := svc.GetBySlug(ctx, "black-and-white")
	require.NoError(t, err)
	assert.Equal(t, "Black & White", c.Name)

	_, err = svc.GetBySlug(ctx, "colour")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
