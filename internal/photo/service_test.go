package photo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery/service/internal/apperr"
	"github.com/gallery/service/internal/imageproc"
	"github.com/gallery/service/internal/logging"
	"github.com/gallery/service/internal/ordering"
	"github.com/gallery/service/internal/purge"
	"github.com/gallery/service/internal/upload"
)

type memRepo struct {
	mu        sync.Mutex
	seq       int
	rows      map[string]*Photo
	albums    map[string]bool
	hidden    map[string]bool
	failWrite error
}

func newMemRepo(albums ...string) *memRepo {
	m := &memRepo{rows: map[string]*Photo{}, albums: map[string]bool{}, hidden: map[string]bool{}}
	for _, a := range albums {
		m.albums[a] = true
	}
	return m
}

func (m *memRepo) sorted(keep func(*Photo) bool) []Photo {
	var out []Photo
	for _, p := range m.rows {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out
}

func (m *memRepo) List(context.Context) ([]Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(*Photo) bool { return true }), nil
}

func (m *memRepo) ListByAlbum(_ context.Context, albumID string) ([]Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(p *Photo) bool { return p.AlbumID == albumID }), nil
}

func (m *memRepo) ListSlider(context.Context) ([]Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(p *Photo) bool { return p.IsSliderImage && !m.hidden[p.AlbumID] }), nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) AlbumExists(_ context.Context, id string) (bool, error) {
	return m.albums[id], nil
}

func (m *memRepo) NextDisplayOrder(_ context.Context, albumID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := 0
	for _, p := range m.rows {
		if p.AlbumID == albumID && p.DisplayOrder+1 > next {
			next = p.DisplayOrder + 1
		}
	}
	return next, nil
}

func (m *memRepo) Create(_ context.Context, p *Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	m.seq++
	p.ID = fmt.Sprintf("ph-%d", m.seq)
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memRepo) Update(_ context.Context, id string, patch Patch) (*Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.AlbumID != nil {
		p.AlbumID = *patch.AlbumID
	}
	if patch.Filename != nil {
		p.Filename = *patch.Filename
	}
	if patch.DisplayOrder != nil {
		p.DisplayOrder = *patch.DisplayOrder
	}
	if patch.IsSliderImage != nil {
		p.IsSliderImage = *patch.IsSliderImage
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) Delete(_ context.Context, id string) (*Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.rows, id)
	return p, nil
}

func (m *memRepo) Reorder(_ context.Context, items []ordering.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	have := make([]string, 0, len(m.rows))
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

// memStore records uploads and deletes; deletes fail while down is set.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
	down    bool
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	s.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (s *memStore) DeleteByFileID(_ context.Context, fileID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return false, errors.New("connection refused")
	}
	for k := range s.objects {
		if strings.Contains(k, fileID) {
			delete(s.objects, k)
		}
	}
	return true, nil
}

func (s *memStore) PublicURL(key string) string { return "https://cdn.test/" + key }

type stubProcessor struct{}

func (stubProcessor) Metadata([]byte) imageproc.Metadata { return imageproc.Metadata{Width: 2000, Height: 1000} }
func (stubProcessor) Optimize(data []byte, _ string) ([]byte, error) {
	return data, nil
}
func (stubProcessor) Thumbnail([]byte) (imageproc.Buffer, error) {
	return imageproc.Buffer{Data: []byte("thumb"), ContentType: "image/jpeg", Width: 640, Height: 320}, nil
}
func (stubProcessor) WebP([]byte) (*imageproc.WebPSet, error) {
	return nil, errors.New("webp disabled in tests")
}

// memQueue stands in for the storage_purges table.
type memQueue struct {
	mu       sync.Mutex
	attempts map[string]int
}

func (q *memQueue) Pending(context.Context, int, int) ([]purge.Entry, error) { return nil, nil }

func (q *memQueue) Done(_ context.Context, fileID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.attempts, fileID)
	return nil
}

func (q *memQueue) Failed(_ context.Context, fileID, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.attempts[fileID]++
	return nil
}

type fixture struct {
	svc   *Service
	repo  *memRepo
	store *memStore
	queue *memQueue
}

func newFixture(albums ...string) fixture {
	log := logging.Discard()
	repo := newMemRepo(albums...)
	store := newMemStore()
	queue := &memQueue{attempts: map[string]int{}}
	up := upload.NewService(store, stubProcessor{}, upload.Options{}, log)
	pg := purge.NewPurger(queue, store, 5, log)
	return fixture{svc: NewService(repo, up, pg, log), repo: repo, store: store, queue: queue}
}

func jpegFile(name string) upload.File {
	data := []byte("\xff\xd8\xff\xe0 fake jpeg payload")
	return upload.File{Data: data, MimeType: "image/jpeg", Size: int64(len(data)), OriginalName: name}
}

func ptr[T any](v T) *T { return &v }

func TestUploadAppendsToAlbum(t *testing.T) {
	f := newFixture("alps")
	ctx := context.Background()

	p1, err := f.svc.Upload(ctx, UploadInput{AlbumID: "alps"}, jpegFile("a.jpg"))
	require.NoError(t, err)
	p2, err := f.svc.Upload(ctx, UploadInput{AlbumID: "alps", IsSliderImage: true}, jpegFile("b.jpg"))
	require.NoError(t, err)

	assert.Equal(t, 0, p1.DisplayOrder)
	assert.Equal(t, 1, p2.DisplayOrder)
	assert.Equal(t, "a.jpg", p1.Filename)
	assert.Equal(t, 2000, p1.Width)
	assert.Equal(t, 1000, p1.Height)
	assert.Contains(t, p1.OriginalURL, "photos/original/"+p1.FileID+".jpg")
	assert.Contains(t, p1.ThumbnailURL, "photos/thumbnails/"+p1.FileID+".jpg")
	assert.Nil(t, p1.WebPURLs)
	assert.True(t, p2.IsSliderImage)

	list, err := f.svc.ListByAlbum(ctx, "alps")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, p1.ID, list[0].ID)
}

func TestUploadExplicitDisplayOrder(t *testing.T) {
	f := newFixture("alps")

	p, err := f.svc.Upload(context.Background(), UploadInput{AlbumID: "alps", DisplayOrder: ptr(7)}, jpegFile("a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 7, p.DisplayOrder)
}

func TestUploadUnknownAlbumTouchesNoStorage(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Upload(context.Background(), UploadInput{AlbumID: "ghost"}, jpegFile("a.jpg"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Zero(t, f.store.uploads)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	f := newFixture("alps")

	file := upload.File{Data: []byte("%PDF-1.7"), MimeType: "application/pdf", Size: 8, OriginalName: "doc.pdf"}
	_, err := f.svc.Upload(context.Background(), UploadInput{AlbumID: "alps"}, file)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, f.store.uploads)
}

func TestUploadInsertFailureDiscardsObjects(t *testing.T) {
	f := newFixture("alps")
	f.repo.failWrite = errors.New("db gone")

	_, err := f.svc.Upload(context.Background(), UploadInput{AlbumID: "alps"}, jpegFile("a.jpg"))
	require.Error(t, err)
	assert.Equal(t, 2, f.store.uploads)
	assert.Empty(t, f.store.objects, "stored objects are removed when the record cannot be written")
}

func TestCreateRegistersStoredPhoto(t *testing.T) {
	f := newFixture("alps")

	p, err := f.svc.Create(context.Background(), CreateInput{
		AlbumID:      "alps",
		Filename:     "x.jpg",
		OriginalURL:  "https://cdn.test/photos/original/x.jpg",
		ThumbnailURL: "https://cdn.test/photos/thumbnails/x.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, p.DisplayOrder)

	_, err = f.svc.Create(context.Background(), CreateInput{AlbumID: "ghost", Filename: "x.jpg"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteRemovesObjects(t *testing.T) {
	f := newFixture("alps")
	ctx := context.Background()

	p, err := f.svc.Upload(ctx, UploadInput{AlbumID: "alps"}, jpegFile("a.jpg"))
	require.NoError(t, err)
	require.NotEmpty(t, f.store.objects)

	require.NoError(t, f.svc.Delete(ctx, p.ID))
	assert.Empty(t, f.store.objects)
	assert.Empty(t, f.queue.attempts)

	_, err = f.svc.Get(ctx, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteSucceedsWhenStorageIsDown(t *testing.T) {
	f := newFixture("alps")
	ctx := context.Background()

	p, err := f.svc.Upload(ctx, UploadInput{AlbumID: "alps"}, jpegFile("a.jpg"))
	require.NoError(t, err)
	f.store.down = true

	require.NoError(t, f.svc.Delete(ctx, p.ID))
	assert.Equal(t, 1, f.queue.attempts[p.FileID], "the failed purge stays queued for retry")

	_, err = f.svc.Get(ctx, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteMissing(t *testing.T) {
	f := newFixture()
	assert.True(t, apperr.Is(f.svc.Delete(context.Background(), "nope"), apperr.KindNotFound))
}

func TestUpdateMovesBetweenAlbums(t *testing.T) {
	f := newFixture("alps", "fjords")
	ctx := context.Background()

	p, err := f.svc.Upload(ctx, UploadInput{AlbumID: "alps"}, jpegFile("a.jpg"))
	require.NoError(t, err)

	got, err := f.svc.Update(ctx, p.ID, UpdateInput{AlbumID: ptr("fjords"), IsSliderImage: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, "fjords", got.AlbumID)
	assert.True(t, got.IsSliderImage)

	_, err = f.svc.Update(ctx, p.ID, UpdateInput{AlbumID: ptr("ghost")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Contains(t, err.Error(), "album")
}

func TestSliderSkipsHiddenAlbums(t *testing.T) {
	f := newFixture("alps", "drafts")
	ctx := context.Background()
	f.repo.hidden["drafts"] = true

	_, err := f.svc.Upload(ctx, UploadInput{AlbumID: "alps", IsSliderImage: true}, jpegFile("a.jpg"))
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, UploadInput{AlbumID: "drafts", IsSliderImage: true}, jpegFile("b.jpg"))
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, UploadInput{AlbumID: "alps"}, jpegFile("c.jpg"))
	require.NoError(t, err)

	slider, err := f.svc.Slider(ctx)
	require.NoError(t, err)
	require.Len(t, slider, 1)
	assert.Equal(t, "a.jpg", slider[0].Filename)
}

func TestListByMissingAlbum(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ListByAlbum(context.Background(), "ghost")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReorderRejectsUnknownIDs(t *testing.T) {
	f := newFixture("alps")
	ctx := context.Background()

	p, err := f.svc.Upload(ctx, UploadInput{AlbumID: "alps"}, jpegFile("a.jpg"))
	require.NoError(t, err)

	err = f.svc.Reorder(ctx, []ordering.Item{{ID: p.ID, DisplayOrder: 4}, {ID: "ghost", DisplayOrder: 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.DisplayOrder)

	require.NoError(t, f.svc.Reorder(ctx, []ordering.Item{{ID: p.ID, DisplayOrder: 4}}))
	got, err = f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.DisplayOrder)
}
