// Package upload turns a raw uploaded image into a set of durable, publicly
// addressable objects: an optimised original, a thumbnail and, optionally, a
// WebP set.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/gallery/service/internal/apperr"
	"github.com/gallery/service/internal/imageproc"
	"github.com/gallery/service/internal/storage"
)

// DefaultMaxBytes is the upload size cap used when none is configured.
const DefaultMaxBytes = 10 << 20

// DefaultMaxPixels caps width*height. A small, highly compressed file can
// still expand into gigabytes once decoded.
const DefaultMaxPixels = 50_000_000

// AllowedTypes maps each accepted MIME type to the extension used when the
// original filename carries none.
var AllowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// File is one uploaded file as received from the client.
type File struct {
	Data         []byte
	MimeType     string
	Size         int64
	OriginalName string
}

// Result describes the stored objects of one upload. WebP is nil when the
// WebP set was not produced.
type Result struct {
	FileID       string            `json:"fileId"`
	Filename     string            `json:"filename"`
	OriginalURL  string            `json:"originalUrl"`
	ThumbnailURL string            `json:"thumbnailUrl"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	WebP         map[string]string `json:"webp"`
}

// Processor is the subset of *imageproc.Generator the orchestrator uses.
type Processor interface {
	Metadata(data []byte) imageproc.Metadata
	Optimize(data []byte, mimeType string) ([]byte, error)
	Thumbnail(data []byte) (imageproc.Buffer, error)
	WebP(data []byte) (*imageproc.WebPSet, error)
}

// Options tunes the orchestrator.
type Options struct {
	MaxBytes     int64
	MaxPixels    int64
	GenerateWebP bool
}

// Service orchestrates validation, derivative generation and storage.
type Service struct {
	store  storage.Store
	proc   Processor
	opts   Options
	logger *slog.Logger
	newID  func() string
}

// NewService creates an upload Service.
func NewService(store storage.Store, proc Processor, opts Options, logger *slog.Logger) *Service {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &Service{
		store:  store,
		proc:   proc,
		opts:   opts,
		logger: logger.With("component", "upload"),
		newID:  uuid.NewString,
	}
}

// MaxBytes reports the configured size cap.
func (s *Service) MaxBytes() int64 { return s.opts.MaxBytes }

// Validate checks type and size before any work is done.
func (s *Service) Validate(f File) error {
	if _, ok := AllowedTypes[f.MimeType]; !ok {
		return apperr.Validation(
			fmt.Sprintf("unsupported file type %q: allowed types are JPEG, PNG, WebP and GIF", f.MimeType),
			map[string]string{"file": "unsupported file type"},
		)
	}
	size := f.Size
	if size == 0 {
		size = int64(len(f.Data))
	}
	if size > s.opts.MaxBytes {
		return apperr.Validation(
			fmt.Sprintf("file is %s, larger than the %s limit",
				humanize.IBytes(uint64(size)), humanize.IBytes(uint64(s.opts.MaxBytes))),
			map[string]string{"file": "too large"},
		)
	}
	if len(f.Data) == 0 {
		return apperr.Validation("file is empty", map[string]string{"file": "is required"})
	}
	return nil
}

// UploadFile validates f, produces its derivatives and stores them in order:
// original, thumbnail, then the WebP set. A thumbnail failure aborts the
// upload; a WebP failure only drops the WebP set.
func (s *Service) UploadFile(ctx context.Context, f File) (*Result, error) {
	if err := s.Validate(f); err != nil {
		return nil, err
	}

	id := s.newID()
	ext := Extension(f.OriginalName, f.MimeType)
	md := s.proc.Metadata(f.Data)
	if pixels := int64(md.Width) * int64(md.Height); pixels > s.opts.MaxPixels {
		return nil, apperr.Validation(
			fmt.Sprintf("image is %dx%d, more than the %s pixel limit",
				md.Width, md.Height, humanize.Comma(s.opts.MaxPixels)),
			map[string]string{"file": "too many pixels"},
		)
	}

	original, err := s.proc.Optimize(f.Data, f.MimeType)
	if err != nil {
		s.logger.Warn("optimisation failed, storing original as-is", "file_id", id, "error", err)
		original = f.Data
	}

	thumb, err := s.proc.Thumbnail(f.Data)
	if err != nil {
		return nil, apperr.Validation("image could not be processed: "+err.Error(), map[string]string{"file": "could not be decoded"})
	}

	res := &Result{
		FileID:   id,
		Filename: f.OriginalName,
		Width:    md.Width,
		Height:   md.Height,
	}

	res.OriginalURL, err = s.store.Upload(ctx, storage.OriginalPrefix+id+ext, original, f.MimeType)
	if err != nil {
		return nil, storageErr("upload original", err)
	}
	res.ThumbnailURL, err = s.store.Upload(ctx, storage.ThumbnailPrefix+id+".jpg", thumb.Data, thumb.ContentType)
	if err != nil {
		s.Discard(ctx, id)
		return nil, storageErr("upload thumbnail", err)
	}

	if s.opts.GenerateWebP {
		res.WebP = s.uploadWebP(ctx, id, original)
	}

	s.logger.Info("upload stored",
		"file_id", id, "filename", f.OriginalName, "bytes", len(f.Data),
		"width", md.Width, "height", md.Height, "webp", res.WebP != nil)
	return res, nil
}

// uploadWebP stores the WebP set and returns label→URL, or nil on any failure.
func (s *Service) uploadWebP(ctx context.Context, id string, data []byte) map[string]string {
	set, err := s.proc.WebP(data)
	if err != nil {
		s.logger.Warn("webp generation failed", "file_id", id, "error", err)
		return nil
	}

	urls := make(map[string]string, len(set.Sizes)+1)
	u, err := s.store.Upload(ctx, storage.WebPPrefix+id+".webp", set.Original.Data, set.Original.ContentType)
	if err != nil {
		s.logger.Warn("webp upload failed", "file_id", id, "error", err)
		return nil
	}
	urls["original"] = u

	for _, p := range imageproc.Presets {
		b, ok := set.Sizes[p.Label]
		if !ok {
			continue
		}
		u, err := s.store.Upload(ctx, storage.WebPPrefix+id+"-"+p.Label+".webp", b.Data, b.ContentType)
		if err != nil {
			s.logger.Warn("webp upload failed", "file_id", id, "size", p.Label, "error", err)
			return nil
		}
		urls[p.Label] = u
	}
	return urls
}

// Discard removes every object stored for fileID. Failures are logged only.
func (s *Service) Discard(ctx context.Context, fileID string) bool {
	ok, err := s.store.DeleteByFileID(ctx, fileID)
	if err != nil {
		s.logger.Error("discard objects failed", "file_id", fileID, "error", err)
		return false
	}
	return ok
}

func storageErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotReady):
		return apperr.Storage("object storage is unavailable", fmt.Errorf("%s: %w", op, err))
	case errors.Is(err, storage.ErrRetriesExhausted):
		return apperr.Storage("object storage did not accept the upload after retrying", fmt.Errorf("%s: %w", op, err))
	default:
		return apperr.Storage("object storage rejected the upload", fmt.Errorf("%s: %w", op, err))
	}
}

// Extension derives the public extension from the original filename, falling
// back to the canonical one for mimeType.
func Extension(name, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	}
	if e, ok := AllowedTypes[mimeType]; ok {
		return e
	}
	return ".bin"
}

// isWebP reports whether data is a RIFF container carrying "WEBP" at offset 8.
func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// DetectMIME sniffs data's type from its leading bytes. http.DetectContentType
// covers JPEG, PNG and GIF; WebP is checked separately.
func DetectMIME(data []byte) string {
	if isWebP(data) {
		return "image/webp"
	}
	return http.DetectContentType(data)
}
