// Package imageproc produces the re-encoded derivatives of an uploaded photo:
// an optimised original, a JPEG thumbnail and an optional WebP set.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
	_ "golang.org/x/image/webp"
)

// Preset is a named fit-inside bounding box.
type Preset struct {
	Label  string
	Width  int
	Height int
}

var (
	Small  = Preset{Label: "small", Width: 320, Height: 320}
	Medium = Preset{Label: "medium", Width: 640, Height: 640}
	Large  = Preset{Label: "large", Width: 1280, Height: 1280}

	// Presets are the thumbnail sizes re-encoded into the WebP set.
	Presets = []Preset{Small, Medium, Large}

	// ThumbnailBox bounds the mandatory JPEG thumbnail.
	ThumbnailBox = Medium
)

const (
	OriginalJPEGQuality  = 85
	ThumbnailJPEGQuality = 80
	WebPQuality          = 80
	WebPThumbnailQuality = 75
)

// Metadata holds the decoded pixel dimensions of an image.
type Metadata struct {
	Width  int
	Height int
}

// Buffer is one encoded output.
type Buffer struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// WebPSet holds the WebP re-encode of the original plus one per preset,
// keyed by preset label.
type WebPSet struct {
	Original Buffer
	Sizes    map[string]Buffer
}

// Generator re-encodes images. It holds no state besides its logger and is
// safe for concurrent use.
type Generator struct {
	logger *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(logger *slog.Logger) *Generator {
	return &Generator{logger: logger.With("component", "imageproc")}
}

// Metadata reports the image's dimensions as displayed, or {0, 0} if data
// cannot be decoded. Only the header is read. EXIF orientations 5 to 8 turn
// the image a quarter, so width and height are swapped to match the
// auto-oriented derivatives.
func (g *Generator) Metadata(data []byte) Metadata {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		g.logger.Warn("could not read image metadata", "error", err)
		return Metadata{}
	}
	md := Metadata{Width: cfg.Width, Height: cfg.Height}
	if o := Orientation(data); o >= 5 && o <= 8 {
		md.Width, md.Height = md.Height, md.Width
	}
	return md
}

// Orientation returns the EXIF orientation of a JPEG, 1 when the tag is
// missing or unreadable. Other formats always report 1, which is also all
// imaging.AutoOrientation honours.
func Orientation(data []byte) int {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return 1
	}
	raw, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return 1
	}
	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return 1
	}
	for _, e := range entries {
		if e.TagName != "Orientation" {
			continue
		}
		if v, ok := e.Value.([]uint16); ok && len(v) > 0 && v[0] >= 1 && v[0] <= 8 {
			return int(v[0])
		}
		return 1
	}
	return 1
}

// Optimize re-encodes the original: JPEG at a fixed quality, PNG at maximum
// compression. Other formats, and re-encodes that would not shrink the file,
// are returned unchanged.
func (g *Generator) Optimize(data []byte, mimeType string) ([]byte, error) {
	var opts []imaging.EncodeOption
	var format imaging.Format
	switch mimeType {
	case "image/jpeg":
		format = imaging.JPEG
		opts = append(opts, imaging.JPEGQuality(OriginalJPEGQuality))
	case "image/png":
		format = imaging.PNG
		opts = append(opts, imaging.PNGCompressionLevel(png.BestCompression))
	default:
		return data, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode original: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, fmt.Errorf("encode original: %w", err)
	}
	if buf.Len() >= len(data) {
		return data, nil
	}
	return buf.Bytes(), nil
}

// Thumbnail fits the image inside ThumbnailBox and encodes it as JPEG.
func (g *Generator) Thumbnail(data []byte) (Buffer, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Buffer{}, fmt.Errorf("decode for thumbnail: %w", err)
	}

	thumb := FitInside(img, ThumbnailBox.Width, ThumbnailBox.Height)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(ThumbnailJPEGQuality)); err != nil {
		return Buffer{}, fmt.Errorf("encode thumbnail: %w", err)
	}
	b := thumb.Bounds()
	return Buffer{Data: buf.Bytes(), ContentType: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

// WebP encodes the full image plus one fit-inside re-encode per preset.
func (g *Generator) WebP(data []byte) (*WebPSet, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode for webp: %w", err)
	}

	original, err := encodeWebP(img, WebPQuality)
	if err != nil {
		return nil, fmt.Errorf("encode webp original: %w", err)
	}

	set := &WebPSet{Original: original, Sizes: make(map[string]Buffer, len(Presets))}
	for _, p := range Presets {
		b, err := encodeWebP(FitInside(img, p.Width, p.Height), WebPThumbnailQuality)
		if err != nil {
			return nil, fmt.Errorf("encode webp %s: %w", p.Label, err)
		}
		set.Sizes[p.Label] = b
	}
	return set, nil
}

func encodeWebP(img image.Image, quality float32) (Buffer, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: quality}); err != nil {
		return Buffer{}, err
	}
	b := img.Bounds()
	return Buffer{Data: buf.Bytes(), ContentType: "image/webp", Width: b.Dx(), Height: b.Dy()}, nil
}

// FitInside scales img down to fit within maxW x maxH, preserving aspect
// ratio. Images already inside the box are returned untouched.
func FitInside(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := FitDimensions(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// FitDimensions computes the fit-inside size of srcW x srcH for the box.
// The result never exceeds the source or the box in either dimension, and is
// at least 1x1 for non-empty sources.
func FitDimensions(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}

	// Scale by the tighter of the two ratios using integer math.
	w, h := maxW, srcH*maxW/srcW
	if h > maxH {
		w, h = srcW*maxH/srcH, maxH
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
