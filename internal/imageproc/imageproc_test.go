package imageproc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery/service/internal/logging"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, w, h, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&buf, gradient(w, h)))
	return buf.Bytes()
}

func decodedSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestFitDimensions(t *testing.T) {
	tests := []struct {
		name         string
		srcW, srcH   int
		boxW, boxH   int
		wantW, wantH int
	}{
		{"landscape", 2000, 1000, 640, 640, 640, 320},
		{"portrait", 1000, 3000, 640, 640, 213, 640},
		{"square", 900, 900, 320, 320, 320, 320},
		{"smaller than box is untouched", 100, 50, 640, 640, 100, 50},
		{"one side exceeds", 700, 100, 640, 640, 640, 91},
		{"extreme ratio keeps a pixel", 10000, 1, 320, 320, 320, 1},
		{"empty source", 0, 0, 640, 640, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FitDimensions(tt.srcW, tt.srcH, tt.boxW, tt.boxH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.LessOrEqual(t, w, tt.boxW)
			assert.LessOrEqual(t, h, tt.boxH)
			assert.LessOrEqual(t, w, tt.srcW)
			assert.LessOrEqual(t, h, tt.srcH)
		})
	}
}

func TestMetadata(t *testing.T) {
	g := NewGenerator(logging.Discard())

	md := g.Metadata(encodeJPEG(t, 2000, 1000, 90))
	assert.Equal(t, Metadata{Width: 2000, Height: 1000}, md)

	assert.Equal(t, Metadata{}, g.Metadata([]byte("definitely not an image")))
	assert.Equal(t, Metadata{}, g.Metadata(nil))
}

// withOrientation inserts an APP1 segment carrying a big-endian EXIF IFD0
// with a single Orientation entry right after the JPEG SOI marker.
func withOrientation(t *testing.T, jpg []byte, orientation uint16) []byte {
	t.Helper()
	require.True(t, len(jpg) > 2 && jpg[0] == 0xFF && jpg[1] == 0xD8)

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0x002A))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(8))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(1))      // entry count
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0x0112)) // Orientation
	_ = binary.Write(&tiff, binary.BigEndian, uint16(3))      // SHORT
	_ = binary.Write(&tiff, binary.BigEndian, uint32(1))
	_ = binary.Write(&tiff, binary.BigEndian, orientation)
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(0)) // no next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var out bytes.Buffer
	out.Write(jpg[:2])
	out.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpg[2:])
	return out.Bytes()
}

func TestOrientation(t *testing.T) {
	plain := encodeJPEG(t, 40, 20, 90)

	assert.Equal(t, 1, Orientation(plain))
	assert.Equal(t, 6, Orientation(withOrientation(t, plain, 6)))
	assert.Equal(t, 3, Orientation(withOrientation(t, plain, 3)))
	assert.Equal(t, 1, Orientation(encodePNG(t, 40, 20)))
	assert.Equal(t, 1, Orientation(nil))
}

func TestMetadataFollowsOrientation(t *testing.T) {
	g := NewGenerator(logging.Discard())
	src := encodeJPEG(t, 800, 400, 100)

	tests := []struct {
		orientation  uint16
		wantW, wantH int
	}{
		{1, 800, 400},
		{3, 800, 400},
		{5, 400, 800},
		{6, 400, 800},
		{8, 400, 800},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("orientation %d", tt.orientation), func(t *testing.T) {
			data := withOrientation(t, src, tt.orientation)
			md := g.Metadata(data)
			assert.Equal(t, Metadata{Width: tt.wantW, Height: tt.wantH}, md)

			// The recorded size has the same shape as what gets stored.
			thumb, err := g.Thumbnail(data)
			require.NoError(t, err)
			assert.Equal(t, md.Width > md.Height, thumb.Width > thumb.Height)

			out, err := g.Optimize(data, "image/jpeg")
			require.NoError(t, err)
			w, h := decodedSize(t, out)
			assert.Equal(t, md, Metadata{Width: w, Height: h})
		})
	}
}

func TestThumbnailNeverExceedsBoxOrSource(t *testing.T) {
	g := NewGenerator(logging.Discard())

	sizes := [][2]int{{2000, 1000}, {1000, 2000}, {640, 640}, {300, 200}, {641, 10}}
	for _, s := range sizes {
		thumb, err := g.Thumbnail(encodeJPEG(t, s[0], s[1], 90))
		require.NoError(t, err)

		w, h := decodedSize(t, thumb.Data)
		assert.Equal(t, thumb.Width, w)
		assert.Equal(t, thumb.Height, h)
		assert.LessOrEqual(t, w, ThumbnailBox.Width)
		assert.LessOrEqual(t, h, ThumbnailBox.Height)
		assert.LessOrEqual(t, w, s[0])
		assert.LessOrEqual(t, h, s[1])
		assert.Equal(t, "image/jpeg", thumb.ContentType)
	}
}

func TestThumbnailPreservesAspect(t *testing.T) {
	g := NewGenerator(logging.Discard())

	thumb, err := g.Thumbnail(encodeJPEG(t, 2000, 1000, 90))
	require.NoError(t, err)
	assert.Equal(t, 640, thumb.Width)
	assert.Equal(t, 320, thumb.Height)
}

func TestThumbnailFailsOnUndecodableInput(t *testing.T) {
	g := NewGenerator(logging.Discard())

	_, err := g.Thumbnail([]byte("garbage"))
	assert.Error(t, err)
}

func TestOptimize(t *testing.T) {
	g := NewGenerator(logging.Discard())

	t.Run("jpeg is never larger than its source", func(t *testing.T) {
		src := encodeJPEG(t, 800, 600, 100)
		out, err := g.Optimize(src, "image/jpeg")
		require.NoError(t, err)
		assert.LessOrEqual(t, len(out), len(src))
		w, h := decodedSize(t, out)
		assert.Equal(t, 800, w)
		assert.Equal(t, 600, h)
	})

	t.Run("uncompressed png shrinks", func(t *testing.T) {
		src := encodePNG(t, 400, 300)
		out, err := g.Optimize(src, "image/png")
		require.NoError(t, err)
		assert.Less(t, len(out), len(src))
	})

	t.Run("other formats pass through", func(t *testing.T) {
		src := []byte("GIF89a-not-really")
		out, err := g.Optimize(src, "image/gif")
		require.NoError(t, err)
		assert.Equal(t, src, out)
	})

	t.Run("undecodable jpeg errors", func(t *testing.T) {
		_, err := g.Optimize([]byte("nope"), "image/jpeg")
		assert.Error(t, err)
	})
}

func TestWebPSet(t *testing.T) {
	g := NewGenerator(logging.Discard())

	set, err := g.WebP(encodeJPEG(t, 1600, 800, 90))
	require.NoError(t, err)

	assert.Equal(t, 1600, set.Original.Width)
	assert.Equal(t, 800, set.Original.Height)
	require.Len(t, set.Sizes, len(Presets))

	for _, p := range Presets {
		b, ok := set.Sizes[p.Label]
		require.True(t, ok, p.Label)
		assert.Equal(t, "image/webp", b.ContentType)
		assert.LessOrEqual(t, b.Width, p.Width)
		assert.LessOrEqual(t, b.Height, p.Height)
		assert.LessOrEqual(t, b.Width, 1600)

		// Decodable through the registered WebP decoder.
		w, h := decodedSize(t, b.Data)
		assert.Equal(t, b.Width, w)
		assert.Equal(t, b.Height, h)
	}
	assert.Equal(t, 1280, set.Sizes["large"].Width)
	assert.Equal(t, 640, set.Sizes["large"].Height)
}
