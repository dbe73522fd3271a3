package chromedp

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestThumbnailDownscales(t *testing.T) {
	t.Parallel()

	src := encodeTestPNG(t, 1920, 1080)
	out, err := Thumbnail(src, 320)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 320, decoded.Bounds().Dx())
	require.Equal(t, 180, decoded.Bounds().Dy())
}

func TestThumbnailKeepsSmallImages(t *testing.T) {
	t.Parallel()

	src := encodeTestPNG(t, 200, 100)
	out, err := Thumbnail(src, 320)
	require.NoError(t, err)
	require.Equal(t, src, out)
}

func TestThumbnailRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Thumbnail([]byte("not a png"), 320)
	require.Error(t, err)

	_, err = Thumbnail(encodeTestPNG(t, 10, 10), 0)
	require.Error(t, err)
}
