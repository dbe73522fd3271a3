package chromedp

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// thumbnailWidth is the fixed width of generated thumbnails; height scales
// to preserve the aspect ratio.
const thumbnailWidth = 320

// Thumbnail downscales a PNG screenshot to the given width.
func Thumbnail(pngData []byte, width int) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("thumbnail width must be positive")
	}
	src, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= width {
		return pngData, nil
	}
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return out.Bytes(), nil
}
