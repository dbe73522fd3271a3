package archive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScreenshotPath(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"websites/3/7/pages/12/desktop/current.png",
		ScreenshotPath(3, 7, 12, "desktop"),
	)
	require.Equal(t,
		"websites/3/7/pages/12/mobile/thumbnail.png",
		ThumbnailPath(3, 7, 12, "mobile"),
	)
}

func TestPathsShareDirectory(t *testing.T) {
	t.Parallel()

	shot := ScreenshotPath(1, 2, 3, "tablet")
	thumb := ThumbnailPath(1, 2, 3, "tablet")
	require.Equal(t, shot[:len(shot)-len("current.png")], thumb[:len(thumb)-len("thumbnail.png")])
}
