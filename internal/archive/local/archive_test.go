package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := a.PutObject(context.Background(), "websites/1/1/pages/1/desktop/current.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	require.Contains(t, uri, "file://")

	data, err := os.ReadFile(filepath.Join(dir, "websites", "1", "1", "pages", "1", "desktop", "current.png"))
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), data)
}

func TestPutObjectOverwrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = a.PutObject(ctx, "a/current.png", "image/png", []byte("old"))
	require.NoError(t, err)
	_, err = a.PutObject(ctx, "a/current.png", "image/png", []byte("new"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "a", "current.png"))
	require.NoError(t, err)
	require.Equal(t, []byte("new"), data)
}

func TestPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	a, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = a.PutObject(context.Background(), "../escape.png", "image/png", []byte("x"))
	require.Error(t, err)
}
