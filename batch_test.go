package faceshape

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, path string, img image.Image) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	switch filepath.Ext(path) {
	case ".jpg", ".JPG":
		require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
	default:
		require.NoError(t, png.Encode(f, img))
	}
}

func TestBatch_Classify(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	writeImage(t, filepath.Join(dir, "a.png"), uniformImage(100, 100, color.Gray{Y: 160}))
	writeImage(t, filepath.Join(dir, "b.png"), uniformImage(10, 10, color.White))
	writeImage(t, filepath.Join(dir, "nested", "c.JPG"), uniformImage(100, 140, color.Gray{Y: 90}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.png"), []byte("not an image"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))

	results, err := BatchClassify(context.Background(), dir, 2, newTestPipeline())
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, filepath.Join(dir, "a.png"), results[0].Path)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, Round, results[0].Analysis.Result.Label)
	assert.Equal(t, 100, results[0].Analysis.Measurements.Width)

	assert.Equal(t, filepath.Join(dir, "b.png"), results[1].Path)
	assert.True(t, errors.Is(results[1].Err, ErrNoFace))

	assert.Equal(t, filepath.Join(dir, "d.png"), results[2].Path)
	assert.Error(t, results[2].Err)

	assert.Equal(t, filepath.Join(dir, "nested", "c.JPG"), results[3].Path)
	assert.NoError(t, results[3].Err)
	assert.Equal(t, 140, results[3].Analysis.Measurements.Height)
	assert.InDelta(t, 1.4, results[3].Metrics.Ratio, 1e-9)
}

func TestBatch_Cancelled(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		writeImage(t, filepath.Join(dir, name), uniformImage(40, 40, color.White))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BatchClassify(ctx, dir, 1, newTestPipeline())
	assert.Error(t, err)
}

func TestBatch_MissingDir(t *testing.T) {
	_, err := BatchClassify(context.Background(), filepath.Join(t.TempDir(), "missing"), 4, newTestPipeline())
	assert.Error(t, err)
}

func TestBatch_ValidExtension(t *testing.T) {
	assert.True(t, isValidExtension(".PNG", SupportedExtensions))
	assert.True(t, isValidExtension(".jpeg", SupportedExtensions))
	assert.False(t, isValidExtension(".gif", SupportedExtensions))
	assert.False(t, isValidExtension("", SupportedExtensions))
}
