package artifact

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 0x4e, G: 0xcc, B: 0xa3, A: 0xff})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestSaveScreenshotWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "verification_login.png")
	data := testPNG(t, 64, 32)

	require.NoError(t, SaveScreenshot(path, data, 0))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got, "without a max width the bytes are written untouched")
}

func TestSaveScreenshotOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verification_error.png")

	require.NoError(t, SaveScreenshot(path, testPNG(t, 10, 10), 0))
	require.NoError(t, SaveScreenshot(path, testPNG(t, 20, 5), 0))

	w, h := decodeSize(t, path)
	assert.Equal(t, 20, w)
	assert.Equal(t, 5, h)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files or extra artifacts should remain")
}

func TestSaveScreenshotMaxWidth(t *testing.T) {
	dir := t.TempDir()

	t.Run("wider image is downscaled", func(t *testing.T) {
		path := filepath.Join(dir, "wide.png")
		require.NoError(t, SaveScreenshot(path, testPNG(t, 200, 100), 50))

		w, h := decodeSize(t, path)
		assert.Equal(t, 50, w)
		assert.Equal(t, 25, h)
	})

	t.Run("narrow image untouched", func(t *testing.T) {
		path := filepath.Join(dir, "narrow.png")
		data := testPNG(t, 40, 40)
		require.NoError(t, SaveScreenshot(path, data, 50))

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})
}

func TestSaveScreenshotRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, SaveScreenshot(filepath.Join(dir, "empty.png"), nil, 0))
	assert.Error(t, SaveScreenshot(filepath.Join(dir, "garbage.png"), []byte("not a png"), 100))

	_, err := os.Stat(filepath.Join(dir, "garbage.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verification_error.png")

	require.NoError(t, RemoveStale(path), "missing file is fine")

	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	require.NoError(t, RemoveStale(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
