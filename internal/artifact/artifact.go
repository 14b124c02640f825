// Package artifact writes verification screenshots to disk.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// SaveScreenshot writes png to path, replacing any previous file.
// When maxWidth is positive and the image is wider, it is downscaled
// with its aspect ratio preserved and re-encoded as PNG.
func SaveScreenshot(path string, png []byte, maxWidth int) error {
	if len(png) == 0 {
		return errors.New("empty screenshot")
	}

	data := png
	if maxWidth > 0 {
		resized, err := fitWidth(png, maxWidth)
		if err != nil {
			return err
		}
		data = resized
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Temp file + rename replaces the target atomically.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".screenshot-*.png")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

func fitWidth(png []byte, maxWidth int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(png))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	if img.Bounds().Dx() <= maxWidth {
		return png, nil
	}

	img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("png encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// RemoveStale deletes path if it exists. A missing file is not an error.
func RemoveStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale screenshot: %w", err)
	}
	return nil
}
