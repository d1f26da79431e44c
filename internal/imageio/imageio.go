// Package imageio opens and saves the images handled by the filter demo.
// PPM goes through the bit-exact codec; other formats are decoded and
// encoded with imaging and x/image.
package imageio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fxnlabs/accel-templates/internal/ppm"
	"golang.org/x/image/bmp"
)

// ErrUnsupportedFormat is returned for an output extension without an encoder.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Open reads path as an 8-bit RGB image. PPM files keep the codec's fatal
// error classes.
func Open(path string) (*ppm.Image, error) {
	if isPPM(path) {
		return ppm.ReadFile(path)
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ppm.ErrFileOpen, path, err)
	}
	return ppm.FromImage(img), nil
}

// Save writes m to path in the format its extension names.
func Save(path string, m *ppm.Image) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".ppm":
		return ppm.WriteFile(path, m)
	case ".bmp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := bmp.Encode(f, m); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case ".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff":
		return imaging.Save(m, path, imaging.JPEGQuality(100))
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func isPPM(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".ppm")
}
