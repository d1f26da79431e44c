package filter

import (
	"fmt"

	"github.com/fxnlabs/accel-templates/internal/ppm"
)

// Channels per RGBAImage pixel.
const Channels = 4

// RGBAImage is the device-side image: row-major, four float32 channels per
// pixel in R, G, B, A order.
type RGBAImage struct {
	Width  int
	Height int
	Pix    []float32
}

// NewRGBA allocates a zeroed w×h image.
func NewRGBA(w, h int) *RGBAImage {
	return &RGBAImage{Width: w, Height: h, Pix: make([]float32, w*h*Channels)}
}

func (m *RGBAImage) validate() error {
	if m == nil {
		return fmt.Errorf("nil image")
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", m.Width, m.Height)
	}
	if want := m.Width * m.Height * Channels; len(m.Pix) != want {
		return fmt.Errorf("%dx%d image has %d channel values, want %d", m.Width, m.Height, len(m.Pix), want)
	}
	return nil
}

// Expand converts each 8-bit channel to float32 and sets alpha to zero.
func Expand(src *ppm.Image) *RGBAImage {
	dst := NewRGBA(src.Width, src.Height)
	for i, j := 0, 0; i < len(src.Pix); i, j = i+3, j+Channels {
		dst.Pix[j] = float32(src.Pix[i])
		dst.Pix[j+1] = float32(src.Pix[i+1])
		dst.Pix[j+2] = float32(src.Pix[i+2])
		dst.Pix[j+3] = 0
	}
	return dst
}

// Narrow converts back to 8-bit RGB by truncation, dropping alpha. Values
// are clamped into [0, 255] first.
func Narrow(src *RGBAImage) *ppm.Image {
	dst := ppm.New(src.Width, src.Height)
	for i, j := 0, 0; j < len(dst.Pix); i, j = i+Channels, j+3 {
		dst.Pix[j] = narrow(src.Pix[i])
		dst.Pix[j+1] = narrow(src.Pix[i+1])
		dst.Pix[j+2] = narrow(src.Pix[i+2])
	}
	return dst
}

func narrow(v float32) uint8 {
	switch {
	case v != v: // NaN
		return 0
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
