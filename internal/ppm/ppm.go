// Package ppm reads and writes binary PPM (P6) images with 8-bit components.
package ppm

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"strings"
)

const (
	Magic    = "P6"
	MaxValue = 255

	// MaxDimension bounds width and height accepted by the decoder.
	MaxDimension = 1 << 16

	// DefaultComment is written by WriteFile when no comment is given.
	DefaultComment = "Output image creation."
)

// The fatal error class: a caller cannot continue without the image.
var (
	ErrFileOpen      = errors.New("unable to open image file")
	ErrMalformedFile = errors.New("malformed PPM image")
)

// IsFatal reports whether err belongs to the fatal load class.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFileOpen) || errors.Is(err, ErrMalformedFile)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedFile, fmt.Sprintf(format, args...))
}

// Image is a row-major RGB grid, 3 bytes per pixel, no padding.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a black w×h image.
func New(w, h int) *Image {
	return &Image{Width: w, Height: h, Pix: make([]uint8, w*h*3)}
}

// PixOffset returns the index of the red component of (x, y).
func (m *Image) PixOffset(x, y int) int {
	return (y*m.Width + x) * 3
}

func (m *Image) ColorModel() color.Model { return color.RGBAModel }

func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

func (m *Image) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(m.Bounds())) {
		return color.RGBA{}
	}
	i := m.PixOffset(x, y)
	return color.RGBA{R: m.Pix[i], G: m.Pix[i+1], B: m.Pix[i+2], A: 0xff}
}

// FromImage copies any image into an RGB grid, dropping alpha.
func FromImage(src image.Image) *Image {
	if m, ok := src.(*Image); ok {
		out := New(m.Width, m.Height)
		copy(out.Pix, m.Pix)
		return out
	}
	b := src.Bounds()
	out := New(b.Dx(), b.Dy())
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.RGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			i := out.PixOffset(x, y)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2] = c.R, c.G, c.B
		}
	}
	return out
}

// Decode reads a P6 image. The header is a "P6" line, optional lines starting
// with '#', width and height, the component depth (255), and exactly one
// whitespace byte; width*height*3 pixel bytes follow.
func Decode(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)
	w, h, err := decodeHeader(br)
	if err != nil {
		return nil, err
	}

	// the buffer grows with the bytes actually present, not the header size
	n := int64(w) * int64(h) * 3
	pix, err := io.ReadAll(io.LimitReader(br, n))
	if err != nil {
		return nil, malformed("pixel data: %v", err)
	}
	if int64(len(pix)) != n {
		return nil, malformed("pixel data: expected %d bytes, got %d", n, len(pix))
	}
	return &Image{Width: w, Height: h, Pix: pix}, nil
}

// DecodeConfig reads only the header.
func DecodeConfig(r io.Reader) (image.Config, error) {
	w, h, err := decodeHeader(bufio.NewReader(r))
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.RGBAModel, Width: w, Height: h}, nil
}

func decodeHeader(br *bufio.Reader) (int, int, error) {
	line, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return 0, 0, malformed("missing magic number: %v", err)
	}
	if strings.TrimRight(line, " \t\r\n") != Magic {
		return 0, 0, malformed("invalid image format %q (must be %q)", strings.TrimSpace(line), Magic)
	}

	if err := skipComments(br); err != nil {
		return 0, 0, err
	}

	w, err := readInt(br)
	if err != nil {
		return 0, 0, malformed("invalid image size: %v", err)
	}
	h, err := readInt(br)
	if err != nil {
		return 0, 0, malformed("invalid image size: %v", err)
	}
	if w <= 0 || h <= 0 || w > MaxDimension || h > MaxDimension {
		return 0, 0, malformed("invalid image size %dx%d", w, h)
	}

	depth, err := readInt(br)
	if err != nil {
		return 0, 0, malformed("invalid rgb component: %v", err)
	}
	if depth != MaxValue {
		return 0, 0, malformed("component depth %d, want %d", depth, MaxValue)
	}

	c, err := br.ReadByte()
	if err != nil {
		return 0, 0, malformed("header not terminated: %v", err)
	}
	if !isSpace(c) {
		return 0, 0, malformed("header terminated by %q, want whitespace", c)
	}
	return w, h, nil
}

func skipComments(br *bufio.Reader) error {
	for {
		c, err := br.ReadByte()
		if err != nil {
			return malformed("truncated header: %v", err)
		}
		if c != '#' {
			return br.UnreadByte()
		}
		if _, err := br.ReadString('\n'); err != nil {
			return malformed("unterminated comment: %v", err)
		}
	}
}

// readInt skips leading whitespace and parses an unsigned decimal integer,
// leaving the terminating byte unread.
func readInt(br *bufio.Reader) (int, error) {
	c, err := br.ReadByte()
	for err == nil && isSpace(c) {
		c, err = br.ReadByte()
	}
	if err != nil {
		return 0, err
	}
	if c < '0' || c > '9' {
		return 0, fmt.Errorf("unexpected byte %q", c)
	}

	n := 0
	for err == nil && c >= '0' && c <= '9' {
		n = n*10 + int(c-'0')
		if n > 1<<24 {
			return 0, errors.New("value too large")
		}
		c, err = br.ReadByte()
	}
	if err == nil {
		err = br.UnreadByte()
	} else if errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// Encode writes m as P6. A non-empty comment is written as one "# " line.
func Encode(w io.Writer, m *Image, comment string) error {
	if m.Width <= 0 || m.Height <= 0 || len(m.Pix) != m.Width*m.Height*3 {
		return fmt.Errorf("invalid image: %dx%d with %d bytes", m.Width, m.Height, len(m.Pix))
	}
	if strings.ContainsAny(comment, "\r\n") {
		return errors.New("comment must be a single line")
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n", Magic)
	if comment != "" {
		fmt.Fprintf(bw, "# %s\n", comment)
	}
	fmt.Fprintf(bw, "%d %d\n%d\n", m.Width, m.Height, MaxValue)
	if _, err := bw.Write(m.Pix); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadFile decodes the image at path.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileOpen, path, err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return m, nil
}

// WriteFile encodes m to path with DefaultComment.
func WriteFile(path string, m *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFileOpen, path, err)
	}
	if err := Encode(f, m, DefaultComment); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func init() {
	image.RegisterFormat("ppm", Magic, func(r io.Reader) (image.Image, error) {
		return Decode(r)
	}, DecodeConfig)
}
