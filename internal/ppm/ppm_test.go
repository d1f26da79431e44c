package ppm

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() *Image {
	m := New(3, 2)
	for i := range m.Pix {
		m.Pix[i] = uint8(i * 13)
	}
	return m
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testImage(), DefaultComment))

	header := "P6\n# Output image creation.\n3 2\n255\n"
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte(header)))
	assert.Equal(t, testImage().Pix, buf.Bytes()[len(header):])

	buf.Reset()
	require.NoError(t, Encode(&buf, New(1, 1), ""))
	assert.Equal(t, "P6\n1 1\n255\n\x00\x00\x00", buf.String())

	assert.Error(t, Encode(&buf, &Image{Width: 2, Height: 2, Pix: make([]uint8, 3)}, ""))
	assert.Error(t, Encode(&buf, New(1, 1), "two\nlines"))
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ppm")
	want := testImage()
	require.NoError(t, WriteFile(path, want))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecode(t *testing.T) {
	pixels := string([]byte{1, 2, 3, 4, 5, 6})

	tests := []struct {
		name  string
		input string
		w, h  int
	}{
		{"plain", "P6\n2 1\n255\n" + pixels, 2, 1},
		{"comments", "P6\n# one\n# two\n2 1\n255\n" + pixels, 2, 1},
		{"size on separate lines", "P6\n2\n1\n255 " + pixels, 2, 1},
		{"crlf magic", "P6\r\n1 2\n255\n" + pixels, 1, 2},
		{"pixel data starting with whitespace byte", "P6\n2 1\n255\n\n\n\n\n\n\n", 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode(bytes.NewReader([]byte(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.w, m.Width)
			assert.Equal(t, tt.h, m.Height)
			assert.Len(t, m.Pix, tt.w*tt.h*3)
		})
	}

	m, err := Decode(bytes.NewReader([]byte("P6\n2 1\n255\n" + pixels)))
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3, 4, 5, 6}, m.Pix)
}

func TestDecodeMalformed(t *testing.T) {
	tests := map[string]string{
		"empty":              "",
		"wrong magic":        "P3\n1 1\n255\n\x00\x00\x00",
		"missing size":       "P6\n",
		"negative size":      "P6\n-1 1\n255\n\x00\x00\x00",
		"zero size":          "P6\n0 1\n255\n",
		"letters in size":    "P6\nab 1\n255\n\x00\x00\x00",
		"wrong depth":        "P6\n1 1\n65535\n\x00\x00\x00",
		"missing depth":      "P6\n1 1\n",
		"unterminated":       "P6\n1 1\n255",
		"comment after size": "P6\n1 1\n# late\n255\n\x00\x00\x00",
		"truncated pixels":   "P6\n2 2\n255\n\x00\x00\x00",
		"huge":               "P6\n100000 100000\n255\n",
		"large truncated":    "P6\n40000 40000\n255\n\x00\x00\x00",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader([]byte(input)))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedFile)
			assert.True(t, IsFatal(err))
		})
	}
}

func TestDecodeTruncatedAllocation(t *testing.T) {
	input := []byte(fmt.Sprintf("P6\n%d %d\n255\n\x00\x00\x00", MaxDimension, MaxDimension))

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := Decode(bytes.NewReader(input))
	runtime.ReadMemStats(&after)

	assert.ErrorIs(t, err, ErrMalformedFile)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.ppm"))
	assert.ErrorIs(t, err, ErrFileOpen)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, IsFatal(err))
}

func TestImageInterop(t *testing.T) {
	m := testImage()
	assert.Equal(t, image.Rect(0, 0, 3, 2), m.Bounds())
	assert.Equal(t, color.RGBA{R: m.Pix[3], G: m.Pix[4], B: m.Pix[5], A: 0xff}, m.At(1, 0))
	assert.Equal(t, color.RGBA{}, m.At(5, 5))

	src := image.NewNRGBA(image.Rect(10, 10, 12, 11))
	src.Set(10, 10, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.Set(11, 10, color.NRGBA{R: 40, G: 50, B: 60, A: 255})
	got := FromImage(src)
	assert.Equal(t, []uint8{10, 20, 30, 40, 50, 60}, got.Pix)

	copied := FromImage(m)
	assert.Equal(t, m.Pix, copied.Pix)
	copied.Pix[0]++
	assert.NotEqual(t, m.Pix[0], copied.Pix[0])

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, m, ""))
	decoded, format, err := image.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "ppm", format)
	assert.Equal(t, m.Bounds(), decoded.Bounds())
}
