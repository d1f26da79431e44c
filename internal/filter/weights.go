package filter

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Weights is a square convolution matrix of odd side, row-major.
type Weights struct {
	Side   int
	Values []float32
}

// NewWeights infers the side from len(values), which must be the square of
// an odd number.
func NewWeights(values []float32) (Weights, error) {
	side := int(math.Round(math.Sqrt(float64(len(values)))))
	w := Weights{Side: side, Values: append([]float32(nil), values...)}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// Validate checks the side is odd and positive with Side*Side values.
func (w Weights) Validate() error {
	if w.Side <= 0 || w.Side%2 == 0 {
		return fmt.Errorf("weight matrix side %d must be odd and positive", w.Side)
	}
	if len(w.Values) != w.Side*w.Side {
		return fmt.Errorf("weight matrix of side %d needs %d values, got %d", w.Side, w.Side*w.Side, len(w.Values))
	}
	return nil
}

var presets = map[string][]float32{
	// Vertical gradient, responds to horizontal edges.
	"sobel": {
		-1, -2, -1,
		0, 0, 0,
		1, 2, 1,
	},
	"sobel-x": {
		-1, 0, 1,
		-2, 0, 2,
		-1, 0, 1,
	},
	"box": {
		1.0 / 9, 1.0 / 9, 1.0 / 9,
		1.0 / 9, 1.0 / 9, 1.0 / 9,
		1.0 / 9, 1.0 / 9, 1.0 / 9,
	},
	"sharpen": {
		0, -1, 0,
		-1, 5, -1,
		0, -1, 0,
	},
	"identity": {
		0, 0, 0,
		0, 1, 0,
		0, 0, 0,
	},
}

// DefaultPreset is the edge filter of the demo program.
const DefaultPreset = "sobel"

// Preset returns a copy of a named weight matrix.
func Preset(name string) (Weights, error) {
	values, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Weights{}, fmt.Errorf("unknown filter preset %q (available: %s)", name, strings.Join(Presets(), ", "))
	}
	return NewWeights(values)
}

// Presets lists the preset names.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
