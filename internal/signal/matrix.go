package signal

import (
	"fmt"
	"strings"
)

// Matrix is a row-major float32 signal. Dims is [rows, cols]; cols == 0
// marks a 1-D signal of rows samples. The caller owns Data.
type Matrix struct {
	Data []float32
	Dims [2]int
}

// NewVector wraps samples as a 1-D signal.
func NewVector(samples []float32) *Matrix {
	return &Matrix{Data: samples, Dims: [2]int{len(samples), 0}}
}

// NewMatrix allocates a zeroed rows×cols signal.
func NewMatrix(rows, cols int) *Matrix {
	n := rows
	if cols > 0 {
		n = rows * cols
	}
	return &Matrix{Data: make([]float32, n), Dims: [2]int{rows, cols}}
}

func (m *Matrix) Rows() int { return m.Dims[0] }

// Cols returns the column count with the 1-D marker normalized to 1.
func (m *Matrix) Cols() int {
	if m.Dims[1] == 0 {
		return 1
	}
	return m.Dims[1]
}

// Is1D reports whether m is a vector.
func (m *Matrix) Is1D() bool {
	return m.Dims[1] <= 1
}

// At returns element (i, j).
func (m *Matrix) At(i, j int) float32 {
	return m.Data[i*m.Cols()+j]
}

func (m *Matrix) validate() error {
	if m == nil {
		return fmt.Errorf("nil matrix")
	}
	if m.Dims[0] <= 0 || m.Dims[1] < 0 {
		return fmt.Errorf("invalid dimensions %v", m.Dims)
	}
	if want := m.Rows() * m.Cols(); len(m.Data) != want {
		return fmt.Errorf("dimensions %v need %d samples, have %d", m.Dims, want, len(m.Data))
	}
	return nil
}

// String formats m one row per line, tab separated with six decimals.
func (m *Matrix) String() string {
	var b strings.Builder
	cols := m.Cols()
	if m.Is1D() {
		cols = m.Rows()
	}
	for i, v := range m.Data {
		fmt.Fprintf(&b, "\t%f", v)
		if (i+1)%cols == 0 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(',')
		}
	}
	return b.String()
}
