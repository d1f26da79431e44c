package signal

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/fxnlabs/accel-templates/internal/accel"
	"gonum.org/v1/gonum/mat"
)

// ErrVerification is returned when a device result disagrees with the host
// reference.
var ErrVerification = errors.New("result verification failed")

// freivaldsIterations bounds the false positive rate of the 2-D check at 2^-8.
const freivaldsIterations = 8

// Report describes a verified result.
type Report struct {
	MaxAbsDiff float64                  `json:"maxAbsDiff"`
	Freivalds  bool                     `json:"freivalds"`
	Samples    []map[string]interface{} `json:"samples"`
}

// Verify compares out against the host reference for op applied to in.
// 2-D results are additionally checked with Freivalds' algorithm against
// the factored product.
func Verify(op accel.OpCode, in, out *Matrix, tolerance float64) (Report, error) {
	var report Report
	ref, err := Reference(op, in)
	if err != nil {
		return report, err
	}
	if out == nil || len(out.Data) != len(ref.Data) {
		return report, fmt.Errorf("%w: result shape does not match input", ErrVerification)
	}

	for i, v := range ref.Data {
		if d := math.Abs(float64(out.Data[i]) - float64(v)); d > report.MaxAbsDiff || math.IsNaN(d) {
			report.MaxAbsDiff = d
		}
	}
	report.Samples = resultSamples(out, 3)
	if report.MaxAbsDiff > tolerance || math.IsNaN(report.MaxAbsDiff) {
		return report, fmt.Errorf("%w: max difference %g exceeds tolerance %g", ErrVerification, report.MaxAbsDiff, tolerance)
	}

	if op == OpDCT2D || op == OpIDCT2D {
		if !freivalds(op, in, out, tolerance*float64(in.Cols()), freivaldsIterations) {
			return report, fmt.Errorf("%w: freivalds check rejected the product", ErrVerification)
		}
		report.Freivalds = true
	}
	return report, nil
}

// freivalds checks out·r against A·(X·(B·r)) for random binary r, where the
// forward transform is Cr·X·Ccᵀ and the inverse Crᵀ·X·Cc.
func freivalds(op accel.OpCode, in, out *Matrix, tolerance float64, iterations int) bool {
	rows, cols := in.Rows(), in.Cols()
	x := mat.NewDense(rows, cols, toFloat64(in.Data))
	y := mat.NewDense(rows, cols, toFloat64(out.Data))

	var left, right mat.Matrix
	cr, cc := Basis(rows), Basis(cols)
	if op == OpDCT2D {
		left, right = cr, cc.T()
	} else {
		left, right = cr.T(), cc
	}

	r := mat.NewVecDense(cols, nil)
	var br, xbr, axbr, yr mat.VecDense
	for i := 0; i < iterations; i++ {
		for j := 0; j < cols; j++ {
			r.SetVec(j, float64(rand.Intn(2)))
		}
		br.MulVec(right, r)
		xbr.MulVec(x, &br)
		axbr.MulVec(left, &xbr)
		yr.MulVec(y, r)

		for j := 0; j < rows; j++ {
			if math.Abs(axbr.AtVec(j)-yr.AtVec(j)) > tolerance {
				return false
			}
		}
	}
	return true
}

// resultSamples returns values at fixed positions of m.
func resultSamples(m *Matrix, count int) []map[string]interface{} {
	samples := make([]map[string]interface{}, 0, count)
	rows, cols := m.Rows(), m.Cols()
	if rows == 0 || cols == 0 || len(m.Data) < rows*cols {
		return samples
	}

	positions := [][]int{
		{0, 0},
		{rows / 2, cols / 2},
		{rows - 1, cols - 1},
	}
	for i := 0; i < count && i < len(positions); i++ {
		row, col := positions[i][0], positions[i][1]
		samples = append(samples, map[string]interface{}{
			"row":   row,
			"col":   col,
			"value": m.At(row, col),
		})
	}
	return samples
}
