package signal

import (
	"fmt"

	"github.com/fxnlabs/accel-templates/internal/accel"
	"gonum.org/v1/gonum/mat"
)

// Basis returns the n×n orthonormal DCT-II matrix C, so that the forward
// 1-D transform is C·x and the 2-D transform is C·X·Cᵀ.
func Basis(n int) *mat.Dense {
	return mat.NewDense(n, n, basis(n))
}

// Reference computes op on the host with gonum matrix products.
func Reference(op accel.OpCode, in *Matrix) (*Matrix, error) {
	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", accel.ErrInvalidRequest, err)
	}

	rows, cols := in.Rows(), in.Cols()
	x := mat.NewDense(rows, cols, toFloat64(in.Data))
	cr := Basis(rows)
	cc := Basis(cols)

	var y mat.Dense
	switch op {
	case OpDCT1D:
		if !in.Is1D() {
			return nil, fmt.Errorf("%w: dct1d needs a vector, got dimensions %v", accel.ErrInvalidRequest, in.Dims)
		}
		y.Mul(cr, x)
	case OpIDCT1D:
		if !in.Is1D() {
			return nil, fmt.Errorf("%w: idct1d needs a vector, got dimensions %v", accel.ErrInvalidRequest, in.Dims)
		}
		y.Mul(cr.T(), x)
	case OpDCT2D:
		y.Product(cr, x, cc.T())
	case OpIDCT2D:
		y.Product(cr.T(), x, cc)
	default:
		return nil, fmt.Errorf("%w: signal operation code %d", accel.ErrUnknownOperation, int(op))
	}

	out := &Matrix{Data: make([]float32, len(in.Data)), Dims: in.Dims}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Data[i*cols+j] = float32(y.At(i, j))
		}
	}
	return out, nil
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
