package signal

import (
	"fmt"
	"math"

	"github.com/fxnlabs/accel-templates/internal/accel"
)

// HostKernels returns the host implementations for the CPU runtime.
func HostKernels() []accel.HostKernel {
	return []accel.HostKernel{
		{Name: KernelDCT1D, Run: host1D(dct1D)},
		{Name: KernelIDCT1D, Run: host1D(idct1D)},
		{Name: KernelDCT2D, Run: host2D(dct2D)},
		{Name: KernelIDCT2D, Run: host2D(idct2D)},
	}
}

func host1D(transform func(out, in []float32, n int)) accel.HostFunc {
	return func(args *accel.HostArgs, global []int) error {
		in, out, err := ioBuffers(args)
		if err != nil {
			return err
		}
		rows, err := args.Int32(2)
		if err != nil {
			return err
		}
		n := int(rows)
		if len(global) != 1 || global[0] != n {
			return fmt.Errorf("range %v does not match %d rows", global, n)
		}
		if len(in) < n || len(out) < n {
			return fmt.Errorf("buffers too small for %d samples", n)
		}
		transform(out, in, n)
		return nil
	}
}

func host2D(transform func(out, in []float32, rows, cols int)) accel.HostFunc {
	return func(args *accel.HostArgs, global []int) error {
		in, out, err := ioBuffers(args)
		if err != nil {
			return err
		}
		r, err := args.Int32(2)
		if err != nil {
			return err
		}
		c, err := args.Int32(3)
		if err != nil {
			return err
		}
		rows, cols := int(r), int(c)
		if len(global) != 2 || global[0] != rows || global[1] != cols {
			return fmt.Errorf("range %v does not match %dx%d matrix", global, rows, cols)
		}
		if len(in) < rows*cols || len(out) < rows*cols {
			return fmt.Errorf("buffers too small for %dx%d matrix", rows, cols)
		}
		transform(out, in, rows, cols)
		return nil
	}
}

func ioBuffers(args *accel.HostArgs) (in, out []float32, err error) {
	if in, err = args.Buffer(0); err != nil {
		return nil, nil, err
	}
	if out, err = args.Buffer(1); err != nil {
		return nil, nil, err
	}
	return in, out, nil
}

// basis returns the n×n orthonormal DCT-II matrix, row k holding the k-th
// cosine: alpha(k) * cos(pi * (2i+1) * k / 2n).
func basis(n int) []float64 {
	b := make([]float64, n*n)
	for k := 0; k < n; k++ {
		a := math.Sqrt(2 / float64(n))
		if k == 0 {
			a = math.Sqrt(1 / float64(n))
		}
		for i := 0; i < n; i++ {
			b[k*n+i] = a * math.Cos(math.Pi*float64((2*i+1)*k)/float64(2*n))
		}
	}
	return b
}

func dct1D(out, in []float32, n int) {
	b := basis(n)
	for k := 0; k < n; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += b[k*n+i] * float64(in[i])
		}
		out[k] = float32(sum)
	}
}

func idct1D(out, in []float32, n int) {
	b := basis(n)
	for i := 0; i < n; i++ {
		var sum float64
		for k := 0; k < n; k++ {
			sum += b[k*n+i] * float64(in[k])
		}
		out[i] = float32(sum)
	}
}

func dct2D(out, in []float32, rows, cols int) {
	br, bc := basis(rows), basis(cols)

	// t = in * bcᵀ
	t := make([]float64, rows*cols)
	for x := 0; x < rows; x++ {
		for v := 0; v < cols; v++ {
			var sum float64
			for y := 0; y < cols; y++ {
				sum += float64(in[x*cols+y]) * bc[v*cols+y]
			}
			t[x*cols+v] = sum
		}
	}
	// out = br * t
	for u := 0; u < rows; u++ {
		for v := 0; v < cols; v++ {
			var sum float64
			for x := 0; x < rows; x++ {
				sum += br[u*rows+x] * t[x*cols+v]
			}
			out[u*cols+v] = float32(sum)
		}
	}
}

func idct2D(out, in []float32, rows, cols int) {
	br, bc := basis(rows), basis(cols)

	// t = in * bc
	t := make([]float64, rows*cols)
	for u := 0; u < rows; u++ {
		for y := 0; y < cols; y++ {
			var sum float64
			for v := 0; v < cols; v++ {
				sum += float64(in[u*cols+v]) * bc[v*cols+y]
			}
			t[u*cols+y] = sum
		}
	}
	// out = brᵀ * t
	for x := 0; x < rows; x++ {
		for y := 0; y < cols; y++ {
			var sum float64
			for u := 0; u < rows; u++ {
				sum += br[u*rows+x] * t[u*cols+y]
			}
			out[x*cols+y] = float32(sum)
		}
	}
}
