// Package filter applies square convolution filters to RGBA images on an
// accelerator session.
package filter

import (
	"context"
	"fmt"

	"github.com/fxnlabs/accel-templates/internal/accel"
	"go.uber.org/zap"
)

const (
	// Subsystem labels filter operations in logs and metrics.
	Subsystem = "filter"

	// KernelFilter is the entry point of the convolution program.
	KernelFilter = "Filter"
)

// OpConvolve is the only filter operation.
const OpConvolve accel.OpCode = 0

// Request is one convolution. Output is allocated when nil.
type Request struct {
	Input   *RGBAImage
	Output  *RGBAImage
	Weights Weights
}

// Operations is the filter operation table.
var Operations = map[accel.OpCode]accel.Descriptor[*Request]{
	OpConvolve: {
		Name:             "convolve",
		Kernel:           KernelFilter,
		BufferCount:      3,
		ArgumentCount:    4,
		ProblemDimension: 2,
		Inputs:           []int{0, 2},
		Outputs:          []int{1},
		Plan:             planConvolve,
	},
}

func planConvolve(r *Request) (accel.Plan, error) {
	if r == nil {
		return accel.Plan{}, fmt.Errorf("%w: nil filter request", accel.ErrInvalidRequest)
	}
	if err := r.Input.validate(); err != nil {
		return accel.Plan{}, fmt.Errorf("%w: input: %v", accel.ErrInvalidRequest, err)
	}
	if err := r.Weights.Validate(); err != nil {
		return accel.Plan{}, fmt.Errorf("%w: %v", accel.ErrInvalidRequest, err)
	}
	if r.Output == nil {
		r.Output = NewRGBA(r.Input.Width, r.Input.Height)
	}
	if err := r.Output.validate(); err != nil {
		return accel.Plan{}, fmt.Errorf("%w: output: %v", accel.ErrInvalidRequest, err)
	}
	if r.Output.Width != r.Input.Width || r.Output.Height != r.Input.Height {
		return accel.Plan{}, fmt.Errorf("%w: output is %dx%d, input is %dx%d", accel.ErrInvalidRequest,
			r.Output.Width, r.Output.Height, r.Input.Width, r.Input.Height)
	}

	pixels := len(r.Input.Pix)
	return accel.Plan{
		Kernel: KernelFilter,
		Buffers: []accel.BufferSpec{
			{Flags: accel.MemReadWrite, Elements: pixels},
			{Flags: accel.MemReadWrite, Elements: pixels},
			{Flags: accel.MemReadOnly, Elements: len(r.Weights.Values)},
		},
		Writes: []accel.Transfer{
			{Buffer: 0, Data: r.Input.Pix},
			{Buffer: 2, Data: r.Weights.Values},
		},
		Args: []accel.Arg{
			accel.BufferArg(0),
			accel.BufferArg(1),
			accel.BufferArg(2),
			accel.Int32Arg(int32(r.Weights.Side)),
		},
		Global: []int{r.Input.Width, r.Input.Height},
		Reads:  []accel.Transfer{{Buffer: 1, Data: r.Output.Pix}},
	}, nil
}

// KernelNames lists the entry points the filter program must provide.
func KernelNames() []string {
	return accel.KernelNames(Operations)
}

// HostKernels returns the host implementations for the CPU runtime.
func HostKernels() []accel.HostKernel {
	return []accel.HostKernel{{Name: KernelFilter, Run: hostFilter}}
}

func hostFilter(args *accel.HostArgs, global []int) error {
	in, err := args.Buffer(0)
	if err != nil {
		return err
	}
	out, err := args.Buffer(1)
	if err != nil {
		return err
	}
	weights, err := args.Buffer(2)
	if err != nil {
		return err
	}
	side, err := args.Int32(3)
	if err != nil {
		return err
	}
	if len(global) != 2 {
		return fmt.Errorf("filter needs a 2-D range, got %d-D", len(global))
	}
	w, h := global[0], global[1]
	if len(in) < w*h*Channels || len(out) < w*h*Channels || len(weights) < int(side*side) {
		return fmt.Errorf("buffers too small for %dx%d image and side %d", w, h, side)
	}
	convolve(out, in, weights, int(side), w, h)
	return nil
}

// Convolve filters img on the host. Samples outside the image are clamped to
// the nearest edge pixel, as on the device.
func Convolve(img *RGBAImage, w Weights) (*RGBAImage, error) {
	if err := img.validate(); err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	out := NewRGBA(img.Width, img.Height)
	convolve(out.Pix, img.Pix, w.Values, w.Side, img.Width, img.Height)
	return out, nil
}

func convolve(out, in, weights []float32, side, w, h int) {
	radius := side / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [Channels]float32
			for j := 0; j < side; j++ {
				sy := clamp(y+j-radius, 0, h-1)
				for i := 0; i < side; i++ {
					sx := clamp(x+i-radius, 0, w-1)
					wt := weights[j*side+i]
					p := (sy*w + sx) * Channels
					for c := 0; c < Channels; c++ {
						sum[c] += wt * in[p+c]
					}
				}
			}
			copy(out[(y*w+x)*Channels:], sum[:])
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Processor runs filter operations on a session whose filter kernels are
// built.
type Processor struct {
	dispatcher *accel.Dispatcher[*Request]
	logger     *zap.Logger
}

// NewProcessor creates a processor submitting to session.
func NewProcessor(session *accel.Session, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named(Subsystem)
	return &Processor{
		dispatcher: accel.NewDispatcher(accel.NewEngine(session, logger), Subsystem, Operations, logger),
		logger:     logger,
	}
}

// Compute dispatches op for req.
func (p *Processor) Compute(ctx context.Context, op accel.OpCode, req *Request) error {
	return p.dispatcher.Dispatch(ctx, op, req)
}

// Apply convolves img with w and returns the filtered image.
func (p *Processor) Apply(ctx context.Context, img *RGBAImage, w Weights) (*RGBAImage, error) {
	req := &Request{Input: img, Weights: w}
	if err := p.Compute(ctx, OpConvolve, req); err != nil {
		return nil, err
	}
	p.logger.Info("Applied filter",
		zap.Int("width", img.Width),
		zap.Int("height", img.Height),
		zap.Int("side", w.Side))
	return req.Output, nil
}
