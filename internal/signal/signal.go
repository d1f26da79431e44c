// Package signal runs 1-D and 2-D discrete cosine transforms on an
// accelerator session. Forward transforms are the orthonormal DCT-II and
// inverse transforms the matching DCT-III, so an inverse undoes a forward.
package signal

import (
	"context"
	"fmt"

	"github.com/fxnlabs/accel-templates/internal/accel"
	"go.uber.org/zap"
)

// Subsystem labels signal operations in logs and metrics.
const Subsystem = "signal"

const (
	OpDCT1D accel.OpCode = iota
	OpIDCT1D
	OpDCT2D
	OpIDCT2D
)

const (
	KernelDCT1D  = "computeDCT1D"
	KernelIDCT1D = "computeIDCT1D"
	KernelDCT2D  = "computeDCT2D"
	KernelIDCT2D = "computeIDCT2D"
)

// Request is one transform. Output is allocated when nil; its Dims are set
// to the input's.
type Request struct {
	Input  *Matrix
	Output *Matrix
}

// Operations is the signal operation table.
var Operations = map[accel.OpCode]accel.Descriptor[*Request]{
	OpDCT1D:  descriptor1D("dct1d", KernelDCT1D),
	OpIDCT1D: descriptor1D("idct1d", KernelIDCT1D),
	OpDCT2D:  descriptor2D("dct2d", KernelDCT2D),
	OpIDCT2D: descriptor2D("idct2d", KernelIDCT2D),
}

func descriptor1D(name, kernel string) accel.Descriptor[*Request] {
	return accel.Descriptor[*Request]{
		Name:             name,
		Kernel:           kernel,
		BufferCount:      2,
		ArgumentCount:    3,
		ProblemDimension: 1,
		Inputs:           []int{0},
		Outputs:          []int{1},
		Plan: func(r *Request) (accel.Plan, error) {
			if err := prepare(r); err != nil {
				return accel.Plan{}, err
			}
			if !r.Input.Is1D() {
				return accel.Plan{}, fmt.Errorf("%w: %s needs a vector, got dimensions %v", accel.ErrInvalidRequest, name, r.Input.Dims)
			}
			rows := r.Input.Rows()
			return accel.Plan{
				Kernel:  kernel,
				Buffers: buffers(rows),
				Writes:  []accel.Transfer{{Buffer: 0, Data: r.Input.Data}},
				Args:    []accel.Arg{accel.BufferArg(0), accel.BufferArg(1), accel.Int32Arg(int32(rows))},
				Global:  []int{rows},
				Reads:   []accel.Transfer{{Buffer: 1, Data: r.Output.Data}},
			}, nil
		},
	}
}

func descriptor2D(name, kernel string) accel.Descriptor[*Request] {
	return accel.Descriptor[*Request]{
		Name:             name,
		Kernel:           kernel,
		BufferCount:      2,
		ArgumentCount:    4,
		ProblemDimension: 2,
		Inputs:           []int{0},
		Outputs:          []int{1},
		Plan: func(r *Request) (accel.Plan, error) {
			if err := prepare(r); err != nil {
				return accel.Plan{}, err
			}
			rows, cols := r.Input.Rows(), r.Input.Cols()
			return accel.Plan{
				Kernel:  kernel,
				Buffers: buffers(rows * cols),
				Writes:  []accel.Transfer{{Buffer: 0, Data: r.Input.Data}},
				Args: []accel.Arg{
					accel.BufferArg(0),
					accel.BufferArg(1),
					accel.Int32Arg(int32(rows)),
					accel.Int32Arg(int32(cols)),
				},
				Global: []int{rows, cols},
				Reads:  []accel.Transfer{{Buffer: 1, Data: r.Output.Data}},
			}, nil
		},
	}
}

func buffers(n int) []accel.BufferSpec {
	return []accel.BufferSpec{
		{Flags: accel.MemReadOnly, Elements: n},
		{Flags: accel.MemWriteOnly, Elements: n},
	}
}

// prepare validates the input and shapes the output like it.
func prepare(r *Request) error {
	if r == nil {
		return fmt.Errorf("%w: nil signal request", accel.ErrInvalidRequest)
	}
	if err := r.Input.validate(); err != nil {
		return fmt.Errorf("%w: input: %v", accel.ErrInvalidRequest, err)
	}
	if r.Output == nil {
		r.Output = &Matrix{}
	}
	if r.Output.Data == nil {
		r.Output.Data = make([]float32, len(r.Input.Data))
	}
	if len(r.Output.Data) != len(r.Input.Data) {
		return fmt.Errorf("%w: output holds %d samples, input has %d", accel.ErrInvalidRequest, len(r.Output.Data), len(r.Input.Data))
	}
	r.Output.Dims = r.Input.Dims
	return nil
}

// KernelNames lists the entry points the DCT program must provide.
func KernelNames() []string {
	return accel.KernelNames(Operations)
}

// Transformer runs signal operations on a session whose DCT kernels are
// built.
type Transformer struct {
	dispatcher *accel.Dispatcher[*Request]
	logger     *zap.Logger
	verify     bool
	tolerance  float64
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithVerification checks every result against the host reference and fails
// the call when any sample differs by more than tolerance.
func WithVerification(tolerance float64) Option {
	return func(t *Transformer) {
		t.verify = true
		t.tolerance = tolerance
	}
}

// NewTransformer creates a transformer submitting to session.
func NewTransformer(session *accel.Session, logger *zap.Logger, opts ...Option) *Transformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named(Subsystem)
	t := &Transformer{
		dispatcher: accel.NewDispatcher(accel.NewEngine(session, logger), Subsystem, Operations, logger),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Compute runs op from in into out. The input is never modified.
func (t *Transformer) Compute(ctx context.Context, op accel.OpCode, in, out *Matrix) error {
	if err := t.dispatcher.Dispatch(ctx, op, &Request{Input: in, Output: out}); err != nil {
		return err
	}
	if !t.verify {
		return nil
	}

	report, err := Verify(op, in, out, t.tolerance)
	if err != nil {
		t.logger.Error("Result verification failed", zap.Error(err))
		return err
	}
	t.logger.Info("Result verified against host reference",
		zap.String("operation", Operations[op].Name),
		zap.Float64("max_abs_diff", report.MaxAbsDiff),
		zap.Bool("freivalds", report.Freivalds),
		zap.Any("samples", report.Samples))
	return nil
}

// Forward applies the 1-D or 2-D DCT depending on the shape of in.
func (t *Transformer) Forward(ctx context.Context, in *Matrix) (*Matrix, error) {
	op := OpDCT2D
	if in != nil && in.Dims[1] == 0 {
		op = OpDCT1D
	}
	out := &Matrix{}
	if err := t.Compute(ctx, op, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Inverse applies the 1-D or 2-D inverse DCT depending on the shape of in.
func (t *Transformer) Inverse(ctx context.Context, in *Matrix) (*Matrix, error) {
	op := OpIDCT2D
	if in != nil && in.Dims[1] == 0 {
		op = OpIDCT1D
	}
	out := &Matrix{}
	if err := t.Compute(ctx, op, in, out); err != nil {
		return nil, err
	}
	return out, nil
}
