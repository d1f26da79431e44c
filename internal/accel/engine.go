package accel

import (
	"context"
	"fmt"
	"time"

	"github.com/fxnlabs/accel-templates/internal/metrics"
	"go.uber.org/zap"
)

const float32Size = 4

// ArgKind is the type of a kernel argument slot.
type ArgKind int

const (
	ArgBuffer ArgKind = iota
	ArgInt32
	ArgFloat32
)

func (k ArgKind) String() string {
	switch k {
	case ArgBuffer:
		return "buffer"
	case ArgInt32:
		return "int32"
	case ArgFloat32:
		return "float32"
	default:
		return fmt.Sprintf("ArgKind(%d)", int(k))
	}
}

// BufferSpec declares one call-scoped device buffer of float32 elements.
type BufferSpec struct {
	Flags    MemFlags
	Elements int
}

// Bytes is the device allocation size.
func (b BufferSpec) Bytes() int {
	return b.Elements * float32Size
}

// Transfer pairs a plan buffer index with host memory.
type Transfer struct {
	Buffer int
	Data   []float32
}

// Arg is one kernel argument value.
type Arg struct {
	Kind    ArgKind
	Buffer  int
	Int32   int32
	Float32 float32
}

func BufferArg(index int) Arg  { return Arg{Kind: ArgBuffer, Buffer: index} }
func Int32Arg(v int32) Arg     { return Arg{Kind: ArgInt32, Int32: v} }
func Float32Arg(v float32) Arg { return Arg{Kind: ArgFloat32, Float32: v} }

// Plan is a fully resolved kernel invocation.
type Plan struct {
	Kernel  string
	Buffers []BufferSpec
	Writes  []Transfer
	Args    []Arg
	Global  []int
	Reads   []Transfer
}

func (p Plan) validate() error {
	if p.Kernel == "" {
		return fmt.Errorf("%w: plan has no kernel", ErrInvalidRequest)
	}
	if len(p.Global) < 1 || len(p.Global) > 3 {
		return fmt.Errorf("%w: work dimension %d not in [1,3]", ErrInvalidRequest, len(p.Global))
	}
	for d, n := range p.Global {
		if n <= 0 {
			return fmt.Errorf("%w: global size %d in dimension %d", ErrInvalidRequest, n, d)
		}
	}
	for i, b := range p.Buffers {
		if b.Elements <= 0 {
			return fmt.Errorf("%w: buffer %d has %d elements", ErrInvalidRequest, i, b.Elements)
		}
	}
	for _, t := range p.Writes {
		if t.Buffer < 0 || t.Buffer >= len(p.Buffers) {
			return fmt.Errorf("%w: write targets buffer %d of %d", ErrBufferWrite, t.Buffer, len(p.Buffers))
		}
		if want := p.Buffers[t.Buffer].Elements; len(t.Data) != want {
			return fmt.Errorf("%w: buffer %d holds %d bytes, host data has %d",
				ErrBufferWrite, t.Buffer, want*float32Size, len(t.Data)*float32Size)
		}
	}
	for _, t := range p.Reads {
		if t.Buffer < 0 || t.Buffer >= len(p.Buffers) {
			return fmt.Errorf("%w: read targets buffer %d of %d", ErrBufferRead, t.Buffer, len(p.Buffers))
		}
		if want := p.Buffers[t.Buffer].Elements; len(t.Data) != want {
			return fmt.Errorf("%w: buffer %d holds %d bytes, host destination has %d",
				ErrBufferRead, t.Buffer, want*float32Size, len(t.Data)*float32Size)
		}
	}
	for i, a := range p.Args {
		if a.Kind == ArgBuffer && (a.Buffer < 0 || a.Buffer >= len(p.Buffers)) {
			return fmt.Errorf("%w: argument %d references buffer %d of %d", ErrArgumentBind, i, a.Buffer, len(p.Buffers))
		}
	}
	return nil
}

// Engine runs plans against a session: allocate, write, bind, launch, read,
// release. Every step blocks before the next one starts.
type Engine struct {
	session *Session
	logger  *zap.Logger
}

// NewEngine creates an engine submitting to the session's queue.
func NewEngine(session *Session, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{session: session, logger: logger}
}

// Session returns the session the engine submits to.
func (e *Engine) Session() *Session {
	return e.session
}

// Run executes plan. Buffers allocated by the call are released exactly once
// on every return path.
func (e *Engine) Run(ctx context.Context, plan Plan) error {
	if err := plan.validate(); err != nil {
		return err
	}

	slot, err := e.session.slot(plan.Kernel)
	if err != nil {
		return err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	kernel := slot.kernel
	if kernel == nil {
		return ErrSessionClosed
	}
	if n := kernel.NumArgs(); n != len(plan.Args) {
		return fmt.Errorf("%w: kernel %q takes %d arguments, plan binds %d", ErrArgumentBind, plan.Kernel, n, len(plan.Args))
	}

	start := time.Now()
	scope := newBufferScope(e.session.context, e.session.runtime.Name())
	defer scope.release()

	queue := e.session.queue

	// 1. allocate
	for i, spec := range plan.Buffers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := scope.allocate(spec); err != nil {
			return wrapCause(ErrBufferAllocation, err, "buffer %d (%d bytes, %s)", i, spec.Bytes(), spec.Flags)
		}
	}

	// 2. write inputs
	for _, t := range plan.Writes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := queue.WriteBuffer(scope.buffers[t.Buffer], t.Data); err != nil {
			return wrapCause(ErrBufferWrite, err, "buffer %d", t.Buffer)
		}
	}
	if len(plan.Writes) > 0 {
		if err := queue.Finish(); err != nil {
			return wrapCause(ErrBufferWrite, err, "waiting for writes")
		}
	}

	// 3. bind arguments
	for i, a := range plan.Args {
		var err error
		switch a.Kind {
		case ArgBuffer:
			err = kernel.SetArgBuffer(i, scope.buffers[a.Buffer])
		case ArgInt32:
			err = kernel.SetArgInt32(i, a.Int32)
		case ArgFloat32:
			err = kernel.SetArgFloat32(i, a.Float32)
		default:
			err = fmt.Errorf("unsupported argument kind %s", a.Kind)
		}
		if err != nil {
			return wrapCause(ErrArgumentBind, err, "kernel %q argument %d (%s)", plan.Kernel, i, a.Kind)
		}
	}

	// 4. launch
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := queue.Launch(kernel, plan.Global); err != nil {
		return wrapCause(ErrKernelLaunch, err, "kernel %q global %v", plan.Kernel, plan.Global)
	}
	if err := queue.Finish(); err != nil {
		return wrapCause(ErrKernelLaunch, err, "waiting for kernel %q", plan.Kernel)
	}

	// 5. read outputs
	for _, t := range plan.Reads {
		if err := queue.ReadBuffer(scope.buffers[t.Buffer], t.Data); err != nil {
			return wrapCause(ErrBufferRead, err, "buffer %d", t.Buffer)
		}
		if err := queue.Finish(); err != nil {
			return wrapCause(ErrBufferRead, err, "waiting for read of buffer %d", t.Buffer)
		}
	}

	e.logger.Debug("Kernel run completed",
		zap.String("kernel", plan.Kernel),
		zap.Ints("global", plan.Global),
		zap.Int("buffers", len(plan.Buffers)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// bufferScope owns the buffers of one Run call.
type bufferScope struct {
	context Context
	backend string
	buffers []Buffer
}

func newBufferScope(ctx Context, backend string) *bufferScope {
	return &bufferScope{context: ctx, backend: backend}
}

func (s *bufferScope) allocate(spec BufferSpec) error {
	buf, err := s.context.CreateBuffer(spec.Flags, spec.Bytes())
	if err != nil {
		return err
	}
	metrics.BufferAllocations.WithLabelValues(s.backend).Inc()
	s.buffers = append(s.buffers, buf)
	return nil
}

func (s *bufferScope) release() {
	for i := len(s.buffers) - 1; i >= 0; i-- {
		s.buffers[i].Release()
		metrics.BufferReleases.WithLabelValues(s.backend).Inc()
	}
	s.buffers = nil
}
