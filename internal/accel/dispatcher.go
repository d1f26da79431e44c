package accel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fxnlabs/accel-templates/internal/metrics"
	"go.uber.org/zap"
)

// OpCode selects an entry of an operation table.
type OpCode int

// Descriptor is the static description of one operation: which kernel it
// runs, how many buffers and arguments it uses, its problem dimension and
// which buffers are written from and read back to the host. Plan resolves a
// request into the concrete invocation.
type Descriptor[R any] struct {
	Name             string
	Kernel           string
	BufferCount      int
	ArgumentCount    int
	ProblemDimension int
	Inputs           []int
	Outputs          []int
	Plan             func(req R) (Plan, error)
}

func (d Descriptor[R]) check(p Plan) error {
	if p.Kernel != d.Kernel {
		return fmt.Errorf("%w: %s planned kernel %q, descriptor declares %q", ErrInvalidRequest, d.Name, p.Kernel, d.Kernel)
	}
	if len(p.Buffers) != d.BufferCount {
		return fmt.Errorf("%w: %s planned %d buffers, descriptor declares %d", ErrInvalidRequest, d.Name, len(p.Buffers), d.BufferCount)
	}
	if len(p.Args) != d.ArgumentCount {
		return fmt.Errorf("%w: %s planned %d arguments, descriptor declares %d", ErrInvalidRequest, d.Name, len(p.Args), d.ArgumentCount)
	}
	if len(p.Global) != d.ProblemDimension {
		return fmt.Errorf("%w: %s planned %d-D launch, descriptor declares %d-D", ErrInvalidRequest, d.Name, len(p.Global), d.ProblemDimension)
	}
	if !sameBuffers(p.Writes, d.Inputs) {
		return fmt.Errorf("%w: %s writes do not match input buffers %v", ErrInvalidRequest, d.Name, d.Inputs)
	}
	if !sameBuffers(p.Reads, d.Outputs) {
		return fmt.Errorf("%w: %s reads do not match output buffers %v", ErrInvalidRequest, d.Name, d.Outputs)
	}
	return nil
}

func sameBuffers(ts []Transfer, indices []int) bool {
	if len(ts) != len(indices) {
		return false
	}
	for i, t := range ts {
		if t.Buffer != indices[i] {
			return false
		}
	}
	return true
}

// Dispatcher drives the engine from a static operation table.
type Dispatcher[R any] struct {
	engine    *Engine
	subsystem string
	table     map[OpCode]Descriptor[R]
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher for one subsystem's operation table.
func NewDispatcher[R any](engine *Engine, subsystem string, table map[OpCode]Descriptor[R], logger *zap.Logger) *Dispatcher[R] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher[R]{
		engine:    engine,
		subsystem: subsystem,
		table:     table,
		logger:    logger,
	}
}

// KernelNames lists the entry points the table needs, ordered by op code and
// without duplicates.
func KernelNames[R any](table map[OpCode]Descriptor[R]) []string {
	ops := make([]int, 0, len(table))
	for op := range table {
		ops = append(ops, int(op))
	}
	sort.Ints(ops)

	seen := make(map[string]struct{}, len(ops))
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		name := table[OpCode(op)].Kernel
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Lookup returns the descriptor registered for op.
func (d *Dispatcher[R]) Lookup(op OpCode) (Descriptor[R], error) {
	desc, ok := d.table[op]
	if !ok {
		return Descriptor[R]{}, fmt.Errorf("%w: %s operation code %d", ErrUnknownOperation, d.subsystem, int(op))
	}
	return desc, nil
}

// Dispatch runs operation op for req. Unknown op codes fail before any
// runtime resource is touched.
func (d *Dispatcher[R]) Dispatch(ctx context.Context, op OpCode, req R) error {
	desc, err := d.Lookup(op)
	if err != nil {
		d.fail("unknown", err)
		return err
	}

	start := time.Now()
	err = d.run(ctx, desc, req)
	metrics.OperationDuration.WithLabelValues(d.subsystem, desc.Name).Observe(float64(time.Since(start)) / float64(time.Millisecond))
	if err != nil {
		d.fail(desc.Name, err)
		return err
	}

	metrics.OperationsTotal.WithLabelValues(d.subsystem, desc.Name, Category(nil)).Inc()
	d.logger.Debug("Operation completed",
		zap.String("operation", desc.Name),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (d *Dispatcher[R]) run(ctx context.Context, desc Descriptor[R], req R) error {
	plan, err := desc.Plan(req)
	if err != nil {
		return err
	}
	if err := desc.check(plan); err != nil {
		return err
	}
	return d.engine.Run(ctx, plan)
}

func (d *Dispatcher[R]) fail(operation string, err error) {
	category := Category(err)
	metrics.OperationsTotal.WithLabelValues(d.subsystem, operation, category).Inc()
	d.logger.Error("Operation failed",
		zap.String("operation", operation),
		zap.String("category", category),
		zap.Error(err))
}
