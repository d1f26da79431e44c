package accel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errDevice = errors.New("device error")

func scalePlan(in, out []float32) Plan {
	return Plan{
		Kernel: "k",
		Buffers: []BufferSpec{
			{Flags: MemReadWrite, Elements: len(in)},
			{Flags: MemReadWrite, Elements: len(out)},
		},
		Writes: []Transfer{{Buffer: 0, Data: in}},
		Args:   []Arg{BufferArg(0), BufferArg(1), Int32Arg(int32(len(in)))},
		Global: []int{len(in)},
		Reads:  []Transfer{{Buffer: 1, Data: out}},
	}
}

type engineFixture struct {
	session *Session
	ctx     *mockContext
	queue   *mockQueue
	kernel  *mockKernel
	buffers []*mockBuffer
}

func newEngineFixture(t *testing.T) *engineFixture {
	session, ctx, q, kern := mockSession(t, 3)
	return &engineFixture{
		session: session,
		ctx:     ctx,
		queue:   q,
		kernel:  kern,
		buffers: []*mockBuffer{
			{id: 0, size: 16, flags: MemReadWrite},
			{id: 1, size: 16, flags: MemReadWrite},
		},
	}
}

// expect programs a successful run up to the failAt step, which fails.
func (f *engineFixture) expect(failAt string) {
	b0, b1 := f.buffers[0], f.buffers[1]

	f.ctx.On("CreateBuffer", MemReadWrite, 16).Return(b0, nil).Once()
	b0.On("Release").Once()
	if failAt == "allocate" {
		f.ctx.On("CreateBuffer", MemReadWrite, 16).Return(nil, errDevice).Once()
		return
	}
	f.ctx.On("CreateBuffer", MemReadWrite, 16).Return(b1, nil).Once()
	b1.On("Release").Once()

	if failAt == "write" {
		f.queue.On("WriteBuffer", b0, mock.Anything).Return(errDevice).Once()
		return
	}
	f.queue.On("WriteBuffer", b0, mock.Anything).Return(nil).Once()
	f.queue.On("Finish").Return(nil)

	if failAt == "bind" {
		f.kernel.On("SetArgBuffer", 0, b0).Return(errDevice).Once()
		return
	}
	f.kernel.On("SetArgBuffer", 0, b0).Return(nil).Once()
	f.kernel.On("SetArgBuffer", 1, b1).Return(nil).Once()
	f.kernel.On("SetArgInt32", 2, int32(4)).Return(nil).Once()

	if failAt == "launch" {
		f.queue.On("Launch", f.kernel, []int{4}).Return(errDevice).Once()
		return
	}
	f.queue.On("Launch", f.kernel, []int{4}).Return(nil).Once()

	if failAt == "read" {
		f.queue.On("ReadBuffer", b1, mock.Anything).Return(errDevice).Once()
		return
	}
	f.queue.On("ReadBuffer", b1, mock.Anything).Return(nil).Once()
}

func (f *engineFixture) assertReleased(t *testing.T) {
	t.Helper()
	for _, b := range f.buffers {
		b.AssertExpectations(t)
	}
	f.ctx.AssertExpectations(t)
	f.queue.AssertExpectations(t)
	f.kernel.AssertExpectations(t)
}

func TestEngineRunReleasesBuffers(t *testing.T) {
	tests := []struct {
		failAt string
		want   error
	}{
		{failAt: "", want: nil},
		{failAt: "allocate", want: ErrBufferAllocation},
		{failAt: "write", want: ErrBufferWrite},
		{failAt: "bind", want: ErrArgumentBind},
		{failAt: "launch", want: ErrKernelLaunch},
		{failAt: "read", want: ErrBufferRead},
	}

	for _, tt := range tests {
		name := tt.failAt
		if name == "" {
			name = "success"
		}
		t.Run(name, func(t *testing.T) {
			f := newEngineFixture(t)
			f.expect(tt.failAt)

			engine := NewEngine(f.session, zap.NewNop())
			err := engine.Run(context.Background(), scalePlan(make([]float32, 4), make([]float32, 4)))
			if tt.want == nil {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.want)
				assert.ErrorIs(t, err, errDevice)
			}
			f.assertReleased(t)
		})
	}
}

func TestEngineRunRejectsBeforeAllocation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Plan)
		want   error
	}{
		{
			name:   "argument count mismatch",
			mutate: func(p *Plan) { p.Args = p.Args[:2] },
			want:   ErrArgumentBind,
		},
		{
			name:   "write size mismatch",
			mutate: func(p *Plan) { p.Writes[0].Data = make([]float32, 3) },
			want:   ErrBufferWrite,
		},
		{
			name:   "read size mismatch",
			mutate: func(p *Plan) { p.Reads[0].Data = make([]float32, 5) },
			want:   ErrBufferRead,
		},
		{
			name:   "argument references missing buffer",
			mutate: func(p *Plan) { p.Args[1] = BufferArg(7) },
			want:   ErrArgumentBind,
		},
		{
			name:   "zero global size",
			mutate: func(p *Plan) { p.Global = []int{0} },
			want:   ErrInvalidRequest,
		},
		{
			name:   "four dimensions",
			mutate: func(p *Plan) { p.Global = []int{1, 1, 1, 1} },
			want:   ErrInvalidRequest,
		},
		{
			name:   "unknown kernel",
			mutate: func(p *Plan) { p.Kernel = "missing" },
			want:   ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t)
			plan := scalePlan(make([]float32, 4), make([]float32, 4))
			tt.mutate(&plan)

			err := NewEngine(f.session, nil).Run(context.Background(), plan)
			assert.ErrorIs(t, err, tt.want)
			f.ctx.AssertNotCalled(t, "CreateBuffer", mock.Anything, mock.Anything)
		})
	}
}

func TestEngineRunCancelled(t *testing.T) {
	f := newEngineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewEngine(f.session, nil).Run(ctx, scalePlan(make([]float32, 4), make([]float32, 4)))
	assert.ErrorIs(t, err, context.Canceled)
	f.ctx.AssertNotCalled(t, "CreateBuffer", mock.Anything, mock.Anything)
}

func TestEngineRunAfterClose(t *testing.T) {
	f := newEngineFixture(t)
	f.kernel.On("Release").Once()
	f.queue.On("Release").Once()
	f.ctx.On("Release").Once()
	require.NoError(t, f.session.Close())

	err := NewEngine(f.session, nil).Run(context.Background(), scalePlan(make([]float32, 4), make([]float32, 4)))
	assert.ErrorIs(t, err, ErrSessionClosed)
}
