//go:build opencl
// +build opencl

package accel

import (
	"errors"
	"fmt"

	"github.com/jgillich/go-opencl/cl"
	"go.uber.org/zap"
)

// OpenCLRuntime drives the platform OpenCL driver.
type OpenCLRuntime struct {
	logger *zap.Logger
}

// NewOpenCLRuntime creates a runtime backed by the OpenCL ICD loader.
func NewOpenCLRuntime(logger *zap.Logger) (*OpenCLRuntime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenCLRuntime{logger: logger}, nil
}

func (r *OpenCLRuntime) Name() string {
	return string(BackendOpenCL)
}

// Devices lists the devices of every platform, GPUs first per platform as the
// driver reports them.
func (r *OpenCLRuntime) Devices() ([]Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, wrapCause(ErrDeviceEnumeration, err, "querying OpenCL platforms")
	}
	if len(platforms) == 0 {
		return nil, ErrNoDevices
	}

	var out []Device
	for _, p := range platforms {
		devices, err := p.GetDevices(cl.DeviceTypeAll)
		if err != nil {
			if errors.Is(err, cl.ErrDeviceNotFound) {
				continue
			}
			return nil, wrapCause(ErrDeviceEnumeration, err, "querying devices of platform %q", p.Name())
		}
		for _, d := range devices {
			out = append(out, &clDevice{device: d, info: clDeviceInfo(d)})
		}
	}
	return out, nil
}

func clDeviceInfo(d *cl.Device) DeviceInfo {
	return DeviceInfo{
		Name:                  d.Name(),
		Vendor:                d.Vendor(),
		Version:               d.Version(),
		Type:                  clDeviceType(d.Type()),
		MaxComputeUnits:       d.MaxComputeUnits(),
		MaxWorkGroupSize:      d.MaxWorkGroupSize(),
		MaxWorkItemDimensions: d.MaxWorkItemDimensions(),
		MaxConstantBufferSize: d.MaxConstantBufferSize(),
		GlobalMemSize:         d.GlobalMemSize(),
		ImageSupport:          d.ImageSupport(),
		MaxSamplers:           d.MaxSamplers(),
	}
}

func clDeviceType(t cl.DeviceType) DeviceType {
	switch {
	case t&cl.DeviceTypeGPU != 0:
		return DeviceTypeGPU
	case t&cl.DeviceTypeCPU != 0:
		return DeviceTypeCPU
	case t&cl.DeviceTypeAccelerator != 0:
		return DeviceTypeAccelerator
	case t&cl.DeviceTypeDefault != 0:
		return DeviceTypeDefault
	default:
		return DeviceTypeUnknown
	}
}

func (r *OpenCLRuntime) CreateContext(device Device) (Context, error) {
	d, ok := device.(*clDevice)
	if !ok {
		return nil, fmt.Errorf("device %s was not enumerated by OpenCL", device.Info())
	}
	ctx, err := cl.CreateContext([]*cl.Device{d.device})
	if err != nil {
		return nil, err
	}
	return &clContext{context: ctx, device: d}, nil
}

type clDevice struct {
	device *cl.Device
	info   DeviceInfo
}

func (d *clDevice) Info() DeviceInfo {
	return d.info
}

type clContext struct {
	context *cl.Context
	device  *clDevice
}

func (c *clContext) CreateQueue(device Device) (Queue, error) {
	d, ok := device.(*clDevice)
	if !ok {
		return nil, fmt.Errorf("device %s was not enumerated by OpenCL", device.Info())
	}
	q, err := c.context.CreateCommandQueue(d.device, 0)
	if err != nil {
		return nil, err
	}
	return &clQueue{queue: q}, nil
}

func (c *clContext) BuildProgram(source string) (Program, error) {
	program, err := c.context.CreateProgramWithSource([]string{source})
	if err != nil {
		return nil, err
	}
	if err := program.BuildProgram([]*cl.Device{c.device.device}, ""); err != nil {
		program.Release()
		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return nil, &BuildError{Log: string(buildErr)}
		}
		return nil, &BuildError{Err: err}
	}
	return &clProgram{program: program}, nil
}

func (c *clContext) CreateBuffer(flags MemFlags, size int) (Buffer, error) {
	var f cl.MemFlag
	switch flags {
	case MemReadOnly:
		f = cl.MemReadOnly
	case MemWriteOnly:
		f = cl.MemWriteOnly
	default:
		f = cl.MemReadWrite
	}
	mem, err := c.context.CreateEmptyBuffer(f, size)
	if err != nil {
		return nil, err
	}
	return &clBuffer{mem: mem, flags: flags, size: size}, nil
}

func (c *clContext) Release() {
	c.context.Release()
}

type clProgram struct {
	program *cl.Program
}

func (p *clProgram) CreateKernel(name string) (Kernel, error) {
	k, err := p.program.CreateKernel(name)
	if err != nil {
		return nil, err
	}
	n, err := k.NumArgs()
	if err != nil {
		k.Release()
		return nil, fmt.Errorf("querying arguments of %q: %w", name, err)
	}
	return &clKernel{kernel: k, name: name, numArgs: n}, nil
}

func (p *clProgram) Release() {
	p.program.Release()
}

type clKernel struct {
	kernel  *cl.Kernel
	name    string
	numArgs int
}

func (k *clKernel) Name() string { return k.name }
func (k *clKernel) NumArgs() int { return k.numArgs }

func (k *clKernel) SetArgBuffer(index int, buf Buffer) error {
	b, ok := buf.(*clBuffer)
	if !ok {
		return fmt.Errorf("buffer %T was not allocated by OpenCL", buf)
	}
	return k.kernel.SetArgBuffer(index, b.mem)
}

func (k *clKernel) SetArgInt32(index int, value int32) error {
	return k.kernel.SetArgInt32(index, value)
}

func (k *clKernel) SetArgFloat32(index int, value float32) error {
	return k.kernel.SetArgFloat32(index, value)
}

func (k *clKernel) Release() {
	k.kernel.Release()
}

type clBuffer struct {
	mem   *cl.MemObject
	flags MemFlags
	size  int
}

func (b *clBuffer) Size() int       { return b.size }
func (b *clBuffer) Flags() MemFlags { return b.flags }
func (b *clBuffer) Release()        { b.mem.Release() }

type clQueue struct {
	queue *cl.CommandQueue
}

func (q *clQueue) WriteBuffer(buf Buffer, data []float32) error {
	b, ok := buf.(*clBuffer)
	if !ok {
		return fmt.Errorf("buffer %T was not allocated by OpenCL", buf)
	}
	_, err := q.queue.EnqueueWriteBufferFloat32(b.mem, true, 0, data, nil)
	return err
}

func (q *clQueue) ReadBuffer(buf Buffer, dst []float32) error {
	b, ok := buf.(*clBuffer)
	if !ok {
		return fmt.Errorf("buffer %T was not allocated by OpenCL", buf)
	}
	_, err := q.queue.EnqueueReadBufferFloat32(b.mem, true, 0, dst, nil)
	return err
}

func (q *clQueue) Launch(kernel Kernel, global []int) error {
	k, ok := kernel.(*clKernel)
	if !ok {
		return fmt.Errorf("kernel %T was not created by OpenCL", kernel)
	}
	_, err := q.queue.EnqueueNDRangeKernel(k.kernel, nil, global, nil, nil)
	return err
}

func (q *clQueue) Finish() error {
	return q.queue.Finish()
}

func (q *clQueue) Release() {
	q.queue.Release()
}
