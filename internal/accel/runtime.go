package accel

// Runtime is the boundary to an accelerator compute API.
//
// Implementations wrap a native driver (OpenCL) or emulate one on the host.
// Every object handed out by a Runtime must be released exactly once by its
// owner; the Session and Engine in this package take care of that.
type Runtime interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Devices enumerates the compute devices visible to the runtime.
	Devices() ([]Device, error)

	// CreateContext creates an execution context bound to a single device.
	CreateContext(device Device) (Context, error)
}

// Device is an opaque handle to a compute unit.
type Device interface {
	Info() DeviceInfo
}

// Context owns the programs, kernels and buffers created against it.
type Context interface {
	// CreateQueue creates an in-order command queue for device.
	CreateQueue(device Device) (Queue, error)

	// BuildProgram compiles source for the context's device. A compile
	// failure is reported as a *BuildError carrying the build log.
	BuildProgram(source string) (Program, error)

	// CreateBuffer allocates size bytes of device memory.
	CreateBuffer(flags MemFlags, size int) (Buffer, error)

	Release()
}

// Program is compiled source text.
type Program interface {
	CreateKernel(name string) (Kernel, error)
	Release()
}

// Kernel is a named entry point of a built program with ordered argument
// slots. Argument state is shared by every caller of the kernel.
type Kernel interface {
	Name() string
	NumArgs() int
	SetArgBuffer(index int, buf Buffer) error
	SetArgInt32(index int, value int32) error
	SetArgFloat32(index int, value float32) error
	Release()
}

// Buffer is device-resident memory of a fixed byte size.
type Buffer interface {
	Size() int
	Flags() MemFlags
	Release()
}

// Queue submits transfers and launches in order. WriteBuffer and ReadBuffer
// block until the copy completes; Launch only enqueues and must be followed by
// Finish.
type Queue interface {
	WriteBuffer(buf Buffer, data []float32) error
	ReadBuffer(buf Buffer, dst []float32) error
	Launch(kernel Kernel, global []int) error
	Finish() error
	Release()
}
