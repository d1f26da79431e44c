package accel

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
)

// HostFunc executes a kernel on the host over the whole global range.
type HostFunc func(args *HostArgs, global []int) error

// HostKernel is the host implementation of one kernel entry point.
type HostKernel struct {
	Name string
	Run  HostFunc
}

// HostArgs gives a host kernel typed access to its bound arguments.
type HostArgs struct {
	kernel string
	values []hostArg
}

func (a *HostArgs) Len() int {
	return len(a.values)
}

// Buffer returns the backing memory of the buffer bound at index.
func (a *HostArgs) Buffer(index int) ([]float32, error) {
	v, err := a.at(index, ArgBuffer)
	if err != nil {
		return nil, err
	}
	return v.buf.data, nil
}

func (a *HostArgs) Int32(index int) (int32, error) {
	v, err := a.at(index, ArgInt32)
	if err != nil {
		return 0, err
	}
	return v.i32, nil
}

func (a *HostArgs) Float32(index int) (float32, error) {
	v, err := a.at(index, ArgFloat32)
	if err != nil {
		return 0, err
	}
	return v.f32, nil
}

func (a *HostArgs) at(index int, kind ArgKind) (hostArg, error) {
	if index < 0 || index >= len(a.values) {
		return hostArg{}, fmt.Errorf("kernel %q has no argument %d", a.kernel, index)
	}
	v := a.values[index]
	if v.kind != kind {
		return hostArg{}, fmt.Errorf("kernel %q argument %d is %s, not %s", a.kernel, index, v.kind, kind)
	}
	return v, nil
}

// CPUStats counts the objects a CPURuntime has handed out and taken back.
type CPUStats struct {
	ContextsCreated  int64
	ContextsReleased int64
	BuffersAllocated int64
	BuffersReleased  int64
	KernelsCreated   int64
	KernelsReleased  int64
	ProgramsBuilt    int64
	ProgramsReleased int64
	Launches         int64
}

type cpuCounters struct {
	contextsCreated  atomic.Int64
	contextsReleased atomic.Int64
	buffersAllocated atomic.Int64
	buffersReleased  atomic.Int64
	kernelsCreated   atomic.Int64
	kernelsReleased  atomic.Int64
	programsBuilt    atomic.Int64
	programsReleased atomic.Int64
	launches         atomic.Int64
}

// CPURuntime emulates an accelerator runtime on the host. Kernel source is
// parsed for __kernel declarations; each declared entry point runs the
// registered HostKernel of the same name.
type CPURuntime struct {
	kernels  map[string]HostFunc
	device   *cpuDevice
	counters cpuCounters
}

// NewCPURuntime creates a host runtime serving the given kernels.
func NewCPURuntime(kernels ...HostKernel) *CPURuntime {
	r := &CPURuntime{
		kernels: make(map[string]HostFunc, len(kernels)),
		device: &cpuDevice{info: DeviceInfo{
			Name:                  fmt.Sprintf("Host CPU (%s)", runtime.GOARCH),
			Vendor:                "Go " + runtime.Version(),
			Version:               "host 1.0",
			Type:                  DeviceTypeCPU,
			MaxComputeUnits:       runtime.NumCPU(),
			MaxWorkGroupSize:      1024,
			MaxWorkItemDimensions: 3,
			MaxConstantBufferSize: 64 * 1024,
			GlobalMemSize:         8 * 1024 * 1024 * 1024, // 8GB
			ImageSupport:          false,
			MaxSamplers:           0,
		}},
	}
	r.Register(kernels...)
	return r
}

// Register adds host kernels. A later registration replaces an earlier one
// with the same name.
func (r *CPURuntime) Register(kernels ...HostKernel) {
	for _, k := range kernels {
		r.kernels[k.Name] = k.Run
	}
}

func (r *CPURuntime) Name() string {
	return string(BackendCPU)
}

func (r *CPURuntime) Devices() ([]Device, error) {
	return []Device{r.device}, nil
}

func (r *CPURuntime) CreateContext(device Device) (Context, error) {
	if device != r.device {
		return nil, fmt.Errorf("device %s does not belong to the host runtime", device.Info())
	}
	r.counters.contextsCreated.Add(1)
	return &cpuContext{runtime: r}, nil
}

// Stats returns a snapshot of the object counters.
func (r *CPURuntime) Stats() CPUStats {
	c := &r.counters
	return CPUStats{
		ContextsCreated:  c.contextsCreated.Load(),
		ContextsReleased: c.contextsReleased.Load(),
		BuffersAllocated: c.buffersAllocated.Load(),
		BuffersReleased:  c.buffersReleased.Load(),
		KernelsCreated:   c.kernelsCreated.Load(),
		KernelsReleased:  c.kernelsReleased.Load(),
		ProgramsBuilt:    c.programsBuilt.Load(),
		ProgramsReleased: c.programsReleased.Load(),
		Launches:         c.launches.Load(),
	}
}

type cpuDevice struct {
	info DeviceInfo
}

func (d *cpuDevice) Info() DeviceInfo {
	return d.info
}

type cpuContext struct {
	runtime  *CPURuntime
	released atomic.Bool
}

func (c *cpuContext) CreateQueue(device Device) (Queue, error) {
	if c.released.Load() {
		return nil, fmt.Errorf("context released")
	}
	if device != c.runtime.device {
		return nil, fmt.Errorf("device %s is not part of this context", device.Info())
	}
	return &cpuQueue{runtime: c.runtime}, nil
}

var kernelDecl = regexp.MustCompile(`__kernel\s+void\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)

func (c *cpuContext) BuildProgram(source string) (Program, error) {
	if c.released.Load() {
		return nil, fmt.Errorf("context released")
	}
	if log := checkBraces(source); log != "" {
		return nil, &BuildError{Log: log}
	}

	decls := kernelDecl.FindAllStringSubmatch(source, -1)
	if len(decls) == 0 {
		return nil, &BuildError{Log: "warning: no __kernel functions found in program source"}
	}

	params := make(map[string]int, len(decls))
	for _, d := range decls {
		name := d[1]
		if _, dup := params[name]; dup {
			return nil, &BuildError{Log: fmt.Sprintf("error: redefinition of '%s'", name)}
		}
		params[name] = countParams(d[2])
	}

	c.runtime.counters.programsBuilt.Add(1)
	return &cpuProgram{runtime: c.runtime, params: params}, nil
}

func checkBraces(source string) string {
	depth := 0
	line := 1
	for _, ch := range source {
		switch ch {
		case '\n':
			line++
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return fmt.Sprintf("<source>:%d: error: extraneous closing brace ('}')", line)
			}
		}
	}
	if depth > 0 {
		return fmt.Sprintf("<source>:%d: error: expected '}'", line)
	}
	return ""
}

func countParams(list string) int {
	list = strings.TrimSpace(list)
	if list == "" || list == "void" {
		return 0
	}
	return strings.Count(list, ",") + 1
}

func (c *cpuContext) CreateBuffer(flags MemFlags, size int) (Buffer, error) {
	if c.released.Load() {
		return nil, fmt.Errorf("context released")
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", size)
	}
	if size%float32Size != 0 {
		return nil, fmt.Errorf("buffer size %d is not a multiple of %d", size, float32Size)
	}
	c.runtime.counters.buffersAllocated.Add(1)
	return &cpuBuffer{
		runtime: c.runtime,
		flags:   flags,
		data:    make([]float32, size/float32Size),
	}, nil
}

func (c *cpuContext) Release() {
	if c.released.CompareAndSwap(false, true) {
		c.runtime.counters.contextsReleased.Add(1)
	}
}

type cpuProgram struct {
	runtime  *CPURuntime
	params   map[string]int
	released atomic.Bool
}

func (p *cpuProgram) CreateKernel(name string) (Kernel, error) {
	if p.released.Load() {
		return nil, fmt.Errorf("program released")
	}
	n, ok := p.params[name]
	if !ok {
		return nil, fmt.Errorf("no kernel named %q in program", name)
	}
	run, ok := p.runtime.kernels[name]
	if !ok {
		return nil, fmt.Errorf("kernel %q has no host implementation", name)
	}
	p.runtime.counters.kernelsCreated.Add(1)
	return &cpuKernel{
		runtime: p.runtime,
		name:    name,
		run:     run,
		args:    make([]hostArg, n),
	}, nil
}

func (p *cpuProgram) Release() {
	if p.released.CompareAndSwap(false, true) {
		p.runtime.counters.programsReleased.Add(1)
	}
}

type hostArg struct {
	set  bool
	kind ArgKind
	buf  *cpuBuffer
	i32  int32
	f32  float32
}

type cpuKernel struct {
	runtime  *CPURuntime
	name     string
	run      HostFunc
	args     []hostArg
	released atomic.Bool
}

func (k *cpuKernel) Name() string { return k.name }
func (k *cpuKernel) NumArgs() int { return len(k.args) }

func (k *cpuKernel) SetArgBuffer(index int, buf Buffer) error {
	b, ok := buf.(*cpuBuffer)
	if !ok {
		return fmt.Errorf("buffer %T was not allocated by the host runtime", buf)
	}
	return k.set(index, hostArg{kind: ArgBuffer, buf: b})
}

func (k *cpuKernel) SetArgInt32(index int, value int32) error {
	return k.set(index, hostArg{kind: ArgInt32, i32: value})
}

func (k *cpuKernel) SetArgFloat32(index int, value float32) error {
	return k.set(index, hostArg{kind: ArgFloat32, f32: value})
}

func (k *cpuKernel) set(index int, v hostArg) error {
	if k.released.Load() {
		return fmt.Errorf("kernel %q released", k.name)
	}
	if index < 0 || index >= len(k.args) {
		return fmt.Errorf("kernel %q has %d arguments, index %d out of range", k.name, len(k.args), index)
	}
	v.set = true
	k.args[index] = v
	return nil
}

func (k *cpuKernel) Release() {
	if k.released.CompareAndSwap(false, true) {
		k.runtime.counters.kernelsReleased.Add(1)
	}
}

type cpuBuffer struct {
	runtime  *CPURuntime
	flags    MemFlags
	data     []float32
	released atomic.Bool
}

func (b *cpuBuffer) Size() int       { return len(b.data) * float32Size }
func (b *cpuBuffer) Flags() MemFlags { return b.flags }

func (b *cpuBuffer) Release() {
	if b.released.CompareAndSwap(false, true) {
		b.runtime.counters.buffersReleased.Add(1)
	}
}

// cpuQueue executes every command synchronously in submission order.
type cpuQueue struct {
	runtime  *CPURuntime
	mu       sync.Mutex
	released bool
}

func (q *cpuQueue) WriteBuffer(buf Buffer, data []float32) error {
	b, err := q.buffer(buf)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(data) > len(b.data) {
		return fmt.Errorf("write of %d bytes exceeds buffer size %d", len(data)*float32Size, b.Size())
	}
	copy(b.data, data)
	return nil
}

func (q *cpuQueue) ReadBuffer(buf Buffer, dst []float32) error {
	b, err := q.buffer(buf)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(dst) > len(b.data) {
		return fmt.Errorf("read of %d bytes exceeds buffer size %d", len(dst)*float32Size, b.Size())
	}
	copy(dst, b.data)
	return nil
}

func (q *cpuQueue) buffer(buf Buffer) (*cpuBuffer, error) {
	b, ok := buf.(*cpuBuffer)
	if !ok {
		return nil, fmt.Errorf("buffer %T was not allocated by the host runtime", buf)
	}
	if b.released.Load() {
		return nil, fmt.Errorf("buffer released")
	}
	return b, nil
}

func (q *cpuQueue) Launch(kernel Kernel, global []int) (err error) {
	k, ok := kernel.(*cpuKernel)
	if !ok {
		return fmt.Errorf("kernel %T was not created by the host runtime", kernel)
	}
	if k.released.Load() {
		return fmt.Errorf("kernel %q released", k.name)
	}
	if len(global) < 1 || len(global) > 3 {
		return fmt.Errorf("invalid work dimension %d", len(global))
	}

	args := &HostArgs{kernel: k.name, values: make([]hostArg, len(k.args))}
	for i, a := range k.args {
		if !a.set {
			return fmt.Errorf("kernel %q argument %d is not set", k.name, i)
		}
		if a.kind == ArgBuffer && a.buf.released.Load() {
			return fmt.Errorf("kernel %q argument %d references a released buffer", k.name, i)
		}
		args.values[i] = a
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return fmt.Errorf("queue released")
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kernel %q aborted: %v", k.name, r)
		}
	}()
	q.runtime.counters.launches.Add(1)
	return k.run(args, append([]int(nil), global...))
}

func (q *cpuQueue) Finish() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return fmt.Errorf("queue released")
	}
	return nil
}

func (q *cpuQueue) Release() {
	q.mu.Lock()
	q.released = true
	q.mu.Unlock()
}
