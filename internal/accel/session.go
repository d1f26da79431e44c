package accel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fxnlabs/accel-templates/internal/metrics"
	"go.uber.org/zap"
)

// SourceLoader fetches kernel source text from a location such as a file
// path.
type SourceLoader interface {
	Load(ctx context.Context, location string) (string, error)
}

// Session is the long-lived accelerator state shared by every operation call:
// one context and one command queue bound to the selected device, plus the
// kernels built for it.
type Session struct {
	runtime Runtime
	logger  *zap.Logger

	devices []DeviceInfo
	device  Device
	info    DeviceInfo
	context Context
	queue   Queue

	mu      sync.Mutex
	kernels map[string]*kernelSlot
	closed  bool
}

// kernelSlot serializes argument binding and launch of one kernel.
type kernelSlot struct {
	mu     sync.Mutex
	kernel Kernel
}

// NewSession enumerates the runtime's devices, selects one by policy and
// creates the context and command queue for it.
func NewSession(rt Runtime, policy SelectionPolicy, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("backend", rt.Name()))

	devices, err := rt.Devices()
	if err != nil {
		log.Error("Device enumeration failed", zap.Error(err))
		if errors.Is(err, ErrDeviceEnumeration) {
			return nil, err
		}
		return nil, wrapCause(ErrDeviceEnumeration, err, "querying %s devices", rt.Name())
	}
	if len(devices) == 0 {
		log.Error("Device enumeration failed", zap.Error(ErrNoDevices))
		return nil, ErrNoDevices
	}
	if len(devices) > MaxDevices {
		log.Warn("Ignoring devices beyond enumeration limit",
			zap.Int("found", len(devices)),
			zap.Int("limit", MaxDevices))
		devices = devices[:MaxDevices]
	}
	metrics.DevicesFound.WithLabelValues(rt.Name()).Set(float64(len(devices)))

	infos := make([]DeviceInfo, len(devices))
	for i, d := range devices {
		infos[i] = d.Info()
		log.Info("Found compute device", deviceFields(i, infos[i])...)
	}

	idx, err := policy.SelectDevice(infos)
	if err != nil {
		log.Error("Device selection failed",
			zap.String("mode", string(policy.Mode)),
			zap.Int("index", policy.Index),
			zap.Error(err))
		return nil, err
	}
	device := devices[idx]

	ctx, err := rt.CreateContext(device)
	if err != nil {
		log.Error("Create device context failed", zap.String("device", infos[idx].Name), zap.Error(err))
		return nil, wrapCause(ErrContextCreation, err, "device %q", infos[idx].Name)
	}

	queue, err := ctx.CreateQueue(device)
	if err != nil {
		ctx.Release()
		log.Error("Create command queue failed", zap.String("device", infos[idx].Name), zap.Error(err))
		return nil, wrapCause(ErrQueueCreation, err, "device %q", infos[idx].Name)
	}

	log.Info("Created device context and command queue",
		zap.Int("index", idx),
		zap.String("device", infos[idx].Name),
		zap.String("type", string(infos[idx].Type)))

	return &Session{
		runtime: rt,
		logger:  log,
		devices: infos,
		device:  device,
		info:    infos[idx],
		context: ctx,
		queue:   queue,
		kernels: make(map[string]*kernelSlot),
	}, nil
}

// Backend returns the name of the runtime the session was created on.
func (s *Session) Backend() string {
	return s.runtime.Name()
}

// Device returns the attributes of the selected device.
func (s *Session) Device() DeviceInfo {
	return s.info
}

// Devices returns every enumerated device.
func (s *Session) Devices() []DeviceInfo {
	out := make([]DeviceInfo, len(s.devices))
	copy(out, s.devices)
	return out
}

// LoadKernels fetches source text through loader and builds the named entry
// points from it.
func (s *Session) LoadKernels(ctx context.Context, loader SourceLoader, location string, names []string) error {
	src, err := loader.Load(ctx, location)
	if err != nil {
		s.logger.Error("Load source program failed", zap.String("location", location), zap.Error(err))
		if errors.Is(err, ErrSourceLoad) {
			return err
		}
		return wrapCause(ErrSourceLoad, err, "%s", location)
	}
	if strings.TrimSpace(src) == "" {
		s.logger.Error("Load source program failed", zap.String("location", location), zap.String("reason", "empty source"))
		return wrap(ErrSourceLoad, "%s: empty source", location)
	}
	s.logger.Debug("Loaded source program", zap.String("location", location), zap.Int("bytes", len(src)))
	return s.BuildKernels(src, names)
}

// BuildKernels compiles source and creates one kernel per entry point name.
// The program object is released before returning; on failure every kernel
// created by this call is released as well.
func (s *Session) BuildKernels(source string, names []string) error {
	if len(names) == 0 {
		return wrap(ErrKernelCreation, "no entry points requested")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			return wrap(ErrKernelCreation, "empty entry point name")
		}
		if _, dup := seen[name]; dup {
			return wrap(ErrKernelCreation, "entry point %q requested twice", name)
		}
		if _, exists := s.kernels[name]; exists {
			return wrap(ErrKernelCreation, "entry point %q already built", name)
		}
		seen[name] = struct{}{}
	}

	program, err := s.context.BuildProgram(source)
	if err != nil {
		metrics.ProgramBuildFailures.WithLabelValues(s.runtime.Name()).Inc()
		var buildErr *BuildError
		if errors.As(err, &buildErr) {
			s.logger.Error("Source code build failed", zap.String("build_log", buildErr.Log))
			return err
		}
		s.logger.Error("Source code build failed", zap.Error(err))
		return wrapCause(ErrCompile, err, "building program")
	}
	defer program.Release()

	created := make([]Kernel, 0, len(names))
	for _, name := range names {
		k, err := program.CreateKernel(name)
		if err != nil {
			for _, c := range created {
				c.Release()
			}
			s.logger.Error("Kernel object creation failed", zap.String("kernel", name), zap.Error(err))
			return wrapCause(ErrKernelCreation, err, "entry point %q", name)
		}
		created = append(created, k)
	}

	for _, k := range created {
		s.kernels[k.Name()] = &kernelSlot{kernel: k}
	}
	s.logger.Info("Created kernel objects", zap.Strings("kernels", names))
	return nil
}

// Kernels returns the names of every kernel built in the session.
func (s *Session) Kernels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.kernels))
	for name := range s.kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Session) slot(name string) (*kernelSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	slot, ok := s.kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: kernel %q was not built in this session", ErrInvalidRequest, name)
	}
	return slot, nil
}

// Close releases the kernels, the command queue and the context. It waits for
// in-flight operations holding a kernel and is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for name, slot := range s.kernels {
		slot.mu.Lock()
		slot.kernel.Release()
		slot.kernel = nil
		slot.mu.Unlock()
		delete(s.kernels, name)
	}
	s.queue.Release()
	s.context.Release()
	s.logger.Info("Released device context")
	return nil
}
