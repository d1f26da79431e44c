package accel

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// NewRuntime creates the runtime named by backend. The host kernels are
// registered with the CPU runtime. When fallback is set and the requested
// backend cannot be brought up, the CPU runtime is returned instead.
func NewRuntime(backend string, fallback bool, logger *zap.Logger, kernels ...HostKernel) (Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch b := NormalizeBackend(backend); b {
	case BackendCPU:
		logger.Info("Using host CPU runtime")
		return NewCPURuntime(kernels...), nil
	case BackendOpenCL:
		rt, err := NewOpenCLRuntime(logger)
		if err == nil {
			logger.Info("Using OpenCL runtime")
			return rt, nil
		}
		if !fallback {
			return nil, err
		}
		logger.Warn("OpenCL runtime unavailable, falling back to host CPU runtime", zap.Error(err))
		return NewCPURuntime(kernels...), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownBackend, backend, SupportedBackends())
	}
}

// OpenSession creates a session on rt, falling back to a host runtime session
// when the device layer of an accelerator backend is unusable and fallback is
// set.
func OpenSession(rt Runtime, policy SelectionPolicy, fallback bool, logger *zap.Logger, kernels ...HostKernel) (*Session, error) {
	session, err := NewSession(rt, policy, logger)
	if err == nil || !fallback || rt.Name() == string(BackendCPU) {
		return session, err
	}
	if !errors.Is(err, ErrDeviceEnumeration) && !errors.Is(err, ErrBackendUnavailable) {
		return nil, err
	}
	if logger != nil {
		logger.Warn("No usable accelerator device, falling back to host CPU runtime", zap.Error(err))
	}
	return NewSession(NewCPURuntime(kernels...), DefaultSelectionPolicy(), logger)
}
