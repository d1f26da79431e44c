package accel

import (
	"errors"
	"fmt"
	"strings"
)

// Failure categories. Every error returned by this package matches exactly one
// of them through errors.Is.
var (
	ErrDeviceEnumeration     = errors.New("device enumeration failed")
	ErrNoDevices             = fmt.Errorf("%w: no compute devices found", ErrDeviceEnumeration)
	ErrDeviceIndexOutOfRange = errors.New("device index out of range")
	ErrContextCreation       = errors.New("context creation failed")
	ErrQueueCreation         = errors.New("command queue creation failed")
	ErrSourceLoad            = errors.New("kernel source load failed")
	ErrCompile               = errors.New("kernel program build failed")
	ErrKernelCreation        = errors.New("kernel creation failed")
	ErrUnknownOperation      = errors.New("unknown operation")
	ErrInvalidRequest        = errors.New("invalid operation request")
	ErrBufferAllocation      = errors.New("buffer allocation failed")
	ErrBufferWrite           = errors.New("buffer write failed")
	ErrArgumentBind          = errors.New("kernel argument bind failed")
	ErrKernelLaunch          = errors.New("kernel launch failed")
	ErrBufferRead            = errors.New("buffer read failed")
	ErrSessionClosed         = errors.New("session closed")

	// ErrUnknownBackend is returned when the name does not match a known backend.
	ErrUnknownBackend = errors.New("unknown runtime backend")
	// ErrBackendUnavailable indicates the backend is not available in this build.
	ErrBackendUnavailable = errors.New("runtime backend unavailable")
)

// BuildError carries the compiler log of a failed program build.
type BuildError struct {
	Log string
	Err error
}

func (e *BuildError) Error() string {
	log := strings.TrimSpace(e.Log)
	if log == "" {
		log = "no build log"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v\n%s", ErrCompile, e.Err, log)
	}
	return fmt.Sprintf("%s\n%s", ErrCompile, log)
}

func (e *BuildError) Is(target error) bool {
	return target == ErrCompile
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// wrap attaches a failure category to a runtime cause.
func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func wrapCause(kind error, cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", kind, fmt.Sprintf(format, args...), cause)
}

var categories = []struct {
	err  error
	name string
}{
	{ErrNoDevices, "no_devices"},
	{ErrDeviceEnumeration, "device_enumeration"},
	{ErrDeviceIndexOutOfRange, "device_selection"},
	{ErrContextCreation, "context_creation"},
	{ErrQueueCreation, "queue_creation"},
	{ErrSourceLoad, "source_load"},
	{ErrCompile, "compile"},
	{ErrKernelCreation, "kernel_creation"},
	{ErrUnknownOperation, "unknown_operation"},
	{ErrInvalidRequest, "invalid_request"},
	{ErrBufferAllocation, "buffer_allocation"},
	{ErrBufferWrite, "buffer_write"},
	{ErrArgumentBind, "argument_bind"},
	{ErrKernelLaunch, "kernel_launch"},
	{ErrBufferRead, "buffer_read"},
	{ErrSessionClosed, "session_closed"},
	{ErrUnknownBackend, "unknown_backend"},
	{ErrBackendUnavailable, "backend_unavailable"},
}

// Category returns a short label for the failure category of err, "ok" for a
// nil error and "other" when err matches none of this package's sentinels.
func Category(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	return "other"
}
