//go:build !opencl
// +build !opencl

package accel

import (
	"fmt"

	"go.uber.org/zap"
)

// OpenCLRuntime is a stub type when the binary is built without OpenCL.
type OpenCLRuntime struct{}

// NewOpenCLRuntime reports that OpenCL support was not compiled in.
func NewOpenCLRuntime(logger *zap.Logger) (*OpenCLRuntime, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags opencl", ErrBackendUnavailable)
}

func (r *OpenCLRuntime) Name() string { return string(BackendOpenCL) }

func (r *OpenCLRuntime) Devices() ([]Device, error) {
	return nil, ErrBackendUnavailable
}

func (r *OpenCLRuntime) CreateContext(device Device) (Context, error) {
	return nil, ErrBackendUnavailable
}
