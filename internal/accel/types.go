package accel

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MaxDevices caps the number of devices a session enumerates.
const MaxDevices = 10

// DeviceType describes the class of a compute device.
type DeviceType string

const (
	DeviceTypeGPU         DeviceType = "GPU"
	DeviceTypeCPU         DeviceType = "CPU"
	DeviceTypeAccelerator DeviceType = "Accelerator"
	DeviceTypeDefault     DeviceType = "Default"
	DeviceTypeUnknown     DeviceType = "Unknown"
)

// DeviceInfo captures the attributes queried for every enumerated device.
type DeviceInfo struct {
	Name                  string     `json:"name"`
	Vendor                string     `json:"vendor"`
	Version               string     `json:"version"`
	Type                  DeviceType `json:"type"`
	MaxComputeUnits       int        `json:"maxComputeUnits"`
	MaxWorkGroupSize      int        `json:"maxWorkGroupSize"`
	MaxWorkItemDimensions int        `json:"maxWorkItemDimensions"`
	MaxConstantBufferSize int64      `json:"maxConstantBufferSize"` // in bytes
	GlobalMemSize         int64      `json:"globalMemSize"`         // in bytes
	ImageSupport          bool       `json:"imageSupport"`
	MaxSamplers           int        `json:"maxSamplers"`
}

// MarshalLogObject lets device attributes be logged as a single zap field.
func (d DeviceInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("name", d.Name)
	enc.AddString("vendor", d.Vendor)
	enc.AddString("version", d.Version)
	enc.AddString("type", string(d.Type))
	enc.AddInt("max_compute_units", d.MaxComputeUnits)
	enc.AddInt("max_work_group_size", d.MaxWorkGroupSize)
	enc.AddInt("max_work_item_dimensions", d.MaxWorkItemDimensions)
	enc.AddInt64("max_constant_buffer_kb", d.MaxConstantBufferSize/1024)
	enc.AddInt64("global_mem_mb", d.GlobalMemSize/(1024*1024))
	enc.AddBool("image_support", d.ImageSupport)
	enc.AddInt("max_samplers", d.MaxSamplers)
	return nil
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", d.Name, d.Vendor, d.Type)
}

// MemFlags is the access mode of a device buffer.
type MemFlags int

const (
	MemReadWrite MemFlags = iota
	MemReadOnly
	MemWriteOnly
)

func (f MemFlags) String() string {
	switch f {
	case MemReadWrite:
		return "read-write"
	case MemReadOnly:
		return "read-only"
	case MemWriteOnly:
		return "write-only"
	default:
		return fmt.Sprintf("MemFlags(%d)", int(f))
	}
}

// Backend identifies a runtime implementation.
type Backend string

const (
	BackendCPU    Backend = "cpu"
	BackendOpenCL Backend = "opencl"
)

// NormalizeBackend maps arbitrary user input to a canonical backend identifier.
func NormalizeBackend(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cpu", "host":
		return BackendCPU
	case "gpu", "opencl", "cl":
		return BackendOpenCL
	default:
		return Backend(name)
	}
}

// SupportedBackends returns the list of backends understood by NewRuntime.
func SupportedBackends() []Backend {
	return []Backend{BackendCPU, BackendOpenCL}
}

func deviceFields(i int, info DeviceInfo) []zap.Field {
	return []zap.Field{zap.Int("index", i), zap.Object("device", info)}
}
