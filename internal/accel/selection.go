package accel

import (
	"fmt"
	"strings"
)

// SelectionMode decides which enumerated device a session binds to.
type SelectionMode string

const (
	// SelectFirstGPU picks the first GPU and falls back to the first device.
	SelectFirstGPU SelectionMode = "first-gpu"
	// SelectFirst picks the first enumerated device.
	SelectFirst SelectionMode = "first"
	// SelectIndex picks the device at SelectionPolicy.Index.
	SelectIndex SelectionMode = "index"
)

// SelectionPolicy is the injected device-selection configuration.
type SelectionPolicy struct {
	Mode  SelectionMode `yaml:"mode"`
	Index int           `yaml:"index"`
}

// DefaultSelectionPolicy prefers a GPU.
func DefaultSelectionPolicy() SelectionPolicy {
	return SelectionPolicy{Mode: SelectFirstGPU}
}

// ParseSelectionMode maps user input to a SelectionMode.
func ParseSelectionMode(s string) (SelectionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first-gpu", "gpu":
		return SelectFirstGPU, nil
	case "first":
		return SelectFirst, nil
	case "index":
		return SelectIndex, nil
	default:
		return "", fmt.Errorf("unknown device selection mode %q", s)
	}
}

// SelectDevice returns the index into devices chosen by the policy.
func (p SelectionPolicy) SelectDevice(devices []DeviceInfo) (int, error) {
	if len(devices) == 0 {
		return -1, ErrNoDevices
	}

	switch p.Mode {
	case SelectFirstGPU, "":
		for i, d := range devices {
			if d.Type == DeviceTypeGPU {
				return i, nil
			}
		}
		return 0, nil
	case SelectFirst:
		return 0, nil
	case SelectIndex:
		if p.Index < 0 || p.Index >= len(devices) {
			return -1, fmt.Errorf("%w: index %d requested, %d device(s) available",
				ErrDeviceIndexOutOfRange, p.Index, len(devices))
		}
		return p.Index, nil
	default:
		return -1, fmt.Errorf("unknown device selection mode %q", p.Mode)
	}
}
