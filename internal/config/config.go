package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/fxnlabs/accel-templates/fixtures"
	"github.com/fxnlabs/accel-templates/internal/accel"
	"github.com/fxnlabs/accel-templates/internal/filter"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable the binaries read the
// configuration path from.
const EnvConfigPath = "ACCEL_CONFIG"

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
	} `yaml:"logger"`
	Runtime struct {
		Backend       string                `yaml:"backend"`
		FallbackToCPU bool                  `yaml:"fallbackToCPU"`
		Device        accel.SelectionPolicy `yaml:"device"`
	} `yaml:"runtime"`
	Filter struct {
		Input        string    `yaml:"input"`
		Output       string    `yaml:"output"`
		Preview      string    `yaml:"preview"`
		KernelSource string    `yaml:"kernelSource"`
		Preset       string    `yaml:"preset"`
		Weights      []float32 `yaml:"weights"`
	} `yaml:"filter"`
	Signal struct {
		KernelSource string  `yaml:"kernelSource"`
		Verify       bool    `yaml:"verify"`
		Tolerance    float64 `yaml:"tolerance"`
	} `yaml:"signal"`
	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

// Default returns the configuration of the embedded template.
func Default() (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(fixtures.ConfigTemplate, &config); err != nil {
		return nil, fmt.Errorf("parsing config template: %w", err)
	}
	return &config, nil
}

// LoadConfig reads path over the template defaults. An empty path yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	config, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return config, config.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Validate rejects settings no run could use.
func (c *Config) Validate() error {
	var errs []error

	switch accel.NormalizeBackend(c.Runtime.Backend) {
	case accel.BackendCPU, accel.BackendOpenCL:
	default:
		errs = append(errs, fmt.Errorf("runtime.backend %q: %w", c.Runtime.Backend, accel.ErrUnknownBackend))
	}
	mode, err := accel.ParseSelectionMode(string(c.Runtime.Device.Mode))
	if err != nil {
		errs = append(errs, fmt.Errorf("runtime.device.mode: %w", err))
	}
	if mode == accel.SelectIndex && (c.Runtime.Device.Index < 0 || c.Runtime.Device.Index >= accel.MaxDevices) {
		errs = append(errs, fmt.Errorf("runtime.device.index %d out of range [0, %d)", c.Runtime.Device.Index, accel.MaxDevices))
	}

	if _, err := c.FilterWeights(); err != nil {
		errs = append(errs, fmt.Errorf("filter: %w", err))
	}
	if c.Signal.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("signal.tolerance %g is negative", c.Signal.Tolerance))
	}
	return errors.Join(errs...)
}

// SelectionPolicy returns the device policy with its mode normalized.
func (c *Config) SelectionPolicy() accel.SelectionPolicy {
	policy := c.Runtime.Device
	if mode, err := accel.ParseSelectionMode(string(policy.Mode)); err == nil {
		policy.Mode = mode
	}
	return policy
}

// FilterWeights returns the explicit weights when set, the named preset
// otherwise.
func (c *Config) FilterWeights() (filter.Weights, error) {
	if len(c.Filter.Weights) > 0 {
		return filter.NewWeights(c.Filter.Weights)
	}
	name := c.Filter.Preset
	if name == "" {
		name = filter.DefaultPreset
	}
	return filter.Preset(name)
}
