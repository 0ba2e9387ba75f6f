// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/keyprov/lib/bus/simbus"
	"github.com/bureau-foundation/keyprov/lib/eeprom"
	"github.com/bureau-foundation/keyprov/lib/hwinfo"
	"github.com/bureau-foundation/keyprov/lib/provision"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "KEYPROV_CONFIG"

// Bus drivers.
const (
	// DriverI2CDev talks to a Linux i2c-dev adapter.
	DriverI2CDev = "i2cdev"

	// DriverSim uses a simulated EEPROM persisted to an image file.
	DriverSim = "sim"
)

// Config is the master configuration for keyprov.
type Config struct {
	// Board selects an entry of Boards to apply over the base values.
	// "auto" picks the entry whose name matches the probed hardware.
	Board string `yaml:"board"`

	// Bus selects and configures the channel to the EEPROM.
	Bus BusConfig `yaml:"bus"`

	// Target describes the EEPROM on the bus.
	Target TargetConfig `yaml:"target"`

	// Retry bounds address priming.
	Retry RetryConfig `yaml:"retry"`

	// Bundle locates the key material.
	Bundle BundleConfig `yaml:"bundle"`

	// Trace configures transport tracing.
	Trace TraceConfig `yaml:"trace"`

	// Log configures diagnostic output.
	Log LogConfig `yaml:"log"`

	// Layout overrides the default record layout.
	Layout *provision.Layout `yaml:"layout,omitempty"`

	// Boards holds per-board overrides, applied when Board matches.
	Boards map[string]*BoardOverrides `yaml:"boards,omitempty"`
}

// BoardOverrides contains fields that can be overridden per board.
type BoardOverrides struct {
	Bus    *BusConfig        `yaml:"bus,omitempty"`
	Target *TargetConfig     `yaml:"target,omitempty"`
	Layout *provision.Layout `yaml:"layout,omitempty"`
}

// BusConfig selects the channel implementation.
type BusConfig struct {
	// Driver is "i2cdev" or "sim".
	// Default: i2cdev
	Driver string `yaml:"driver"`

	// Device is the i2c-dev node for the i2cdev driver.
	// Default: /dev/i2c-1
	Device string `yaml:"device"`

	// Image is the image file for the sim driver.
	// Default: ${KEYPROV_HOME}/eeprom.img
	Image string `yaml:"image"`

	// Compression is how the sim driver stores its image: none, lz4,
	// zstd, or auto.
	// Default: auto
	Compression string `yaml:"compression"`

	// WriteCycle is how many transfers the simulated device refuses
	// after each write. Negative disables the write cycle.
	// Default: 2
	WriteCycle int `yaml:"write_cycle"`
}

// TargetConfig describes the EEPROM.
type TargetConfig struct {
	// Address is the 7-bit bus address.
	// Default: 0x53
	Address uint16 `yaml:"address"`

	// PageSize is the write page in bytes.
	// Default: 16
	PageSize int `yaml:"page_size"`

	// Capacity is the device size in bytes.
	// Default: 2048
	Capacity int `yaml:"capacity"`
}

// RetryConfig bounds address priming. MaxAttempts of zero retries
// forever.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// BundleConfig locates the key bundle.
type BundleConfig struct {
	// Path is the bundle file, sealed or not.
	Path string `yaml:"path"`

	// Identity is the age identity file for sealed bundles.
	Identity string `yaml:"identity"`
}

// TraceConfig configures transport tracing.
type TraceConfig struct {
	// Path, when set, receives a CBOR event stream for every run.
	Path string `yaml:"path"`
}

// LogConfig configures diagnostic output.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`
}

// builtinBoards are applied when the file does not define the board.
var builtinBoards = map[string]*BoardOverrides{
	"vek280": {Target: &TargetConfig{Address: 0x50}},
}

// Default returns the configuration for the reference board.
func Default() *Config {
	retry := eeprom.DefaultRetryPolicy()
	return &Config{
		Bus: BusConfig{
			Driver:      DriverI2CDev,
			Device:      "/dev/i2c-1",
			Image:       "${KEYPROV_HOME}/eeprom.img",
			Compression: "auto",
			WriteCycle:  simbus.DefaultWriteCycle,
		},
		Target: TargetConfig{
			Address:  simbus.DefaultTarget,
			PageSize: eeprom.DefaultPageSize,
			Capacity: provision.DefaultLayout().Capacity,
		},
		Retry: RetryConfig{
			MaxAttempts:    retry.MaxAttempts,
			InitialBackoff: retry.InitialBackoff,
			MaxBackoff:     retry.MaxBackoff,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load loads configuration from the file named by KEYPROV_CONFIG, or
// returns the expanded defaults when it is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path over the
// defaults, applies the selected board, and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.applyBoard(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// BoardAuto selects the board by matching the probed hardware
// against the known board names.
const BoardAuto = "auto"

// probeBoard is replaced in tests.
var probeBoard = hwinfo.ProbeBoard

// boardNames returns the configured board names, sorted, followed by
// the built-in names the file does not redefine.
func (c *Config) boardNames() []string {
	names := slices.Sorted(maps.Keys(c.Boards))
	for _, name := range slices.Sorted(maps.Keys(builtinBoards)) {
		if _, ok := c.Boards[name]; !ok {
			names = append(names, name)
		}
	}
	return names
}

// applyBoard applies the overrides for the selected board. Board
// "auto" is resolved first; when nothing matches, the base values
// stand and Board is cleared.
func (c *Config) applyBoard() error {
	if c.Board == BoardAuto {
		c.Board = probeBoard().Match(c.boardNames())
	}
	if c.Board == "" {
		return nil
	}

	overrides, ok := c.Boards[c.Board]
	if !ok {
		overrides, ok = builtinBoards[c.Board]
	}
	if !ok {
		return fmt.Errorf("board %q is not defined in boards", c.Board)
	}

	if overrides.Bus != nil {
		if overrides.Bus.Driver != "" {
			c.Bus.Driver = overrides.Bus.Driver
		}
		if overrides.Bus.Device != "" {
			c.Bus.Device = overrides.Bus.Device
		}
		if overrides.Bus.Image != "" {
			c.Bus.Image = overrides.Bus.Image
		}
		if overrides.Bus.Compression != "" {
			c.Bus.Compression = overrides.Bus.Compression
		}
		if overrides.Bus.WriteCycle != 0 {
			c.Bus.WriteCycle = overrides.Bus.WriteCycle
		}
	}

	if overrides.Target != nil {
		if overrides.Target.Address != 0 {
			c.Target.Address = overrides.Target.Address
		}
		if overrides.Target.PageSize != 0 {
			c.Target.PageSize = overrides.Target.PageSize
		}
		if overrides.Target.Capacity != 0 {
			c.Target.Capacity = overrides.Target.Capacity
		}
	}

	if overrides.Layout != nil {
		c.Layout = overrides.Layout
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	homeDir, _ := os.UserHomeDir()
	vars := map[string]string{
		"HOME":         homeDir,
		"KEYPROV_HOME": filepath.Join(homeDir, ".local", "share", "keyprov"),
	}
	if value := os.Getenv("KEYPROV_HOME"); value != "" {
		vars["KEYPROV_HOME"] = value
	}

	c.Bus.Device = expandVars(c.Bus.Device, vars)
	c.Bus.Image = expandVars(c.Bus.Image, vars)
	c.Bundle.Path = expandVars(c.Bundle.Path, vars)
	c.Bundle.Identity = expandVars(c.Bundle.Identity, vars)
	c.Trace.Path = expandVars(c.Trace.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// RetryPolicy returns the retry section as an eeprom.RetryPolicy.
func (c *Config) RetryPolicy() eeprom.RetryPolicy {
	return eeprom.RetryPolicy{
		MaxAttempts:    c.Retry.MaxAttempts,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
	}
}

// EffectiveLayout returns the configured layout, or the default layout
// sized to the target capacity.
func (c *Config) EffectiveLayout() provision.Layout {
	if c.Layout != nil {
		return *c.Layout
	}
	layout := provision.DefaultLayout()
	layout.Capacity = c.Target.Capacity
	return layout
}

// Compression returns the parsed sim image compression.
func (c *Config) Compression() (simbus.Compression, error) {
	return simbus.ParseCompression(c.Bus.Compression)
}

// SimOptions returns the simulated device geometry.
func (c *Config) SimOptions() simbus.Options {
	return simbus.Options{
		Target:     c.Target.Address,
		Capacity:   c.Target.Capacity,
		PageSize:   c.Target.PageSize,
		WriteCycle: c.Bus.WriteCycle,
	}
}

// Validate checks the configuration for errors and reports all of them.
func (c *Config) Validate() error {
	var errs []error

	switch c.Bus.Driver {
	case DriverI2CDev:
		if c.Bus.Device == "" {
			errs = append(errs, fmt.Errorf("bus.device is required for the i2cdev driver"))
		}
	case DriverSim:
		if c.Bus.Image == "" {
			errs = append(errs, fmt.Errorf("bus.image is required for the sim driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("bus.driver must be %q or %q, got %q", DriverI2CDev, DriverSim, c.Bus.Driver))
	}
	if _, err := c.Compression(); err != nil {
		errs = append(errs, fmt.Errorf("bus.compression: %w", err))
	}

	if c.Target.Address == 0 || c.Target.Address > 0x7f {
		errs = append(errs, fmt.Errorf("target.address must be a 7-bit address, got 0x%x", c.Target.Address))
	}
	if c.Target.PageSize <= 0 || c.Target.PageSize > 256 || c.Target.PageSize&(c.Target.PageSize-1) != 0 {
		errs = append(errs, fmt.Errorf("target.page_size must be a power of two up to 256, got %d", c.Target.PageSize))
	}
	if c.Target.Capacity <= 0 || c.Target.Capacity > 1<<16 {
		errs = append(errs, fmt.Errorf("target.capacity must be between 1 and 65536, got %d", c.Target.Capacity))
	}

	if err := c.RetryPolicy().Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level))
	}

	layout := c.EffectiveLayout()
	if layout.Capacity > c.Target.Capacity {
		errs = append(errs, fmt.Errorf("layout capacity %d exceeds target.capacity %d", layout.Capacity, c.Target.Capacity))
	}
	if c.Target.PageSize > 0 {
		if err := layout.Validate(c.Target.PageSize); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
