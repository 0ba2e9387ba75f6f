// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/keyprov/lib/bus/simbus"
	"github.com/bureau-foundation/keyprov/lib/hwinfo"
	"github.com/bureau-foundation/keyprov/lib/provision"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "keyprov.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Bus.Driver != DriverI2CDev {
		t.Errorf("expected driver=i2cdev, got %s", cfg.Bus.Driver)
	}
	if cfg.Target.Address != 0x53 {
		t.Errorf("expected address=0x53, got 0x%x", cfg.Target.Address)
	}
	if cfg.Target.PageSize != 16 {
		t.Errorf("expected page_size=16, got %d", cfg.Target.PageSize)
	}
	if cfg.Retry.MaxAttempts == 0 {
		t.Error("expected bounded retry by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_WithoutConfigUsesDefaults(t *testing.T) {
	t.Setenv(EnvVar, "")
	t.Setenv("KEYPROV_HOME", "/var/lib/keyprov")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Bus.Image != "/var/lib/keyprov/eeprom.img" {
		t.Errorf("expected expanded image path, got %s", cfg.Bus.Image)
	}
}

func TestLoad_WithKeyprovConfig(t *testing.T) {
	configPath := writeConfig(t, `
bus:
  driver: sim
  image: /tmp/board.img
target:
  address: 0x51
`)
	t.Setenv(EnvVar, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Bus.Driver != DriverSim {
		t.Errorf("expected driver=sim, got %s", cfg.Bus.Driver)
	}
	if cfg.Target.Address != 0x51 {
		t.Errorf("expected address=0x51, got 0x%x", cfg.Target.Address)
	}
	// Unset fields keep their defaults.
	if cfg.Target.PageSize != 16 {
		t.Errorf("expected default page_size=16, got %d", cfg.Target.PageSize)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
bus:
  driver: i2cdev
  device: /dev/i2c-3
retry:
  max_attempts: 0
  initial_backoff: 1ms
  max_backoff: 50ms
bundle:
  path: ${HOME}/keys/bundle.age
  identity: ${KEYPROV_IDENTITY:-/etc/keyprov/operator.key}
log:
  level: debug
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Bus.Device != "/dev/i2c-3" {
		t.Errorf("expected device=/dev/i2c-3, got %s", cfg.Bus.Device)
	}
	policy := cfg.RetryPolicy()
	if policy.MaxAttempts != 0 || policy.InitialBackoff != time.Millisecond || policy.MaxBackoff != 50*time.Millisecond {
		t.Errorf("unexpected retry policy %+v", policy)
	}
	homeDir, _ := os.UserHomeDir()
	if cfg.Bundle.Path != filepath.Join(homeDir, "keys", "bundle.age") {
		t.Errorf("expected expanded bundle path, got %s", cfg.Bundle.Path)
	}
	if cfg.Bundle.Identity != "/etc/keyprov/operator.key" && os.Getenv("KEYPROV_IDENTITY") == "" {
		t.Errorf("expected default identity path, got %s", cfg.Bundle.Identity)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected level=debug, got %s", cfg.Log.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if _, err := LoadFile(writeConfig(t, "bus: [not, a, map]")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := LoadFile(writeConfig(t, "board: unknown-board\n")); err == nil {
		t.Error("expected error for undefined board")
	}
}

func TestBoardOverrides(t *testing.T) {
	configPath := writeConfig(t, `
board: lab-fixture
bus:
  driver: i2cdev
boards:
  lab-fixture:
    bus:
      driver: sim
      image: /tmp/fixture.img
      compression: zstd
    target:
      capacity: 4096
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Bus.Driver != DriverSim || cfg.Bus.Image != "/tmp/fixture.img" {
		t.Errorf("board bus override not applied: %+v", cfg.Bus)
	}
	if compression, _ := cfg.Compression(); compression != simbus.CompressionZstd {
		t.Errorf("expected zstd, got %s", compression)
	}
	if cfg.Target.Capacity != 4096 || cfg.Target.Address != 0x53 {
		t.Errorf("board target override wrong: %+v", cfg.Target)
	}
	if cfg.EffectiveLayout().Capacity != 4096 {
		t.Errorf("default layout not sized to capacity: %d", cfg.EffectiveLayout().Capacity)
	}
	if options := cfg.SimOptions(); options.Capacity != 4096 || options.Target != 0x53 {
		t.Errorf("SimOptions() = %+v", options)
	}
}

func TestBuiltinBoard(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "board: vek280\n"))
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Target.Address != 0x50 {
		t.Errorf("expected vek280 address 0x50, got 0x%x", cfg.Target.Address)
	}
}

func TestAutoBoard(t *testing.T) {
	original := probeBoard
	t.Cleanup(func() { probeBoard = original })

	tests := []struct {
		name        string
		board       hwinfo.Board
		wantBoard   string
		wantAddress uint16
	}{
		{
			name:        "builtin vek280",
			board:       hwinfo.Board{Compatible: []string{"xlnx,versal-vek280-revA"}},
			wantBoard:   "vek280",
			wantAddress: 0x50,
		},
		{
			name:        "file board",
			board:       hwinfo.Board{Model: "Lab Fixture rev2"},
			wantBoard:   "fixture",
			wantAddress: 0x51,
		},
		{
			name:        "unknown hardware keeps defaults",
			board:       hwinfo.Board{Model: "Generic PC"},
			wantBoard:   "",
			wantAddress: 0x53,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			probeBoard = func() hwinfo.Board { return test.board }
			cfg, err := LoadFile(writeConfig(t, `
board: auto
boards:
  fixture:
    target:
      address: 0x51
`))
			if err != nil {
				t.Fatalf("LoadFile() failed: %v", err)
			}
			if cfg.Board != test.wantBoard {
				t.Errorf("Board = %q, want %q", cfg.Board, test.wantBoard)
			}
			if cfg.Target.Address != test.wantAddress {
				t.Errorf("Target.Address = 0x%x, want 0x%x", cfg.Target.Address, test.wantAddress)
			}
		})
	}
}

func TestLayoutOverride(t *testing.T) {
	configPath := writeConfig(t, `
layout:
  capacity: 1024
  records:
    - name: signature
      offset: 0
      length: 16
      encrypted: true
    - name: serial
      offset: 512
      length: 12
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	layout := cfg.EffectiveLayout()
	if len(layout.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(layout.Records))
	}
	serial, ok := layout.Record("serial")
	if !ok || serial.Offset != 512 || serial.Length != 12 || serial.Encrypted {
		t.Errorf("unexpected serial record %+v", serial)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/keyprov",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/keyprov",
		},
		{
			input:    "${KEYPROV_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown driver",
			modify:  func(c *Config) { c.Bus.Driver = "spi" },
			wantErr: "bus.driver",
		},
		{
			name:    "i2cdev without device",
			modify:  func(c *Config) { c.Bus.Device = "" },
			wantErr: "bus.device",
		},
		{
			name: "sim without image",
			modify: func(c *Config) {
				c.Bus.Driver = DriverSim
				c.Bus.Image = ""
			},
			wantErr: "bus.image",
		},
		{
			name:    "bad compression",
			modify:  func(c *Config) { c.Bus.Compression = "brotli" },
			wantErr: "bus.compression",
		},
		{
			name:    "ten-bit address",
			modify:  func(c *Config) { c.Target.Address = 0x1a0 },
			wantErr: "target.address",
		},
		{
			name:    "page size not power of two",
			modify:  func(c *Config) { c.Target.PageSize = 24 },
			wantErr: "target.page_size",
		},
		{
			name:    "capacity too large",
			modify:  func(c *Config) { c.Target.Capacity = 1 << 20 },
			wantErr: "target.capacity",
		},
		{
			name:    "negative retry",
			modify:  func(c *Config) { c.Retry.MaxAttempts = -1 },
			wantErr: "max_attempts",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log.level",
		},
		{
			name:    "layout exceeds capacity",
			modify:  func(c *Config) { c.Target.Capacity = 1024 },
			wantErr: "beyond capacity",
		},
		{
			name: "overlapping layout",
			modify: func(c *Config) {
				c.Layout = &provision.Layout{Capacity: 2048, Records: []provision.Record{
					{Name: "a", Offset: 0, Length: 32},
					{Name: "b", Offset: 16, Length: 16},
				}}
			},
			wantErr: "overlaps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Bus.Driver = "spi"
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, fragment := range []string{"bus.driver", "log.level"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q lacks %q", err, fragment)
		}
	}
}
