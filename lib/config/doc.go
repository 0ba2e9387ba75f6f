// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for keyprov.
//
// Configuration comes from a single file named by either the
// KEYPROV_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no file search. When neither is given,
// [Load] returns the built-in defaults, which describe the reference
// board: an i2c-dev adapter at /dev/i2c-1 with the key EEPROM at 0x53.
//
// The board field selects a section of the boards map whose values
// override the base configuration. Boards whose EEPROM sits at a
// different address or behind a different adapter are described there
// instead of with separate files. The vek280 board is built in. Board
// "auto" probes the device tree (see the hwinfo package) and applies
// the first board whose name appears in the model or compatible
// strings.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${KEYPROV_HOME}, and ${VAR:-default} patterns are expanded.
// No environment variable overrides a config value directly.
//
// Key exports:
//
//   - [Config] -- master struct with Bus, Target, Retry, Bundle, Trace
//   - [Default] -- returns a Config for the reference board
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- reports every problem at once
package config
