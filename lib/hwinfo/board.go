// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// Board identifies the machine keyprov runs on.
type Board struct {
	// Model is the human-readable board name, e.g. "Xilinx Versal
	// vek280 Eval board revA".
	Model string

	// Compatible lists the device tree compatible strings, most
	// specific first. Empty on machines without a device tree.
	Compatible []string

	// Source is the file Model was read from, or "" if none was found.
	Source string
}

// ProbeBoard reads the board identity from the running system.
func ProbeBoard() Board {
	return probeBoardFrom("/")
}

// probeBoardFrom reads the device tree under root, falling back to the
// DMI board name on machines that boot without one. Missing files
// produce a zero Board rather than an error.
func probeBoardFrom(root string) Board {
	var board Board

	devicetree := filepath.Join(root, "sys/firmware/devicetree/base")
	if model := readDeviceTreeStrings(filepath.Join(devicetree, "model")); len(model) > 0 {
		board.Model = model[0]
		board.Source = filepath.Join(devicetree, "model")
	}
	board.Compatible = readDeviceTreeStrings(filepath.Join(devicetree, "compatible"))

	if board.Model == "" {
		path := filepath.Join(root, "sys/class/dmi/id/board_name")
		if name := ReadSysfsString(path); name != "" {
			board.Model = name
			board.Source = path
		}
	}
	return board
}

// Match returns the first of names that appears, case-insensitively,
// in a compatible string or the model. Returns "" when none does.
func (b Board) Match(names []string) string {
	haystack := make([]string, 0, len(b.Compatible)+1)
	for _, compatible := range b.Compatible {
		haystack = append(haystack, strings.ToLower(compatible))
	}
	if b.Model != "" {
		haystack = append(haystack, strings.ToLower(b.Model))
	}

	for _, name := range names {
		needle := strings.ToLower(name)
		if needle == "" {
			continue
		}
		for _, candidate := range haystack {
			if strings.Contains(candidate, needle) {
				return name
			}
		}
	}
	return ""
}

// readDeviceTreeStrings reads a device tree string-list property: one
// or more NUL-terminated strings.
func readDeviceTreeStrings(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var values []string
	for _, field := range bytes.Split(data, []byte{0}) {
		if value := strings.TrimSpace(string(field)); value != "" {
			values = append(values, value)
		}
	}
	return values
}

// ReadSysfsString reads a single-line sysfs file and returns its
// trimmed content. Returns "" on any error.
func ReadSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
