// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hwinfo identifies the board keyprov is running on.
//
// [ProbeBoard] reads the device tree model and compatible properties
// from /sys/firmware/devicetree/base, falling back to the DMI board
// name on machines without a device tree. The config package matches
// the result against its board names when the configuration selects
// board "auto", so one config file can serve every board in a fleet.
package hwinfo
