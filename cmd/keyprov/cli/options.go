// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

// GlobalOptions holds the flags every device-facing command accepts.
// Embed it in a params struct to pick them up.
type GlobalOptions struct {
	ConfigPath string `json:"-" flag:"config,c" desc:"configuration file (default: $KEYPROV_CONFIG, else built-in defaults)"`
	LogLevel   string `json:"-" flag:"log-level" desc:"log level: debug, info, warn, error (default: from config)"`
}

// levelSource is satisfied by params that embed GlobalOptions.
type levelSource interface {
	logLevel() string
}

func (o *GlobalOptions) logLevel() string { return o.LogLevel }
