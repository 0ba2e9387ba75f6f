// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the keyprov command tree.
package commands

import "github.com/bureau-foundation/keyprov/cmd/keyprov/cli"

// Root builds and returns the complete keyprov command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "keyprov",
		Description: `keyprov: HDCP key provisioning for board EEPROMs.

Writes per-board key material into an I2C EEPROM, encrypted under a key
derived from the operator's password, and verifies it by reading it
back. Runs against a Linux i2c-dev adapter or a simulated EEPROM image.

Configuration comes from --config, else $KEYPROV_CONFIG, else built-in
defaults for the reference board.`,
		Examples: []cli.Example{
			{
				Description: "Check the station, then provision a board",
				Command:     "keyprov doctor && keyprov provision --bundle board-0042.age",
			},
		},
		Subcommands: []*cli.Command{
			provisionCommand(),
			verifyCommand(),
			getCommand(),
			eraseCommand(),
			layoutCommand(),
			doctorCommand(),
			bundleCommand(),
			imageCommand(),
			traceCommand(),
			versionCommand(),
		},
	}
}
