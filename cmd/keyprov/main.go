// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// keyprov provisions HDCP key material into board EEPROMs.
package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/keyprov/cmd/keyprov/cli"
	"github.com/bureau-foundation/keyprov/cmd/keyprov/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own report (verify, doctor) return
		// an ExitError with the desired code. Don't print a redundant
		// "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.CategoryOf(err).ExitCode())
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
