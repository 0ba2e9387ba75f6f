// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/bureau-foundation/keyprov/cmd/keyprov/cli"
	"github.com/bureau-foundation/keyprov/lib/provision"
)

type layoutParams struct {
	cli.GlobalOptions
	cli.JSONOutput
}

func layoutCommand() *cli.Command {
	var params layoutParams

	return &cli.Command{
		Name:    "layout",
		Summary: "Print the record layout",
		Description: `Print where each record lives on the device.

SIZE is the space the record occupies: its maximum plaintext length
rounded up to whole 16-byte cipher blocks. The layout comes from the
configuration, or the built-in default when it has none.`,
		Usage: "keyprov layout [flags]",
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			cfg, err := loadConfig(params.GlobalOptions)
			if err != nil {
				return err
			}
			layout := cfg.EffectiveLayout()
			if done, err := params.EmitJSON(layout); done {
				return err
			}
			return printLayout(os.Stdout, layout)
		},
	}
}

func printLayout(w io.Writer, layout provision.Layout) error {
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "NAME\tOFFSET\tLENGTH\tSIZE\tENCRYPTED")
	for _, record := range layout.Records {
		fmt.Fprintf(tw, "%s\t0x%04x\t%d\t%d\t%t\n", record.Name, record.Offset, record.Length, record.Size(), record.Encrypted)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d of %d bytes used\n", layout.End(), layout.Capacity)
	return err
}
