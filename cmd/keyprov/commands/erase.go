// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/keyprov/cmd/keyprov/cli"
	"github.com/bureau-foundation/keyprov/lib/provision"
)

type eraseParams struct {
	cli.GlobalOptions
	cli.JSONOutput
	deviceOptions
	Yes bool `json:"-" flag:"yes,y" desc:"confirm the erase (required)"`
}

// eraseOutput is the JSON form of an erase.
type eraseOutput struct {
	Length  int  `json:"length"`
	Written int  `json:"written"`
	OK      bool `json:"ok"`
}

func eraseCommand() *cli.Command {
	var params eraseParams

	return &cli.Command{
		Name:    "erase",
		Summary: "Zero-fill every record of the layout",
		Description: `Write zeros from address 0 to the end of the last record.

This destroys the provisioned keys; --yes is required. Bytes beyond the
layout are left untouched. Exits 1 if the device accepted fewer bytes
than were written.`,
		Usage: "keyprov erase --yes [flags]",
		Examples: []cli.Example{
			{
				Description: "Wipe a board before reprovisioning",
				Command:     "keyprov erase --yes",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			if !params.Yes {
				return cli.Validation("erase destroys the provisioned keys; pass --yes to confirm")
			}
			return runErase(ctx, &params, logger)
		},
	}
}

func runErase(ctx context.Context, params *eraseParams, logger *slog.Logger) (err error) {
	s, err := openSession(params.GlobalOptions, params.deviceOptions, logger)
	if err != nil {
		return err
	}
	defer closeSession(s, &err)

	length := s.layout.End()
	written, err := provision.Erase(ctx, s.device, s.layout)
	if err != nil {
		return classify("erase", err)
	}
	output := eraseOutput{Length: length, Written: written, OK: written == length}
	s.logger.Info("erased", "written", written, "length", length)

	if done, emitErr := params.EmitJSON(output); done {
		if emitErr != nil {
			return emitErr
		}
	} else {
		fmt.Fprintf(os.Stdout, "erased %d of %d bytes\n", written, length)
	}
	if !output.OK {
		return &cli.ExitError{Code: 1}
	}
	return nil
}
