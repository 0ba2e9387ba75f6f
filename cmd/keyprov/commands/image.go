// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/bureau-foundation/keyprov/cmd/keyprov/cli"
	"github.com/bureau-foundation/keyprov/lib/bus/simbus"
	"github.com/bureau-foundation/keyprov/lib/provision"
)

func imageCommand() *cli.Command {
	return &cli.Command{
		Name:    "image",
		Summary: "Manage simulated EEPROM images",
		Description: `Create and inspect the image files behind the sim bus driver.

An image holds the device geometry and its memory, compressed with lz4
or zstd when that helps. Every keyprov command that opens the device
works against an image when bus.driver is "sim".`,
		Subcommands: []*cli.Command{
			imageCreateCommand(),
			imageInfoCommand(),
		},
	}
}

type imageCreateParams struct {
	cli.GlobalOptions
	Output      string `json:"output"      flag:"output,o"    desc:"image file (default: bus.image from config)"`
	Compression string `json:"compression" flag:"compression" desc:"none, lz4, zstd, or auto (default: bus.compression from config)"`
	Force       bool   `json:"force"       flag:"force"       desc:"replace an existing image"`
}

func imageCreateCommand() *cli.Command {
	var params imageCreateParams

	return &cli.Command{
		Name:    "create",
		Summary: "Create a blank image",
		Description: `Write a blank (erased, all 0xff) image with the configured geometry:
target address, capacity, and page size.`,
		Usage: "keyprov image create [--output FILE] [flags]",
		Examples: []cli.Example{
			{
				Description: "Create the image named by the configuration",
				Command:     "keyprov image create -c sim.yaml",
			},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			cfg, err := loadConfig(params.GlobalOptions)
			if err != nil {
				return err
			}
			path := params.Output
			if path == "" {
				path = cfg.Bus.Image
			}
			compressionName := params.Compression
			if compressionName == "" {
				compressionName = cfg.Bus.Compression
			}
			compression, err := simbus.ParseCompression(compressionName)
			if err != nil {
				return cli.Validation("--compression: %w", err)
			}

			if _, err := os.Stat(path); err == nil && !params.Force {
				return cli.Validation("%s already exists (use --force to replace)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return cli.Internal("%w", err)
			}

			device, err := simbus.New(cfg.SimOptions())
			if err != nil {
				return cli.Validation("%w", err)
			}
			if err := simbus.SaveImageFile(path, device, compression); err != nil {
				return cli.Internal("%w", err)
			}
			logger.Info("image created",
				"path", path,
				"target", fmt.Sprintf("0x%02x", cfg.Target.Address),
				"capacity", cfg.Target.Capacity,
			)
			return nil
		},
	}
}

type imageInfoParams struct {
	cli.GlobalOptions
	cli.JSONOutput
}

// imageInfoOutput is the JSON form of image info.
type imageInfoOutput struct {
	simbus.ImageInfo
	Path        string        `json:"path"`
	Compression string        `json:"compression"`
	Records     []imageRecord `json:"records"`
}

// imageRecord classifies what a record's region currently holds.
type imageRecord struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

func imageInfoCommand() *cli.Command {
	var params imageInfoParams

	return &cli.Command{
		Name:    "info",
		Summary: "Describe an image",
		Description: `Print an image's geometry and storage, and what each record region holds:
"blank" (never written), "zeroed" (erased by keyprov erase), or "data".`,
		Usage: "keyprov image info [FILE] [flags]",
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 1 {
				return cli.Validation("at most one image file may be given")
			}
			cfg, err := loadConfig(params.GlobalOptions)
			if err != nil {
				return err
			}
			path := cfg.Bus.Image
			if len(args) == 1 {
				path = args[0]
			}

			device, info, err := simbus.LoadImageFile(path, -1)
			if err != nil {
				return classify("loading image", err)
			}

			output := imageInfoOutput{
				Path:        path,
				Compression: info.Compression.String(),
				ImageInfo:   info,
				Records:     classifyRegions(device.Memory(), cfg.EffectiveLayout()),
			}
			if done, err := params.EmitJSON(output); done {
				return err
			}

			fmt.Fprintf(os.Stdout, "%s\n", output.Path)
			fmt.Fprintf(os.Stdout, "  target:      0x%02x\n", info.Target)
			fmt.Fprintf(os.Stdout, "  capacity:    %d bytes in %d-byte pages\n", info.Capacity, info.PageSize)
			fmt.Fprintf(os.Stdout, "  stored:      %d bytes (%s)\n", info.StoredSize, output.Compression)
			fmt.Fprintf(os.Stdout, "  blank cells: %d\n\n", info.Erased)
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "RECORD\tSTATE")
			for _, record := range output.Records {
				fmt.Fprintf(tw, "%s\t%s\n", record.Name, record.State)
			}
			return tw.Flush()
		},
	}
}

// classifyRegions reports the state of each record's bytes in memory.
// Records beyond the image are "outside".
func classifyRegions(memory []byte, layout provision.Layout) []imageRecord {
	records := make([]imageRecord, 0, len(layout.Records))
	for _, record := range layout.Records {
		state := "data"
		switch {
		case record.End() > len(memory):
			state = "outside"
		case allBytes(memory[record.Offset:record.End()], 0xff):
			state = "blank"
		case allBytes(memory[record.Offset:record.End()], 0x00):
			state = "zeroed"
		}
		records = append(records, imageRecord{Name: record.Name, State: state})
	}
	return records
}

func allBytes(data []byte, value byte) bool {
	return len(bytes.Trim(data, string([]byte{value}))) == 0
}
