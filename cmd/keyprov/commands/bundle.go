// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bureau-foundation/keyprov/cmd/keyprov/cli"
	"github.com/bureau-foundation/keyprov/lib/keybundle"
	"github.com/bureau-foundation/keyprov/lib/provision"
	"github.com/bureau-foundation/keyprov/lib/sealed"
	"github.com/bureau-foundation/keyprov/lib/secret"
)

func bundleCommand() *cli.Command {
	return &cli.Command{
		Name:    "bundle",
		Summary: "Create and inspect key bundles",
		Description: `Manage key bundles: the per-board key material that provision writes.

A bundle is a CBOR map from record name to plaintext. It may be sealed
with age to one or more station keys, in which case provision and
verify need the matching identity file.`,
		Subcommands: []*cli.Command{
			bundleKeygenCommand(),
			bundleCreateCommand(),
			bundleInspectCommand(),
		},
	}
}

type bundleKeygenParams struct {
	cli.JSONOutput
	Output string `json:"output" flag:"output,o" desc:"identity file to write (required)"`
	Force  bool   `json:"force"  flag:"force"    desc:"overwrite an existing identity file"`
}

type keygenOutput struct {
	PublicKey string `json:"public_key"`
	Path      string `json:"path"`
}

func bundleKeygenCommand() *cli.Command {
	var params bundleKeygenParams

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate a station identity for sealed bundles",
		Description: `Generate an age X25519 keypair and write the identity file.

The file is written with mode 0600 in the age-keygen format. The public
key is printed; give it to whoever builds bundles for this station.`,
		Usage: "keyprov bundle keygen --output FILE [flags]",
		Examples: []cli.Example{
			{
				Description: "Create a station key",
				Command:     "keyprov bundle keygen -o /etc/keyprov/station.key",
			},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			if params.Output == "" {
				return cli.Validation("--output is required")
			}

			keypair, err := sealed.GenerateKeypair()
			if err != nil {
				return cli.Internal("%w", err)
			}
			defer keypair.Close()

			contents := sealed.FormatIdentityFile(keypair, time.Now())
			defer secret.Zero(contents)
			if err := writeSecretFile(params.Output, contents, params.Force); err != nil {
				return err
			}
			logger.Info("identity written", "path", params.Output)

			output := keygenOutput{PublicKey: keypair.PublicKey, Path: params.Output}
			if done, err := params.EmitJSON(output); done {
				return err
			}
			fmt.Fprintf(os.Stdout, "Public key: %s\n", keypair.PublicKey)
			return nil
		},
	}
}

type bundleCreateParams struct {
	cli.GlobalOptions
	Output     string   `json:"output"     flag:"output,o"  desc:"bundle file to write (required)"`
	Recipients []string `json:"recipients" flag:"recipient" desc:"age public key to seal to (repeatable; default: unsealed)"`
	Force      bool     `json:"force"      flag:"force"     desc:"overwrite an existing bundle"`
}

func bundleCreateCommand() *cli.Command {
	var params bundleCreateParams

	return &cli.Command{
		Name:    "create",
		Summary: "Build a bundle from per-record files",
		Description: `Build a key bundle from NAME=FILE arguments, one per record.

Each file's contents become the plaintext of the named record. Names
must match the layout and each file must fit its record's length. With
one or more --recipient keys the bundle is sealed with age; otherwise it
is written in the clear with mode 0600.`,
		Usage: "keyprov bundle create --output FILE NAME=FILE... [flags]",
		Examples: []cli.Example{
			{
				Description: "Seal a board's keys to a station",
				Command:     "keyprov bundle create -o board-0042.age --recipient age1... lc128=lc128.bin certificate=cert.bin key-a=a.bin key-b=b.bin",
			},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if params.Output == "" {
				return cli.Validation("--output is required")
			}
			if len(args) == 0 {
				return cli.Validation("at least one NAME=FILE argument is required")
			}
			cfg, err := loadConfig(params.GlobalOptions)
			if err != nil {
				return err
			}

			records, err := readRecordFiles(args, cfg.EffectiveLayout())
			if err != nil {
				return err
			}
			defer func() {
				for _, value := range records {
					secret.Zero(value)
				}
			}()

			var data []byte
			if len(params.Recipients) > 0 {
				for _, recipient := range params.Recipients {
					if err := sealed.ParsePublicKey(recipient); err != nil {
						return cli.Validation("--recipient %s: %w", recipient, err)
					}
				}
				data, err = keybundle.Seal(records, params.Recipients)
			} else {
				data, err = keybundle.Encode(records)
			}
			if err != nil {
				return cli.Validation("%w", err)
			}
			defer secret.Zero(data)

			if err := writeSecretFile(params.Output, data, params.Force); err != nil {
				return err
			}
			logger.Info("bundle written",
				"path", params.Output,
				"records", len(records),
				"sealed", len(params.Recipients) > 0,
			)
			return nil
		},
	}
}

// readRecordFiles reads NAME=FILE arguments, checking each name and
// size against layout.
func readRecordFiles(args []string, layout provision.Layout) (map[string][]byte, error) {
	records := make(map[string][]byte, len(args))
	fail := func(err error) (map[string][]byte, error) {
		for _, value := range records {
			secret.Zero(value)
		}
		return nil, err
	}

	for _, arg := range args {
		name, path, ok := strings.Cut(arg, "=")
		if !ok || name == "" || path == "" {
			return fail(cli.Validation("argument %q is not NAME=FILE", arg))
		}
		record, err := lookupRecord(layout, name)
		if err != nil {
			return fail(err)
		}
		if _, duplicate := records[name]; duplicate {
			return fail(cli.Validation("record %s given twice", name))
		}
		value, err := os.ReadFile(path)
		if err != nil {
			return fail(classify("reading "+name, err))
		}
		if len(value) == 0 || len(value) > record.Length {
			secret.Zero(value)
			return fail(cli.Validation("%s is %d bytes; record %s holds 1 to %d", path, len(value), name, record.Length))
		}
		records[name] = value
	}
	return records, nil
}

type bundleInspectParams struct {
	cli.GlobalOptions
	cli.JSONOutput
	Identity string `json:"-" flag:"identity,i" desc:"age identity file for a sealed bundle (default: bundle.identity from config)"`
}

type inspectOutput struct {
	Path    string          `json:"path"`
	Sealed  bool            `json:"sealed"`
	Records []inspectRecord `json:"records"`
}

type inspectRecord struct {
	Name   string `json:"name"`
	Size   int    `json:"size"`
	Limit  int    `json:"limit,omitempty"`
	Status string `json:"status"`
}

func bundleInspectCommand() *cli.Command {
	var params bundleInspectParams

	return &cli.Command{
		Name:    "inspect",
		Summary: "List the records of a bundle",
		Description: `Open a bundle and list its records with their sizes.

Each record is checked against the layout: "ok" if it fits, "too-long"
if it exceeds the record length, "unused" if the layout has no record
of that name. Record contents are never printed.`,
		Usage: "keyprov bundle inspect FILE [flags]",
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("exactly one bundle file is required")
			}
			cfg, err := loadConfig(params.GlobalOptions)
			if err != nil {
				return err
			}
			bundle, err := openBundle("", cfg.Bundle.Identity, args[0], params.Identity)
			if err != nil {
				return err
			}
			defer bundle.Close()

			output := inspectBundle(args[0], bundle, cfg.EffectiveLayout())
			if done, err := params.EmitJSON(output); done {
				return err
			}

			state := "unsealed"
			if output.Sealed {
				state = "sealed"
			}
			fmt.Fprintf(os.Stdout, "%s (%s)\n\n", output.Path, state)
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tLIMIT\tSTATUS")
			for _, record := range output.Records {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", record.Name, record.Size, record.Limit, record.Status)
			}
			return tw.Flush()
		},
	}
}

func inspectBundle(path string, bundle *keybundle.Bundle, layout provision.Layout) inspectOutput {
	output := inspectOutput{Path: path, Sealed: bundle.IsSealed()}
	for _, name := range bundle.Names() {
		record := inspectRecord{Name: name, Size: bundle.Size(name), Status: "ok"}
		if layoutRecord, ok := layout.Record(name); ok {
			record.Limit = layoutRecord.Length
			if record.Size > record.Limit {
				record.Status = "too-long"
			}
		} else {
			record.Status = "unused"
		}
		output.Records = append(output.Records, record)
	}
	return output
}

// writeSecretFile writes data with mode 0600, refusing to replace an
// existing file unless force is set.
func writeSecretFile(path string, data []byte, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return cli.Validation("%s already exists (use --force to overwrite)", path)
		}
		return cli.Internal("%w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return cli.Internal("writing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return cli.Internal("writing %s: %w", path, err)
	}
	return nil
}
