// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/keyprov/cmd/keyprov/cli"
	"github.com/bureau-foundation/keyprov/lib/keybundle"
	"github.com/bureau-foundation/keyprov/lib/provision"
	"github.com/bureau-foundation/keyprov/lib/sealed"
	"github.com/bureau-foundation/keyprov/lib/secret"
	"github.com/bureau-foundation/keyprov/lib/sessionkey"
)

// provisionParams holds the parameters shared by provision and verify.
type provisionParams struct {
	cli.GlobalOptions
	cli.JSONOutput
	deviceOptions
	Bundle       string `json:"-" flag:"bundle,b"      desc:"key bundle file (default: bundle.path from config)"`
	Identity     string `json:"-" flag:"identity,i"    desc:"age identity file for a sealed bundle (default: bundle.identity from config)"`
	PasswordFile string `json:"-" flag:"password-file" desc:"read the password from this file, or - for stdin (default: prompt)"`
}

func provisionCommand() *cli.Command {
	var params provisionParams

	return &cli.Command{
		Name:    "provision",
		Summary: "Store every record of the bundle and verify it",
		Description: `Write the key bundle into the EEPROM and read every record back.

The operator is prompted for the provisioning password; its SHA-256
digest is the AES-256 key for the encrypted records. Each record is
padded to whole 16-byte blocks, encrypted, written page by page, then
read back, decrypted, and compared with the bundle. A record with no
material in the bundle is skipped with a warning, except the signature,
which falls back to the built-in default.

Exits 1 after printing the report if any record does not verify.`,
		Usage: "keyprov provision [flags]",
		Examples: []cli.Example{
			{
				Description: "Provision from a sealed bundle",
				Command:     "keyprov provision --bundle board-0042.age --identity station.key",
			},
			{
				Description: "Non-interactive run against the simulator, with a trace",
				Command:     "keyprov provision -c sim.yaml --password-file pw.txt --trace run.trace --json",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return runProvision(ctx, &params, logger, true)
		},
	}
}

func verifyCommand() *cli.Command {
	var params provisionParams

	return &cli.Command{
		Name:    "verify",
		Summary: "Verify the stored records against the bundle",
		Description: `Read every record back and compare it with the bundle, without writing.

Uses the same password and bundle as provision. The report shows how
many leading bytes of each record match. Exits 1 after printing the
report if any record does not verify.`,
		Usage: "keyprov verify [flags]",
		Examples: []cli.Example{
			{
				Description: "Check a board before shipping",
				Command:     "keyprov verify --bundle board-0042.age --identity station.key",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return runProvision(ctx, &params, logger, false)
		},
	}
}

func runProvision(ctx context.Context, params *provisionParams, logger *slog.Logger, write bool) (err error) {
	s, err := openSession(params.GlobalOptions, params.deviceOptions, logger)
	if err != nil {
		return err
	}
	defer closeSession(s, &err)

	bundle, err := openBundle(s.config.Bundle.Path, s.config.Bundle.Identity, params.Bundle, params.Identity)
	if err != nil {
		return err
	}
	defer bundle.Close()
	s.logger.Debug("bundle loaded", "records", bundle.Names(), "sealed", bundle.IsSealed())

	password, err := cli.ReadPassword(params.PasswordFile, sessionkey.PasswordSize)
	if err != nil {
		return err
	}
	defer password.Close()

	key, err := sessionkey.Derive(password.Bytes())
	if err != nil {
		return classify("deriving session key", err)
	}
	defer key.Close()

	provisioner, err := provision.NewProvisioner(provision.Config{
		Transport: s.device,
		Layout:    s.layout,
		Key:       key.Bytes(),
		Logger:    s.logger,
	})
	if err != nil {
		return cli.Internal("%w", err)
	}

	var report *provision.Report
	var runErr error
	operation := "verify"
	if write {
		operation = "provision"
		report, runErr = provisioner.Run(ctx, bundle)
	} else {
		report, runErr = provisioner.Check(ctx, bundle)
	}

	output := newReportOutput(s, report, write)
	if done, emitErr := params.EmitJSON(output); done {
		if emitErr != nil {
			return emitErr
		}
	} else if runErr == nil || len(report.Results) > 0 {
		printReport(os.Stdout, output, cli.StdoutStyles())
	}

	if runErr != nil {
		return classify(operation, runErr)
	}
	if !report.OK() {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

// openBundle loads the bundle named by the flag or, failing that, the
// configuration. A sealed bundle needs an identity.
func openBundle(configPath, configIdentity, flagPath, flagIdentity string) (*keybundle.Bundle, error) {
	path := flagPath
	if path == "" {
		path = configPath
	}
	if path == "" {
		return nil, cli.Validation("no key bundle given").
			WithHint("Pass --bundle or set bundle.path in the configuration.")
	}
	identityPath := flagIdentity
	if identityPath == "" {
		identityPath = configIdentity
	}

	var identity *secret.Buffer
	if identityPath != "" {
		var err error
		identity, err = sealed.ReadIdentityFile(identityPath)
		if err != nil {
			return nil, classify("reading identity", err)
		}
		defer identity.Close()
	}

	bundle, err := keybundle.LoadFile(path, identity)
	if err != nil {
		if identity == nil && errors.Is(err, keybundle.ErrKeyRequired) {
			return nil, cli.Validation("bundle %s is sealed", path).
				WithHint("Pass --identity or set bundle.identity in the configuration.")
		}
		return nil, classify(fmt.Sprintf("loading bundle %s", path), err)
	}
	return bundle, nil
}
