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
	"github.com/bureau-foundation/keyprov/lib/config"
	"github.com/bureau-foundation/keyprov/lib/hwinfo"
	"github.com/bureau-foundation/keyprov/lib/provision"
	"github.com/bureau-foundation/keyprov/lib/sealed"
)

type doctorParams struct {
	cli.GlobalOptions
	cli.JSONOutput
}

// doctorOutput is the JSON form of a doctor run.
type doctorOutput struct {
	Checks []cli.Check `json:"checks"`
	OK     bool        `json:"ok"`
}

func doctorCommand() *cli.Command {
	var params doctorParams

	return &cli.Command{
		Name:    "doctor",
		Summary: "Check the station before provisioning",
		Description: `Check everything a provisioning run depends on, without writing keys:
configuration, board detection, layout, the bus adapter, whether the
EEPROM acknowledges, and the bundle and identity files.

Prerequisite failures skip the checks that depend on them. Exits 1 if
any check fails.`,
		Usage: "keyprov doctor [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			checks := runDoctor(ctx, params.GlobalOptions, logger)
			if done, err := params.EmitJSON(doctorOutput{Checks: checks, OK: cli.ChecklistOK(checks)}); done {
				if err != nil {
					return err
				}
				if !cli.ChecklistOK(checks) {
					return &cli.ExitError{Code: 1}
				}
				return nil
			}
			return cli.PrintChecklist(os.Stdout, checks, cli.StdoutStyles())
		},
	}
}

func runDoctor(ctx context.Context, options cli.GlobalOptions, logger *slog.Logger) []cli.Check {
	var checks []cli.Check

	cfg, err := loadConfig(options)
	if err != nil {
		checks = append(checks, cli.Fail("configuration", err.Error()))
		for _, name := range []string{"board", "layout", "bus", "device", "bundle"} {
			checks = append(checks, cli.Skip(name, "configuration did not load"))
		}
		return checks
	}
	checks = append(checks, cli.Pass("configuration", configSource(options)))
	checks = append(checks, boardCheck(cfg))

	layout := cfg.EffectiveLayout()
	checks = append(checks, cli.Pass("layout",
		fmt.Sprintf("%d records, %d of %d bytes", len(layout.Records), layout.End(), layout.Capacity)))

	checks = append(checks, deviceChecks(ctx, options, logger)...)
	checks = append(checks, bundleChecks(cfg)...)
	return checks
}

func configSource(options cli.GlobalOptions) string {
	switch {
	case options.ConfigPath != "":
		return options.ConfigPath
	case os.Getenv(config.EnvVar) != "":
		return os.Getenv(config.EnvVar)
	}
	return "built-in defaults"
}

func boardCheck(cfg *config.Config) cli.Check {
	board := hwinfo.ProbeBoard()
	detected := board.Model
	if detected == "" {
		detected = "unknown hardware"
	}
	if cfg.Board == "" {
		return cli.Pass("board", fmt.Sprintf("reference defaults, target 0x%02x (%s)", cfg.Target.Address, detected))
	}
	return cli.Pass("board", fmt.Sprintf("%s, target 0x%02x (%s)", cfg.Board, cfg.Target.Address, detected))
}

// deviceChecks opens the bus and reads the first block of the layout,
// which succeeds only if the EEPROM acknowledges its address.
func deviceChecks(ctx context.Context, options cli.GlobalOptions, logger *slog.Logger) []cli.Check {
	s, err := openSession(options, deviceOptions{}, logger)
	if err != nil {
		return []cli.Check{
			cli.Fail("bus", err.Error()),
			cli.Skip("device", "bus did not open"),
		}
	}
	defer s.Close()

	busName := s.config.Bus.Device
	if s.config.Bus.Driver == config.DriverSim {
		busName = "sim " + s.config.Bus.Image
	}
	checks := []cli.Check{cli.Pass("bus", busName)}

	if len(s.layout.Records) == 0 {
		return append(checks, cli.Skip("device", "layout has no records"))
	}
	first := s.layout.Records[0]
	data, err := provision.Get(ctx, s.device, first, min(first.Size(), s.device.PageSize()))
	if err != nil {
		return append(checks, cli.Fail("device", fmt.Sprintf("0x%02x: %v", s.config.Target.Address, err)))
	}
	return append(checks, cli.Pass("device",
		fmt.Sprintf("0x%02x acknowledged, read %d bytes of %s", s.config.Target.Address, len(data), first.Name)))
}

// bundleChecks checks the configured bundle and identity. Both are
// optional in the configuration since --bundle can supply them.
func bundleChecks(cfg *config.Config) []cli.Check {
	var checks []cli.Check

	if cfg.Bundle.Identity != "" {
		identity, err := sealed.ReadIdentityFile(cfg.Bundle.Identity)
		if err != nil {
			checks = append(checks, cli.Fail("identity", err.Error()))
		} else {
			publicKey, _ := sealed.ParsePrivateKey(identity)
			identity.Close()
			checks = append(checks, cli.Pass("identity", publicKey))
		}
	}

	if cfg.Bundle.Path == "" {
		return append(checks, cli.Warn("bundle", "bundle.path not set; pass --bundle to provision"))
	}
	data, err := os.ReadFile(cfg.Bundle.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		checks = append(checks, cli.Fail("bundle", cfg.Bundle.Path+" does not exist"))
	case err != nil:
		checks = append(checks, cli.Fail("bundle", err.Error()))
	case sealed.IsEncrypted(data):
		checks = append(checks, cli.Pass("bundle", cfg.Bundle.Path+" (sealed)"))
	default:
		checks = append(checks, cli.Pass("bundle", cfg.Bundle.Path+" (unsealed)"))
	}
	return checks
}
