// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/keyprov/cmd/keyprov/cli"
	"github.com/bureau-foundation/keyprov/lib/bus"
	"github.com/bureau-foundation/keyprov/lib/bus/i2cdev"
	"github.com/bureau-foundation/keyprov/lib/bus/simbus"
	"github.com/bureau-foundation/keyprov/lib/config"
	"github.com/bureau-foundation/keyprov/lib/eeprom"
	"github.com/bureau-foundation/keyprov/lib/provision"
)

// deviceOptions are the flags of commands that open the EEPROM.
type deviceOptions struct {
	Trace string `json:"-" flag:"trace" desc:"write a CBOR transport trace to this file (default: trace.path from config)"`
}

// loadConfig reads the configuration named by --config, or by
// KEYPROV_CONFIG, and validates it.
func loadConfig(options cli.GlobalOptions) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if options.ConfigPath != "" {
		cfg, err = config.LoadFile(options.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, cli.NotFound("loading configuration: %w", err)
		}
		return nil, cli.Validation("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// commandLogger applies the config's log level when --log-level was
// not given.
func commandLogger(options cli.GlobalOptions, cfg *config.Config, logger *slog.Logger) (*slog.Logger, error) {
	if options.LogLevel != "" || cfg.Log.Level == "" {
		return logger, nil
	}
	configured, err := cli.NewCommandLogger(cfg.Log.Level)
	if err != nil {
		return nil, cli.Validation("log.level: %w", err)
	}
	return configured, nil
}

// session is an open EEPROM with its configuration. Close releases the
// channel and, for the sim driver, saves the image.
type session struct {
	config  *config.Config
	layout  provision.Layout
	logger  *slog.Logger
	channel bus.Channel
	device  *eeprom.Device

	tracer    *eeprom.CBORTracer
	traceFile *os.File
}

// openSession loads the configuration and opens the configured device.
func openSession(options cli.GlobalOptions, device deviceOptions, logger *slog.Logger) (*session, error) {
	cfg, err := loadConfig(options)
	if err != nil {
		return nil, err
	}
	logger, err = commandLogger(options, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &session{config: cfg, layout: cfg.EffectiveLayout(), logger: logger}

	s.channel, err = openChannel(cfg)
	if err != nil {
		return nil, err
	}

	tracePath := device.Trace
	if tracePath == "" {
		tracePath = cfg.Trace.Path
	}
	var tracer eeprom.Tracer
	if tracePath != "" {
		s.traceFile, err = os.Create(tracePath)
		if err != nil {
			s.Close()
			return nil, cli.Internal("creating trace file: %w", err)
		}
		s.tracer = eeprom.NewCBORTracer(s.traceFile)
		tracer = s.tracer
	}

	s.device, err = eeprom.New(eeprom.Config{
		Channel:  s.channel,
		Target:   cfg.Target.Address,
		PageSize: cfg.Target.PageSize,
		Retry:    cfg.RetryPolicy(),
		Logger:   logger,
		Tracer:   tracer,
	})
	if err != nil {
		s.Close()
		return nil, cli.Validation("%w", err)
	}

	logger.Debug("device opened",
		"board", cfg.Board,
		"driver", cfg.Bus.Driver,
		"target", fmt.Sprintf("0x%02x", cfg.Target.Address),
		"page_size", cfg.Target.PageSize,
		"capacity", cfg.Target.Capacity,
	)
	return s, nil
}

// openChannel opens the bus channel selected by cfg.Bus.Driver.
func openChannel(cfg *config.Config) (bus.Channel, error) {
	switch cfg.Bus.Driver {
	case config.DriverI2CDev:
		channel, err := i2cdev.Open(cfg.Bus.Device)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, cli.NotFound("%w", err).
					WithHint("Load the i2c-dev module or set bus.device in the configuration.")
			}
			return nil, cli.Internal("%w", err)
		}
		return channel, nil

	case config.DriverSim:
		compression, err := cfg.Compression()
		if err != nil {
			return nil, cli.Validation("bus.compression: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Bus.Image), 0o755); err != nil {
			return nil, cli.Internal("creating image directory: %w", err)
		}
		channel, err := simbus.OpenFile(cfg.Bus.Image, cfg.SimOptions(), compression)
		if err != nil {
			return nil, cli.Validation("%w", err)
		}
		return channel, nil
	}
	return nil, cli.Validation("unknown bus driver %q", cfg.Bus.Driver)
}

// Close releases the channel and the trace file. Errors from saving a
// simulated image are returned, since losing them loses the run.
func (s *session) Close() error {
	var errs []error
	if s.channel != nil {
		if err := bus.Close(s.channel); err != nil {
			errs = append(errs, cli.Internal("closing bus: %w", err))
		}
	}
	if s.traceFile != nil {
		if s.tracer != nil {
			if err := s.tracer.Err(); err != nil {
				errs = append(errs, cli.Internal("writing trace: %w", err))
			} else {
				s.logger.Info("trace written", "path", s.traceFile.Name(), "events", s.tracer.Count())
			}
		}
		if err := s.traceFile.Close(); err != nil {
			errs = append(errs, cli.Internal("closing trace file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// closeSession closes s and folds its error into *errp without hiding
// an earlier one.
func closeSession(s *session, errp *error) {
	if err := s.Close(); err != nil && *errp == nil {
		*errp = err
	}
}
