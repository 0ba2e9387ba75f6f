// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/bureau-foundation/keyprov/cmd/keyprov/cli"
	"github.com/bureau-foundation/keyprov/lib/eeprom"
)

func traceCommand() *cli.Command {
	return &cli.Command{
		Name:    "trace",
		Summary: "Read transport traces",
		Description: `Read the CBOR traces written with --trace or trace.path.

A trace records every transport step of a run (address priming, page
writes, write-cycle polls, aborts, backoff waits, and reads) with
addresses and byte counts. It never contains the bytes themselves.`,
		Subcommands: []*cli.Command{
			traceShowCommand(),
		},
	}
}

type traceShowParams struct {
	cli.JSONOutput
	Kinds []string `json:"kinds" flag:"kind" desc:"only show these event kinds (repeatable)"`
}

// traceSummary totals a trace.
type traceSummary struct {
	Events   int                      `json:"events"`
	ByKind   map[eeprom.EventKind]int `json:"by_kind"`
	Waited   time.Duration            `json:"waited_ns"`
	Duration time.Duration            `json:"duration_ns"`
}

func traceShowCommand() *cli.Command {
	var params traceShowParams

	return &cli.Command{
		Name:    "show",
		Summary: "Print a trace, one event per line",
		Usage:   "keyprov trace show FILE [flags]",
		Examples: []cli.Example{
			{
				Description: "Show only the aborts and backoff waits of a run",
				Command:     "keyprov trace show run.trace --kind abort --kind backoff",
			},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("exactly one trace file is required")
			}
			file, err := os.Open(args[0])
			if err != nil {
				return classify("opening trace", err)
			}
			defer file.Close()

			var events []eeprom.Event
			summary, err := showTrace(file, params.Kinds, func(event eeprom.Event) error {
				if params.OutputJSON {
					events = append(events, event)
					return nil
				}
				_, err := fmt.Fprintln(os.Stdout, event.String())
				return err
			})
			if err != nil {
				return cli.Internal("reading trace %s: %w", args[0], err)
			}

			if params.OutputJSON {
				return cli.WriteJSON(os.Stdout, struct {
					Events  []eeprom.Event `json:"events"`
					Summary traceSummary   `json:"summary"`
				}{events, summary})
			}
			fmt.Fprintf(os.Stdout, "\n%d events over %s, %s in backoff\n", summary.Events, summary.Duration, summary.Waited)
			for _, kind := range slices.Sorted(maps.Keys(summary.ByKind)) {
				fmt.Fprintf(os.Stdout, "  %-8s %d\n", kind, summary.ByKind[kind])
			}
			return nil
		},
	}
}

// showTrace streams the trace in r to visit, keeping only the listed
// kinds when any are given, and totals what it saw.
func showTrace(r io.Reader, kinds []string, visit func(eeprom.Event) error) (traceSummary, error) {
	summary := traceSummary{ByKind: make(map[eeprom.EventKind]int)}
	var first, last time.Time
	err := eeprom.ReadTrace(r, func(event eeprom.Event) error {
		if len(kinds) > 0 && !slices.Contains(kinds, string(event.Kind)) {
			return nil
		}
		if summary.Events == 0 {
			first = event.Time
		}
		last = event.Time
		summary.Events++
		summary.ByKind[event.Kind]++
		if event.Kind == eeprom.EventBackoff {
			summary.Waited += event.Wait
		}
		return visit(event)
	})
	summary.Duration = last.Sub(first)
	return summary, err
}
