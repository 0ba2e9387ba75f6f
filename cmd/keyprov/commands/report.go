// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"

	"github.com/bureau-foundation/keyprov/cmd/keyprov/cli"
	"github.com/bureau-foundation/keyprov/lib/provision"
)

// reportOutput is the JSON form of a provisioning or verify run.
type reportOutput struct {
	Operation string         `json:"operation"`
	Board     string         `json:"board,omitempty"`
	Target    string         `json:"target"`
	Results   []recordOutput `json:"results"`
	Unused    []string       `json:"unused,omitempty"`
	OK        bool           `json:"ok"`
}

// recordOutput is one record of a reportOutput.
type recordOutput struct {
	provision.Result
	Status      cli.Status `json:"status"`
	Fingerprint string     `json:"fingerprint,omitempty"`
}

func newReportOutput(s *session, report *provision.Report, write bool) reportOutput {
	output := reportOutput{
		Operation: "verify",
		Board:     s.config.Board,
		Target:    fmt.Sprintf("0x%02x", s.config.Target.Address),
		Unused:    report.Unused,
		OK:        report.OK(),
	}
	if write {
		output.Operation = "provision"
	}
	for _, result := range report.Results {
		record := recordOutput{Result: result, Status: resultStatus(result)}
		if !result.Fingerprint.IsZero() {
			record.Fingerprint = result.Fingerprint.String()
		}
		output.Results = append(output.Results, record)
	}
	return output
}

func resultStatus(result provision.Result) cli.Status {
	switch {
	case result.Skipped:
		return cli.StatusSkip
	case result.OK():
		return cli.StatusPass
	default:
		return cli.StatusFail
	}
}

// reportChecks renders each record as a checklist row.
func reportChecks(output reportOutput, styles cli.Styles) []cli.Check {
	checks := make([]cli.Check, 0, len(output.Results)+len(output.Unused))
	for _, record := range output.Results {
		name := fmt.Sprintf("%s @0x%04x", record.Record, record.Offset)
		var message string
		switch record.Status {
		case cli.StatusSkip:
			message = "no material in bundle"
		case cli.StatusPass:
			message = fmt.Sprintf("%d bytes verified", record.Matched)
		default:
			message = fmt.Sprintf("matched %d of %d bytes", record.Matched, record.Expected)
		}
		if record.Fingerprint != "" {
			message += "  " + styles.Dim("blake3:"+record.Result.Fingerprint.Short())
		}
		checks = append(checks, cli.Check{Name: name, Status: record.Status, Message: message})
	}
	for _, name := range output.Unused {
		checks = append(checks, cli.Warn(name, "bundle record has no place in the layout"))
	}
	return checks
}

// printReport writes the checklist for output. The exit status is
// decided by the caller from the report itself.
func printReport(w io.Writer, output reportOutput, styles cli.Styles) {
	fmt.Fprintf(w, "%s: target %s", output.Operation, output.Target)
	if output.Board != "" {
		fmt.Fprintf(w, " on %s", output.Board)
	}
	fmt.Fprint(w, "\n\n")
	_ = cli.PrintChecklist(w, reportChecks(output, styles), styles)
}
