// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
)

// Check is one row of a checklist: a health check, or one record of a
// provisioning report.
type Check struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Pass creates a passing check.
func Pass(name, message string) Check { return Check{Name: name, Status: StatusPass, Message: message} }

// Fail creates a failing check.
func Fail(name, message string) Check { return Check{Name: name, Status: StatusFail, Message: message} }

// Warn creates a warning. Warnings do not fail the checklist.
func Warn(name, message string) Check { return Check{Name: name, Status: StatusWarn, Message: message} }

// Skip creates a skipped check, used when a prerequisite failed.
func Skip(name, message string) Check { return Check{Name: name, Status: StatusSkip, Message: message} }

// ChecklistOK reports whether no check failed.
func ChecklistOK(checks []Check) bool {
	for _, check := range checks {
		if check.Status == StatusFail {
			return false
		}
	}
	return true
}

// PrintChecklist writes one aligned row per check followed by a summary
// line. Returns an [ExitError] with code 1 if any check failed, so the
// caller can return it directly.
func PrintChecklist(w io.Writer, checks []Check, styles Styles) error {
	failed := 0
	for _, check := range checks {
		fmt.Fprintf(w, "%s  %-24s  %s\n", styles.Label(check.Status), check.Name, check.Message)
		if check.Status == StatusFail {
			failed++
		}
	}
	fmt.Fprintln(w)

	if failed > 0 {
		fmt.Fprintf(w, "%d of %d check(s) failed.\n", failed, len(checks))
		return &ExitError{Code: 1}
	}
	fmt.Fprintln(w, "All checks passed.")
	return nil
}
