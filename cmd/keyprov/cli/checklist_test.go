// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestPrintChecklist_AllPass(t *testing.T) {
	checks := []Check{
		Pass("config", "defaults"),
		Warn("trace", "disabled"),
		Skip("bundle", "no bundle configured"),
	}

	var output bytes.Buffer
	if err := PrintChecklist(&output, checks, Styles{}); err != nil {
		t.Fatalf("PrintChecklist() = %v, want nil", err)
	}
	text := output.String()
	for _, want := range []string{"[PASS ]  config", "[WARN ]  trace", "[SKIP ]  bundle", "All checks passed."} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q\n\n%s", want, text)
		}
	}
	if !ChecklistOK(checks) {
		t.Error("ChecklistOK() = false, want true")
	}
}

func TestPrintChecklist_FailureReturnsExitError(t *testing.T) {
	checks := []Check{
		Pass("signature", "16/16 bytes"),
		Fail("lc128", "matched 12/288 bytes"),
	}

	var output bytes.Buffer
	err := PrintChecklist(&output, checks, Styles{})
	var exitError *ExitError
	if !errors.As(err, &exitError) || exitError.Code != 1 {
		t.Fatalf("PrintChecklist() = %v, want ExitError{1}", err)
	}
	if !strings.Contains(output.String(), "1 of 2 check(s) failed.") {
		t.Errorf("output missing failure summary:\n%s", output.String())
	}
	if ChecklistOK(checks) {
		t.Error("ChecklistOK() = true, want false")
	}
}

func TestStyles_PlainLabels(t *testing.T) {
	var styles Styles
	tests := map[Status]string{
		StatusPass: "[PASS ]",
		StatusFail: "[FAIL ]",
		StatusWarn: "[WARN ]",
		StatusSkip: "[SKIP ]",
	}
	for status, want := range tests {
		if got := styles.Label(status); got != want {
			t.Errorf("Label(%s) = %q, want %q", status, got, want)
		}
	}
	if got := styles.Dim("fp"); got != "fp" {
		t.Errorf("Dim() = %q, want plain text", got)
	}
}
