// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Status is the outcome shown in a checklist row.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusWarn Status = "warn"
	StatusSkip Status = "skip"
)

// Styles colours status labels. The zero value renders plain text.
type Styles struct {
	enabled bool
	pass    lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	skip    lipgloss.Style
	dim     lipgloss.Style
}

// StdoutStyles returns colour styles when stdout is a terminal and
// plain styles otherwise.
func StdoutStyles() Styles {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return Styles{}
	}
	return Styles{
		enabled: true,
		pass:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		fail:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		skip:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		dim:     lipgloss.NewStyle().Faint(true),
	}
}

// Label renders status as a fixed-width "[PASS ]" style label.
func (s Styles) Label(status Status) string {
	label := "[" + padRight(strings.ToUpper(string(status)), 5) + "]"
	if !s.enabled {
		return label
	}
	switch status {
	case StatusPass:
		return s.pass.Render(label)
	case StatusFail:
		return s.fail.Render(label)
	case StatusWarn:
		return s.warn.Render(label)
	default:
		return s.skip.Render(label)
	}
}

// Dim renders secondary text, such as fingerprints.
func (s Styles) Dim(text string) string {
	if !s.enabled {
		return text
	}
	return s.dim.Render(text)
}

func padRight(text string, width int) string {
	if len(text) >= width {
		return text
	}
	return text + strings.Repeat(" ", width-len(text))
}
