// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestBindFlags_BasicTypes(t *testing.T) {
	type params struct {
		Record   string        `flag:"record,r" desc:"record name"`
		Yes      bool          `flag:"yes,y" desc:"skip confirmation"`
		Length   int           `flag:"length" desc:"bytes to read"`
		Offset   int64         `flag:"offset" desc:"byte offset"`
		Timeout  time.Duration `flag:"timeout" desc:"operation timeout"`
		Keys     []string      `flag:"recipient" desc:"age recipients"`
		Untagged string
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	err := flagSet.Parse([]string{
		"-r", "lc128",
		"-y",
		"--length", "288",
		"--offset", "0x200",
		"--timeout", "30s",
		"--recipient", "age1a,age1b",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Record != "lc128" {
		t.Errorf("Record = %q, want lc128", p.Record)
	}
	if !p.Yes {
		t.Error("Yes = false, want true")
	}
	if p.Length != 288 {
		t.Errorf("Length = %d, want 288", p.Length)
	}
	if p.Offset != 0x200 {
		t.Errorf("Offset = %d, want 512", p.Offset)
	}
	if p.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", p.Timeout)
	}
	if len(p.Keys) != 2 || p.Keys[0] != "age1a" || p.Keys[1] != "age1b" {
		t.Errorf("Keys = %v, want [age1a age1b]", p.Keys)
	}
	if p.Untagged != "" {
		t.Errorf("Untagged = %q, want empty", p.Untagged)
	}
}

func TestBindFlags_Defaults(t *testing.T) {
	type params struct {
		Compression string        `flag:"compression" default:"auto"`
		Capacity    int           `flag:"capacity" default:"2048"`
		Offset      int64         `flag:"offset" default:"0x40"`
		Backoff     time.Duration `flag:"backoff" default:"200us"`
		Force       bool          `flag:"force" default:"true"`
		Names       []string      `flag:"names" default:"a,b"`
	}

	var p params
	if err := BindFlags(&p, pflag.NewFlagSet("test", pflag.ContinueOnError)); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if p.Compression != "auto" || p.Capacity != 2048 || p.Offset != 0x40 ||
		p.Backoff != 200*time.Microsecond || !p.Force || len(p.Names) != 2 {
		t.Errorf("defaults not applied: %+v", p)
	}
}

func TestBindFlags_EmbeddedGroups(t *testing.T) {
	type params struct {
		GlobalOptions
		JSONOutput
		Yes bool `flag:"yes"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	for _, name := range []string{"config", "log-level", "json", "yes"} {
		if flagSet.Lookup(name) == nil {
			t.Errorf("flag --%s not bound", name)
		}
	}
	if err := flagSet.Parse([]string{"-c", "/tmp/k.yaml"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.ConfigPath != "/tmp/k.yaml" {
		t.Errorf("ConfigPath = %q", p.ConfigPath)
	}
}

func TestBindFlags_Errors(t *testing.T) {
	type unsupported struct {
		Ratio float32 `flag:"ratio"`
	}
	type badDefault struct {
		Count int `flag:"count" default:"many"`
	}

	tests := []struct {
		name   string
		params any
		want   string
	}{
		{"not a pointer", unsupported{}, "pointer to a struct"},
		{"unsupported type", &unsupported{}, "unsupported type"},
		{"bad default", &badDefault{}, "default for --count"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := BindFlags(test.params, pflag.NewFlagSet("test", pflag.ContinueOnError))
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("BindFlags() = %v, want error containing %q", err, test.want)
			}
		})
	}
}

func TestFlagsFromParams_PanicsOnInvalid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("FlagsFromParams should panic on a non-pointer")
		}
	}()
	FlagsFromParams("bad", struct{}{})
}
