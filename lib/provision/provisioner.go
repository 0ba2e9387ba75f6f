// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bureau-foundation/keyprov/lib/blockcipher"
	"github.com/bureau-foundation/keyprov/lib/sessionkey"
)

// Materials supplies the plaintext for each record by name. The
// returned slice is borrowed for the duration of one Store or Verify.
type Materials interface {
	Lookup(name string) ([]byte, bool)
}

// Config configures a Provisioner.
type Config struct {
	// Transport reaches the device. Required.
	Transport Transport

	// Layout places the records. It must already be valid.
	Layout Layout

	// Key is the session key, borrowed for the Provisioner's
	// lifetime. Required when the layout has encrypted records.
	Key []byte

	// Logger receives one line per record. Required.
	Logger *slog.Logger
}

// Provisioner stores and verifies a full layout.
type Provisioner struct {
	transport Transport
	layout    Layout
	key       []byte
	logger    *slog.Logger
}

// NewProvisioner returns a Provisioner for config.
func NewProvisioner(config Config) (*Provisioner, error) {
	if config.Transport == nil {
		return nil, fmt.Errorf("provision: transport is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("provision: logger is required")
	}
	if len(config.Key) != sessionkey.KeySize && slices.ContainsFunc(config.Layout.Records, func(record Record) bool { return record.Encrypted }) {
		return nil, fmt.Errorf("provision: session key must be %d bytes, got %d", sessionkey.KeySize, len(config.Key))
	}
	return &Provisioner{
		transport: config.Transport,
		layout:    config.Layout,
		key:       config.Key,
		logger:    config.Logger,
	}, nil
}

// Result is the outcome for one record.
type Result struct {
	Record string `json:"record"`
	Offset int    `json:"offset"`

	// Expected is the plaintext length.
	Expected int `json:"expected"`

	// Written is the number of bytes the device accepted, including
	// block padding. Zero for verify-only runs.
	Written int `json:"written,omitempty"`

	// Matched is the verified prefix length.
	Matched int `json:"matched"`

	// Fingerprint identifies the bytes read back.
	Fingerprint Fingerprint `json:"-"`

	// Skipped records had no material.
	Skipped bool `json:"skipped,omitempty"`
}

// OK reports whether the record verified completely. Skipped records
// are not failures.
func (r Result) OK() bool {
	return r.Skipped || r.Matched == r.Expected
}

// Report collects the results of a run in layout order.
type Report struct {
	Results []Result `json:"results"`

	// Unused lists material names the layout has no record for.
	Unused []string `json:"unused,omitempty"`
}

// OK reports whether every record verified.
func (r *Report) OK() bool {
	for _, result := range r.Results {
		if !result.OK() {
			return false
		}
	}
	return true
}

// Failed returns the results that did not verify.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, result := range r.Results {
		if !result.OK() {
			failed = append(failed, result)
		}
	}
	return failed
}

// Run stores and then verifies every record that has material. A
// record named RecordSignature with no material gets DefaultSignature.
// Transport failures stop the run and return the report so far with
// the error.
func (p *Provisioner) Run(ctx context.Context, materials Materials) (*Report, error) {
	return p.each(ctx, materials, true)
}

// Check verifies every record that has material without writing.
func (p *Provisioner) Check(ctx context.Context, materials Materials) (*Report, error) {
	return p.each(ctx, materials, false)
}

func (p *Provisioner) each(ctx context.Context, materials Materials, write bool) (*Report, error) {
	report := &Report{}
	for _, record := range p.layout.Records {
		plaintext, ok := materials.Lookup(record.Name)
		if !ok && record.Name == RecordSignature {
			plaintext, ok = []byte(DefaultSignature), true
		}
		result := Result{Record: record.Name, Offset: record.Offset, Expected: len(plaintext)}
		if !ok {
			result.Skipped = true
			report.Results = append(report.Results, result)
			p.logger.Warn("no material for record, skipping", "record", record.Name)
			continue
		}

		if write {
			written, err := Store(ctx, p.transport, record, plaintext, p.key)
			result.Written = written
			if err != nil {
				report.Results = append(report.Results, result)
				return report, err
			}
			if size := blockcipher.RoundUp(len(plaintext)); written < size {
				p.logger.Warn("device accepted fewer bytes than written",
					"record", record.Name,
					"written", written,
					"size", size,
				)
			}
		}

		matched, fingerprint, err := verify(ctx, p.transport, record, plaintext, p.key, record.Encrypted)
		result.Matched = matched
		result.Fingerprint = fingerprint
		report.Results = append(report.Results, result)
		if err != nil {
			return report, err
		}

		if result.OK() {
			p.logger.Info("record verified",
				"record", record.Name,
				"offset", record.Offset,
				"bytes", matched,
				"fingerprint", fingerprint.Short(),
			)
		} else {
			p.logger.Error("record verification failed",
				"record", record.Name,
				"offset", record.Offset,
				"matched", matched,
				"expected", len(plaintext),
			)
		}
	}

	if lister, ok := materials.(interface{ Names() []string }); ok {
		for _, name := range lister.Names() {
			if _, known := p.layout.Record(name); !known {
				report.Unused = append(report.Unused, name)
			}
		}
		if len(report.Unused) > 0 {
			p.logger.Warn("material has no record in the layout", "names", report.Unused)
		}
	}
	return report, nil
}
