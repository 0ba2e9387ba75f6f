// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"testing"
)

type mapMaterials map[string][]byte

func (m mapMaterials) Lookup(name string) ([]byte, bool) {
	value, ok := m[name]
	return value, ok
}

func (m mapMaterials) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fullMaterials() mapMaterials {
	return mapMaterials{
		RecordLC128:       bytes.Repeat([]byte{0x11}, 16),
		RecordCertificate: bytes.Repeat([]byte{0x22}, 512),
		RecordKeyA:        bytes.Repeat([]byte{0x33}, 308),
		RecordKeyB:        bytes.Repeat([]byte{0x44}, 308),
	}
}

func newProvisioner(t *testing.T, transport Transport, key []byte) *Provisioner {
	t.Helper()
	provisioner, err := NewProvisioner(Config{
		Transport: transport,
		Layout:    DefaultLayout(),
		Key:       key,
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewProvisioner: %v", err)
	}
	return provisioner
}

func TestProvisioner_RunThenCheck(t *testing.T) {
	ctx := context.Background()
	device, _ := newBench(t)
	key := testKey(t, "operator password")
	provisioner := newProvisioner(t, device, key)

	report, err := provisioner.Run(ctx, fullMaterials())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.OK() {
		t.Fatalf("Run report not OK: %+v", report.Failed())
	}
	if len(report.Results) != 5 {
		t.Fatalf("results = %d, want 5", len(report.Results))
	}

	signature := report.Results[0]
	if signature.Record != RecordSignature || signature.Expected != len(DefaultSignature) || signature.Matched != 16 {
		t.Errorf("signature result = %+v, want default signature verified", signature)
	}
	for _, result := range report.Results {
		if result.Fingerprint.IsZero() {
			t.Errorf("%s has no fingerprint", result.Record)
		}
		if result.Written == 0 {
			t.Errorf("%s reports nothing written", result.Record)
		}
	}

	check, err := provisioner.Check(ctx, fullMaterials())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !check.OK() {
		t.Fatalf("Check report not OK: %+v", check.Failed())
	}
	for i, result := range check.Results {
		if result.Written != 0 {
			t.Errorf("Check wrote %d bytes for %s", result.Written, result.Record)
		}
		if result.Fingerprint != report.Results[i].Fingerprint {
			t.Errorf("%s fingerprint changed between Run and Check", result.Record)
		}
	}
}

func TestProvisioner_CheckWithWrongKeyFails(t *testing.T) {
	ctx := context.Background()
	device, _ := newBench(t)

	if _, err := newProvisioner(t, device, testKey(t, "right")).Run(ctx, fullMaterials()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	report, err := newProvisioner(t, device, testKey(t, "wrong")).Check(ctx, fullMaterials())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.OK() {
		t.Fatal("Check under the wrong key reported OK")
	}
	if len(report.Failed()) != 5 {
		t.Errorf("failed records = %d, want 5", len(report.Failed()))
	}
}

func TestProvisioner_SkipsMissingAndListsUnused(t *testing.T) {
	ctx := context.Background()
	device, _ := newBench(t)
	materials := mapMaterials{
		RecordKeyA:  bytes.Repeat([]byte{0x33}, 308),
		"key-c":     []byte("stray"),
		"signature": []byte("custom_signature"),
	}

	report, err := newProvisioner(t, device, testKey(t, "pw")).Run(ctx, materials)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.OK() {
		t.Fatalf("report not OK: %+v", report.Failed())
	}

	var skipped []string
	for _, result := range report.Results {
		if result.Skipped {
			skipped = append(skipped, result.Record)
		}
	}
	wantSkipped := []string{RecordLC128, RecordCertificate, RecordKeyB}
	if !slices.Equal(skipped, wantSkipped) {
		t.Errorf("skipped = %v, want %v", skipped, wantSkipped)
	}
	if !slices.Equal(report.Unused, []string{"key-c"}) {
		t.Errorf("unused = %v, want [key-c]", report.Unused)
	}
	if report.Results[0].Expected != len("custom_signature") {
		t.Errorf("signature expected = %d, want bundle signature length", report.Results[0].Expected)
	}
}

func TestProvisioner_ShortWritesReported(t *testing.T) {
	report, err := newProvisioner(t, shortTransport{limit: 4}, testKey(t, "pw")).Run(context.Background(), mapMaterials{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	signature := report.Results[0]
	if signature.Written != 4 {
		t.Errorf("written = %d, want 4", signature.Written)
	}
	if signature.OK() {
		t.Error("signature OK despite a short read")
	}
}

func TestNewProvisioner_Validation(t *testing.T) {
	device, _ := newBench(t)
	tests := []struct {
		name   string
		config Config
	}{
		{"missing transport", Config{Layout: DefaultLayout(), Key: make([]byte, 32), Logger: discardLogger()}},
		{"missing logger", Config{Transport: device, Layout: DefaultLayout(), Key: make([]byte, 32)}},
		{"short key", Config{Transport: device, Layout: DefaultLayout(), Key: make([]byte, 16), Logger: discardLogger()}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := NewProvisioner(test.config); err == nil {
				t.Error("NewProvisioner succeeded, want error")
			}
		})
	}

	plain := Layout{Capacity: 2048, Records: []Record{{Name: "serial", Length: 16}}}
	if _, err := NewProvisioner(Config{Transport: device, Layout: plain, Logger: discardLogger()}); err != nil {
		t.Errorf("unencrypted layout without key: %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := FingerprintOf([]byte("ciphertext"))
	b := FingerprintOf([]byte("ciphertext"))
	c := FingerprintOf([]byte("ciphertexT"))
	if a != b {
		t.Error("fingerprint not deterministic")
	}
	if a == c {
		t.Error("different input produced the same fingerprint")
	}
	if len(a.String()) != 64 || len(a.Short()) != 16 {
		t.Errorf("String/Short lengths = %d/%d, want 64/16", len(a.String()), len(a.Short()))
	}
	if !(Fingerprint{}).IsZero() || a.IsZero() {
		t.Error("IsZero wrong")
	}
}
