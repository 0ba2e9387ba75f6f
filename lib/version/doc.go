// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for keyprov.
//
// Version information is injected at build time via -ldflags, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/keyprov/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without -ldflags the commit falls back to the VCS revision the Go
// toolchain stamps into the binary.
package version
