// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package provision writes encrypted key material into an EEPROM at
// fixed offsets and checks it by reading it back.
//
// A [Layout] names each record and its place on the device. [Store]
// pads a record's plaintext to whole cipher blocks, encrypts it with
// the session key and writes it; [Verify] reads it back, decrypts, and
// reports how many leading bytes match. [Get] returns raw stored bytes
// and [Erase] zero-fills everything the layout covers.
//
// [Provisioner] runs Store and Verify for every record of a layout and
// collects the outcome in a [Report]. Reports identify stored
// ciphertext by a BLAKE3 fingerprint, never by content, so they can be
// logged and archived.
package provision
