// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bureau-foundation/keyprov/cmd/keyprov/cli"
	"github.com/bureau-foundation/keyprov/lib/blockcipher"
	"github.com/bureau-foundation/keyprov/lib/provision"
	"github.com/bureau-foundation/keyprov/lib/secret"
	"github.com/bureau-foundation/keyprov/lib/sessionkey"
)

type getParams struct {
	cli.GlobalOptions
	cli.JSONOutput
	deviceOptions
	Record       string `json:"record"  flag:"record,r"      desc:"record to read (required)"`
	Length       int    `json:"length"  flag:"length,n"      desc:"bytes to read (default: the record's full size)"`
	Decrypt      bool   `json:"decrypt" flag:"decrypt"       desc:"decrypt with the session key before dumping"`
	PasswordFile string `json:"-"       flag:"password-file" desc:"read the password from this file, or - for stdin (default: prompt)"`
}

// getOutput is the JSON form of a get.
type getOutput struct {
	Record      string `json:"record"`
	Offset      int    `json:"offset"`
	Requested   int    `json:"requested"`
	Read        int    `json:"read"`
	Decrypted   bool   `json:"decrypted"`
	Data        string `json:"data"`
	Fingerprint string `json:"fingerprint"`
}

func getCommand() *cli.Command {
	var params getParams

	return &cli.Command{
		Name:    "get",
		Summary: "Hex dump the bytes stored in a record",
		Description: `Read a record from the EEPROM and print a hex dump.

Encrypted records are shown as stored ciphertext unless --decrypt is
given, which prompts for the password. Decryption works on whole
16-byte blocks, so --length must be a multiple of 16 with --decrypt.
The BLAKE3 fingerprint of the raw bytes matches the one printed by
provision and verify.`,
		Usage: "keyprov get --record NAME [--length N] [flags]",
		Examples: []cli.Example{
			{
				Description: "Dump the stored signature",
				Command:     "keyprov get --record signature",
			},
			{
				Description: "Decrypt the first block of the certificate",
				Command:     "keyprov get -r certificate -n 16 --decrypt",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			if params.Record == "" {
				return cli.Validation("--record is required")
			}
			return runGet(ctx, &params, logger)
		},
	}
}

func runGet(ctx context.Context, params *getParams, logger *slog.Logger) (err error) {
	s, err := openSession(params.GlobalOptions, params.deviceOptions, logger)
	if err != nil {
		return err
	}
	defer closeSession(s, &err)

	record, err := lookupRecord(s.layout, params.Record)
	if err != nil {
		return err
	}
	length := params.Length
	if length == 0 {
		length = record.Size()
	}
	if length < 0 || length > record.Size() {
		return cli.Validation("--length %d is outside the %d-byte record %s", length, record.Size(), record.Name)
	}
	if params.Decrypt {
		if !record.Encrypted {
			return cli.Validation("record %s is not encrypted", record.Name)
		}
		if length%blockcipher.BlockSize != 0 {
			return cli.Validation("--length must be a multiple of %d with --decrypt", blockcipher.BlockSize)
		}
	}

	data, err := provision.Get(ctx, s.device, record, length)
	if err != nil {
		return classify("get", err)
	}
	defer secret.Zero(data)
	fingerprint := provision.FingerprintOf(data)
	if len(data) < length {
		s.logger.Warn("device returned fewer bytes than requested", "record", record.Name, "read", len(data), "requested", length)
	}

	if params.Decrypt {
		whole, err := decryptInPlace(data, params.PasswordFile)
		if err != nil {
			return err
		}
		data = data[:whole]
	}

	output := getOutput{
		Record:      record.Name,
		Offset:      record.Offset,
		Requested:   length,
		Read:        len(data),
		Decrypted:   params.Decrypt,
		Data:        hex.EncodeToString(data),
		Fingerprint: fingerprint.String(),
	}
	if done, err := params.EmitJSON(output); done {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s @0x%04x  %d of %d bytes  blake3:%s\n\n", record.Name, record.Offset, len(data), length, fingerprint.Short())
	fmt.Fprint(os.Stdout, hex.Dump(data))
	return nil
}

// decryptInPlace prompts for the password and decrypts the whole
// blocks of data, returning how many bytes that covers. A partial
// trailing block from a short read is zeroed.
func decryptInPlace(data []byte, passwordFile string) (int, error) {
	password, err := cli.ReadPassword(passwordFile, sessionkey.PasswordSize)
	if err != nil {
		return 0, err
	}
	defer password.Close()

	key, err := sessionkey.Derive(password.Bytes())
	if err != nil {
		return 0, classify("deriving session key", err)
	}
	defer key.Close()

	whole := len(data) - len(data)%blockcipher.BlockSize
	secret.Zero(data[whole:])
	if err := blockcipher.DecryptBlocks(data[:whole], key.Bytes()); err != nil {
		return 0, classify("decrypting", err)
	}
	return whole, nil
}

// lookupRecord finds name in layout, listing the known names when it
// is absent.
func lookupRecord(layout provision.Layout, name string) (provision.Record, error) {
	record, ok := layout.Record(name)
	if !ok {
		return provision.Record{}, cli.NotFound("no record named %q in the layout", name).
			WithHint("Records: " + strings.Join(layout.Names(), ", "))
	}
	return record, nil
}
