// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package simbus

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how an image stores device memory. Values are
// persisted in image headers.
type Compression uint8

const (
	// CompressionNone stores memory verbatim.
	CompressionNone Compression = 0

	// CompressionLZ4 stores memory as one LZ4 block.
	CompressionLZ4 Compression = 1

	// CompressionZstd stores memory as one zstd frame.
	CompressionZstd Compression = 2

	// CompressionAuto is a request, never a stored value: probe the
	// memory and pick the best of the above.
	CompressionAuto Compression = 255
)

// String returns the configuration name of c.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionAuto:
		return "auto"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a configuration name. The empty string means
// auto.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	case "auto", "":
		return CompressionAuto, nil
	default:
		return 0, fmt.Errorf("unknown image compression %q (want none, lz4, zstd, or auto)", name)
	}
}

// errIncompressible is returned when the compressed form is not smaller
// than the input. Callers fall back to CompressionNone.
var errIncompressible = errors.New("data is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("simbus: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("simbus: zstd decoder initialization failed: " + err.Error())
	}
}

// compress returns data encoded with c and the compression actually
// used. Incompressible data is returned as-is with CompressionNone.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	if c == CompressionAuto {
		c = selectCompression(data)
	}

	var (
		encoded []byte
		err     error
	)
	switch c {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		encoded, err = compressLZ4(data)
	case CompressionZstd:
		encoded, err = compressZstd(data)
	default:
		return nil, 0, fmt.Errorf("unsupported image compression %s", c)
	}
	if errors.Is(err, errIncompressible) {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return encoded, c, nil
}

// decompress reverses compress. size is the exact expected output
// length.
func decompress(encoded []byte, c Compression, size int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(encoded) != size {
			return nil, fmt.Errorf("uncompressed image: size %d does not match expected %d", len(encoded), size)
		}
		return encoded, nil
	case CompressionLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(encoded, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return destination, nil
	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(encoded, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported image compression %s", c)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

// selectCompression probes data with zstd. Mostly-erased images
// compress extremely well and get zstd; images dominated by ciphertext
// barely compress and are stored raw. LZ4 covers the middle ground.
func selectCompression(data []byte) Compression {
	if len(data) == 0 {
		return CompressionNone
	}
	ratio := float64(len(data)) / float64(len(zstdEncoder.EncodeAll(data, nil)))
	switch {
	case ratio >= 1.5:
		return CompressionZstd
	case ratio >= 1.1:
		return CompressionLZ4
	default:
		return CompressionNone
	}
}
