// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package simbus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/keyprov/lib/codec"
)

// imageVersion is the current image file format version.
const imageVersion = 1

// imageFile is the on-disk form of a simulated device: one CBOR value
// carrying the geometry and the (possibly compressed) memory.
type imageFile struct {
	Version     int         `cbor:"version"`
	Target      uint16      `cbor:"target"`
	Capacity    int         `cbor:"capacity"`
	PageSize    int         `cbor:"page_size"`
	Compression Compression `cbor:"compression"`
	Data        []byte      `cbor:"data"`
}

// ImageInfo describes an image file without exposing its contents.
type ImageInfo struct {
	Target      uint16      `json:"target"`
	Capacity    int         `json:"capacity"`
	PageSize    int         `json:"page_size"`
	Compression Compression `json:"-"`
	StoredSize  int         `json:"stored_size"`

	// Erased counts cells still holding the erased value.
	Erased int `json:"erased"`
}

// SaveImage writes the device geometry and memory to w.
func SaveImage(w io.Writer, device *EEPROM, compression Compression) error {
	memory := device.Memory()
	encoded, used, err := compress(memory, compression)
	if err != nil {
		return fmt.Errorf("compressing image: %w", err)
	}
	options := device.Options()
	return codec.NewEncoder(w).Encode(imageFile{
		Version:     imageVersion,
		Target:      options.Target,
		Capacity:    options.Capacity,
		PageSize:    options.PageSize,
		Compression: used,
		Data:        encoded,
	})
}

// LoadImage reads an image from r and returns a device holding its
// memory. writeCycle is applied as in Options.
func LoadImage(r io.Reader, writeCycle int) (*EEPROM, ImageInfo, error) {
	var file imageFile
	if err := codec.NewDecoder(r).Decode(&file); err != nil {
		return nil, ImageInfo{}, fmt.Errorf("decoding image: %w", err)
	}
	if file.Version != imageVersion {
		return nil, ImageInfo{}, fmt.Errorf("unsupported image version %d (want %d)", file.Version, imageVersion)
	}

	device, err := New(Options{
		Target:     file.Target,
		Capacity:   file.Capacity,
		PageSize:   file.PageSize,
		WriteCycle: writeCycle,
	})
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("image geometry: %w", err)
	}
	memory, err := decompress(file.Data, file.Compression, file.Capacity)
	if err != nil {
		return nil, ImageInfo{}, err
	}
	if err := device.Load(memory); err != nil {
		return nil, ImageInfo{}, err
	}

	info := ImageInfo{
		Target:      file.Target,
		Capacity:    file.Capacity,
		PageSize:    file.PageSize,
		Compression: file.Compression,
		StoredSize:  len(file.Data),
	}
	for _, value := range memory {
		if value == erasedByte {
			info.Erased++
		}
	}
	return device, info, nil
}

// SaveImageFile writes an image atomically: to a temporary file in the
// same directory, then renamed over path.
func SaveImageFile(path string, device *EEPROM, compression Compression) error {
	temporary, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating image file: %w", err)
	}
	temporaryPath := temporary.Name()
	if err := SaveImage(temporary, device, compression); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return err
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("writing image file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("installing image file: %w", err)
	}
	return nil
}

// LoadImageFile reads the image at path.
func LoadImageFile(path string, writeCycle int) (*EEPROM, ImageInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ImageInfo{}, err
	}
	defer file.Close()
	return LoadImage(file, writeCycle)
}

// FileChannel is a simulated device persisted to an image file. Close
// writes the memory back.
type FileChannel struct {
	*EEPROM
	path        string
	compression Compression
}

// OpenFile loads the image at path, or creates a blank device with
// options when the file does not exist yet. The geometry of an existing
// image must match options.
func OpenFile(path string, options Options, compression Compression) (*FileChannel, error) {
	device, _, err := LoadImageFile(path, options.WriteCycle)
	switch {
	case errors.Is(err, os.ErrNotExist):
		device, err = New(options)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("loading image %s: %w", path, err)
	default:
		want := options.withDefaults()
		have := device.Options()
		if have.Target != want.Target || have.Capacity != want.Capacity || have.PageSize != want.PageSize {
			return nil, fmt.Errorf("image %s holds a device at 0x%02x with %d bytes in %d-byte pages, configuration expects 0x%02x with %d bytes in %d-byte pages",
				path, have.Target, have.Capacity, have.PageSize, want.Target, want.Capacity, want.PageSize)
		}
	}
	return &FileChannel{EEPROM: device, path: path, compression: compression}, nil
}

// Path returns the backing image path.
func (f *FileChannel) Path() string { return f.path }

// Close saves the device memory to the image file.
func (f *FileChannel) Close() error {
	return SaveImageFile(f.path, f.EEPROM, f.compression)
}
