// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Package image materializes a decoded [policy.Image] into a plain
// unikernel binary on disk, inflating the amd64_compressed variant
// along the way.
package image

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/flate"
	"github.com/zeebo/blake3"

	"github.com/ukvm-io/vmd/lib/policy"
)

// WriteTo decompresses (if needed) img's payload and writes it to
// path, which must be inside the daemon's working directory per
// spec.md §4.5's VM spawn continuation: "writes the image to a
// working-directory file named by id." The file is created with 0o700
// permissions — the image is an executable the hypervisor will run.
func WriteTo(path string, img policy.Image) error {
	payload, err := Payload(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, payload, 0o700); err != nil {
		return fmt.Errorf("image: write %s: %w", path, err)
	}
	return nil
}

// Payload returns img's raw unikernel bytes, inflating
// [policy.ImageAmd64Compressed] payloads with DEFLATE.
func Payload(img policy.Image) ([]byte, error) {
	switch img.Kind {
	case policy.ImageAmd64, policy.ImageArm64:
		return img.Payload, nil
	case policy.ImageAmd64Compressed:
		return inflate(img.Payload)
	default:
		return nil, fmt.Errorf("image: unsupported kind %v", img.Kind)
	}
}

// HashFile returns the hex-encoded BLAKE3 digest of the file at path.
// Called after [WriteTo] so the daemon's log can report a VM's image
// identity independent of the working-directory filename, which only
// encodes the VM id.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("image: hash %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("image: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func inflate(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("image: inflate: %w", err)
	}
	return out, nil
}
