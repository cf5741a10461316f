// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest computes BLAKE3 digests of deployment artifacts.
// Setup logs the deployable's digest so operators can correlate what a
// device runs with what was shipped, and diagnostic bundles record unit
// file digests the same way. Digests are informational: nothing gates
// on them.
package digest

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [32]byte

// Bytes computes the digest of a byte slice.
func Bytes(data []byte) Hash {
	var hash Hash
	sum := blake3.Sum256(data)
	copy(hash[:], sum[:])
	return hash
}

// File computes the digest of the file at path, streaming, and returns
// the file size alongside.
func File(path string) (Hash, int64, error) {
	var hash Hash

	file, err := os.Open(path)
	if err != nil {
		return hash, 0, err
	}
	defer file.Close()

	hasher := blake3.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return hash, 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	copy(hash[:], hasher.Sum(nil))
	return hash, size, nil
}

// Format returns the hex-encoded string representation of a hash, the
// canonical form used in logs and bundle manifests.
func Format(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

// Parse parses a 64-character hex string into a Hash.
func Parse(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != 32 {
		return hash, fmt.Errorf("digest is %d bytes, want 32", len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}
