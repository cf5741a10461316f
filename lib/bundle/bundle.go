// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundle packs diagnostic files into a single zstd-compressed
// tar archive for support. The bundle command decides what goes in
// (reports, redacted configuration, unit files, journal tails); this
// package only assembles the archive and its manifest.
//
// Every bundle opens with manifest.json: creation time, tool version,
// and a BLAKE3 digest per member, so support can spot truncated or
// edited bundles without unpacking everything.
package bundle

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/fridgelab/fridgecam/lib/digest"
)

// ManifestName is the archive member holding the manifest.
const ManifestName = "manifest.json"

// File is one member of a bundle.
type File struct {
	// Name is the member path inside the archive. Forward slashes,
	// no leading slash.
	Name string

	// Data is the member content.
	Data []byte
}

// Manifest describes a bundle's contents.
type Manifest struct {
	CreatedAt time.Time       `json:"created_at"`
	Tool      string          `json:"tool"`
	Files     []ManifestEntry `json:"files"`
}

// ManifestEntry records one member's size and digest.
type ManifestEntry struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// Write assembles files into a zstd-compressed tar stream on w and
// returns the manifest it embedded. The manifest is the first archive
// member. File order is preserved.
func Write(w io.Writer, tool string, createdAt time.Time, files []File) (Manifest, error) {
	manifest := Manifest{
		CreatedAt: createdAt.UTC(),
		Tool:      tool,
	}
	for _, file := range files {
		manifest.Files = append(manifest.Files, ManifestEntry{
			Name:   file.Name,
			Size:   int64(len(file.Data)),
			Digest: digest.Format(digest.Bytes(file.Data)),
		})
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("encoding manifest: %w", err)
	}

	compressor, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return Manifest{}, fmt.Errorf("creating zstd writer: %w", err)
	}
	archive := tar.NewWriter(compressor)

	members := append([]File{{Name: ManifestName, Data: manifestData}}, files...)
	for _, member := range members {
		header := &tar.Header{
			Name:    member.Name,
			Mode:    0o644,
			Size:    int64(len(member.Data)),
			ModTime: createdAt.UTC(),
		}
		if err := archive.WriteHeader(header); err != nil {
			return Manifest{}, fmt.Errorf("writing header for %s: %w", member.Name, err)
		}
		if _, err := archive.Write(member.Data); err != nil {
			return Manifest{}, fmt.Errorf("writing %s: %w", member.Name, err)
		}
	}

	if err := archive.Close(); err != nil {
		return Manifest{}, fmt.Errorf("closing archive: %w", err)
	}
	if err := compressor.Close(); err != nil {
		return Manifest{}, fmt.Errorf("closing zstd stream: %w", err)
	}
	return manifest, nil
}

// Read unpacks a bundle stream into its members, manifest included as
// the first file.
func Read(r io.Reader) ([]File, error) {
	decompressor, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer decompressor.Close()

	archive := tar.NewReader(decompressor)
	var files []File
	for {
		header, err := archive.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		data, err := io.ReadAll(archive)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", header.Name, err)
		}
		files = append(files, File{Name: header.Name, Data: data})
	}
	return files, nil
}

// FileName returns the conventional bundle file name for a creation
// time: fridgecam-bundle-<UTC timestamp>.tar.zst.
func FileName(createdAt time.Time) string {
	return "fridgecam-bundle-" + createdAt.UTC().Format("20060102T150405Z") + ".tar.zst"
}
