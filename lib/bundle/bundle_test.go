// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/fridgelab/fridgecam/lib/digest"
)

var bundleTime = time.Date(2026, 8, 25, 10, 15, 0, 0, time.UTC)

func TestWriteRead_RoundTrip(t *testing.T) {
	t.Parallel()

	files := []File{
		{Name: "verify.json", Data: []byte(`{"ok":true}`)},
		{Name: "journal/fridgecam-server.log", Data: []byte("Aug 25 10:14:59 started\n")},
		{Name: "units/cloudflared.service", Data: []byte("[Unit]\n")},
	}

	var buffer bytes.Buffer
	manifest, err := Write(&buffer, "fridgecam 1.2.0", bundleTime, files)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(manifest.Files) != len(files) {
		t.Fatalf("manifest has %d entries, want %d", len(manifest.Files), len(files))
	}

	members, err := Read(&buffer)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(members) != len(files)+1 {
		t.Fatalf("got %d members, want %d (manifest + files)", len(members), len(files)+1)
	}
	if members[0].Name != ManifestName {
		t.Errorf("first member = %q, want %q", members[0].Name, ManifestName)
	}
	for i, file := range files {
		member := members[i+1]
		if member.Name != file.Name {
			t.Errorf("member %d = %q, want %q", i+1, member.Name, file.Name)
		}
		if !bytes.Equal(member.Data, file.Data) {
			t.Errorf("member %q content mismatch", member.Name)
		}
	}
}

func TestWrite_ManifestDigests(t *testing.T) {
	t.Parallel()

	payload := []byte("journal line\n")
	var buffer bytes.Buffer
	manifest, err := Write(&buffer, "fridgecam test", bundleTime, []File{{Name: "a.log", Data: payload}})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	entry := manifest.Files[0]
	if entry.Size != int64(len(payload)) {
		t.Errorf("Size = %d, want %d", entry.Size, len(payload))
	}
	if entry.Digest != digest.Format(digest.Bytes(payload)) {
		t.Errorf("Digest = %q does not match content", entry.Digest)
	}

	// The embedded manifest matches the returned one.
	members, err := Read(&buffer)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var embedded Manifest
	if err := json.Unmarshal(members[0].Data, &embedded); err != nil {
		t.Fatalf("decoding embedded manifest: %v", err)
	}
	if embedded.Tool != "fridgecam test" {
		t.Errorf("Tool = %q", embedded.Tool)
	}
	if !embedded.CreatedAt.Equal(bundleTime) {
		t.Errorf("CreatedAt = %v, want %v", embedded.CreatedAt, bundleTime)
	}
	if len(embedded.Files) != 1 || embedded.Files[0].Digest != entry.Digest {
		t.Errorf("embedded manifest diverges: %+v", embedded.Files)
	}
}

func TestWrite_Empty(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	if _, err := Write(&buffer, "fridgecam test", bundleTime, nil); err != nil {
		t.Fatalf("Write with no files: %v", err)
	}
	members, err := Read(&buffer)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("got %d members, want just the manifest", len(members))
	}
}

func TestRead_NotZstd(t *testing.T) {
	t.Parallel()

	members, err := Read(bytes.NewReader([]byte("plain text, not an archive")))
	if err == nil {
		t.Fatalf("expected error for non-zstd input, got %d members", len(members))
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	got := FileName(bundleTime)
	want := "fridgecam-bundle-20260825T101500Z.tar.zst"
	if got != want {
		t.Errorf("FileName = %q, want %q", got, want)
	}
}
