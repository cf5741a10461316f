// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeRun records invocations and replays canned output keyed by the
// joined argument list.
type fakeRun struct {
	calls     [][]string
	responses map[string]string
	errs      map[string]error
}

func (f *fakeRun) run(ctx context.Context, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	key := strings.Join(args, " ")
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	return f.responses[key], nil
}

const listOutput = `You can obtain more detailed information for each tunnel with 'cloudflared tunnel info <name/uuid>'
ID                                   NAME        CREATED              CONNECTIONS
6ff42ae2-765d-4adf-8112-31c55c1551ef fridgecam   2026-08-20T10:03:54Z 2xLHR, 2xAMS
83b12c01-115e-4f9b-a3d2-07cf10a2be44 staging-cam 2026-07-02T08:11:00Z
`

func TestParseList(t *testing.T) {
	descriptors := ParseList(listOutput)
	if len(descriptors) != 2 {
		t.Fatalf("got %d descriptors, want 2: %+v", len(descriptors), descriptors)
	}
	first := descriptors[0]
	if first.ID != "6ff42ae2-765d-4adf-8112-31c55c1551ef" {
		t.Errorf("ID = %q", first.ID)
	}
	if first.Name != "fridgecam" {
		t.Errorf("Name = %q, want %q", first.Name, "fridgecam")
	}
	want := time.Date(2026, 8, 20, 10, 3, 54, 0, time.UTC)
	if !first.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", first.CreatedAt, want)
	}
	if descriptors[1].Name != "staging-cam" {
		t.Errorf("second Name = %q", descriptors[1].Name)
	}
}

func TestParseList_NoTunnels(t *testing.T) {
	output := "You have no tunnels, use 'cloudflared tunnel create' to define a new tunnel\n"
	if descriptors := ParseList(output); len(descriptors) != 0 {
		t.Errorf("got %d descriptors from empty account output, want 0", len(descriptors))
	}
}

func TestParseList_Empty(t *testing.T) {
	if descriptors := ParseList(""); len(descriptors) != 0 {
		t.Errorf("got %d descriptors from empty output, want 0", len(descriptors))
	}
}

func TestLooksLikeTunnelID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"6ff42ae2-765d-4adf-8112-31c55c1551ef", true},
		{"6FF42AE2-765D-4ADF-8112-31C55C1551EF", true},
		{"fridgecam", false},
		{"", false},
		{"6ff42ae2_765d_4adf_8112_31c55c1551ef", false},
		{"6ff42ae2-765d-4adf-8112-31c55c1551e", false},
		{"gff42ae2-765d-4adf-8112-31c55c1551ef", false},
	}
	for _, test := range tests {
		if got := looksLikeTunnelID(test.in); got != test.want {
			t.Errorf("looksLikeTunnelID(%q) = %v, want %v", test.in, got, test.want)
		}
	}
}

func TestRegistered(t *testing.T) {
	descriptors := ParseList(listOutput)
	if !Registered(descriptors, "fridgecam") {
		t.Error("fridgecam should be registered")
	}
	if Registered(descriptors, "missing") {
		t.Error("missing should not be registered")
	}
	if Registered(nil, "fridgecam") {
		t.Error("nothing is registered in an empty list")
	}
}

func TestList(t *testing.T) {
	fake := &fakeRun{responses: map[string]string{"tunnel list": listOutput}}
	client := NewWithRunFunc(fake.run)

	descriptors, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(descriptors) != 2 {
		t.Errorf("got %d descriptors, want 2", len(descriptors))
	}
	if len(fake.calls) != 1 || strings.Join(fake.calls[0], " ") != "tunnel list" {
		t.Errorf("calls = %v, want one 'tunnel list'", fake.calls)
	}
}

func TestList_CommandFails(t *testing.T) {
	wantErr := fmt.Errorf("cloudflared tunnel list: exit status 1: cannot determine default origin certificate path")
	fake := &fakeRun{errs: map[string]error{"tunnel list": wantErr}}
	client := NewWithRunFunc(fake.run)

	_, err := client.List(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("List error = %v, want %v", err, wantErr)
	}
}

func TestVersion_TrimsToOneLine(t *testing.T) {
	fake := &fakeRun{responses: map[string]string{
		"--version": "cloudflared version 2026.8.1 (built 2026-08-04)\nextra diagnostics\n",
	}}
	client := NewWithRunFunc(fake.run)

	version, err := client.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != "cloudflared version 2026.8.1 (built 2026-08-04)" {
		t.Errorf("version = %q", version)
	}
}

func TestCreateAndServiceInstall(t *testing.T) {
	fake := &fakeRun{}
	client := NewWithRunFunc(fake.run)
	ctx := context.Background()

	if err := client.Create(ctx, "fridgecam"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := client.ServiceInstall(ctx); err != nil {
		t.Fatalf("ServiceInstall: %v", err)
	}

	want := []string{"tunnel create fridgecam", "service install"}
	if len(fake.calls) != len(want) {
		t.Fatalf("got %d calls, want %d", len(fake.calls), len(want))
	}
	for i, call := range fake.calls {
		if got := strings.Join(call, " "); got != want[i] {
			t.Errorf("call %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestLoginHint(t *testing.T) {
	hint := New("/usr/local/bin/cloudflared").LoginHint()
	if !strings.Contains(hint, "cloudflared tunnel login") {
		t.Errorf("hint %q does not name the login command", hint)
	}
}

func TestBinaryPresent_ConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "cloudflared")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	resolved, ok := BinaryPresent(binary)
	if !ok {
		t.Fatal("expected binary to be found at configured path")
	}
	if resolved != binary {
		t.Errorf("resolved = %q, want %q", resolved, binary)
	}
}

func TestBinaryPresent_Missing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if _, ok := BinaryPresent(filepath.Join(t.TempDir(), "cloudflared")); ok {
		t.Error("expected missing binary to not be found")
	}
	if _, ok := BinaryPresent(""); ok {
		t.Error("expected empty PATH lookup to fail")
	}
}

func TestBinaryPresent_FallsBackToPathLookup(t *testing.T) {
	pathDir := t.TempDir()
	onPath := filepath.Join(pathDir, "cloudflared")
	if err := os.WriteFile(onPath, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", pathDir)

	resolved, ok := BinaryPresent("/nonexistent/cloudflared")
	if !ok {
		t.Fatal("expected PATH fallback to find the binary")
	}
	if resolved != onPath {
		t.Errorf("resolved = %q, want %q", resolved, onPath)
	}
}

func TestIngressPresent(t *testing.T) {
	dir := t.TempDir()
	if IngressPresent(dir) {
		t.Error("empty config dir should report no ingress file")
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte("ingress: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !IngressPresent(dir) {
		t.Error("config.yml present but not reported")
	}
}
