// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli/doctor"
	bundlelib "github.com/fridgelab/fridgecam/lib/bundle"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/fridgelab/fridgecam/lib/envfile"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testGatherer wires a gatherer against temp paths with the verify
// pipeline and journalctl faked out.
func testGatherer(t *testing.T) (*gatherer, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Data = dir
	cfg.Paths.EnvFile = filepath.Join(dir, "fridgecam.env")
	cfg.Paths.Settings = filepath.Join(dir, "camera-settings.jsonc")
	cfg.Paths.UnitDir = filepath.Join(dir, "units")

	g := newGatherer(cfg, discardLogger())
	g.now = func() time.Time {
		return time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	}
	g.report = func(context.Context, *envfile.Env) []doctor.Result {
		return []doctor.Result{
			doctor.Pass("tunnel binary", "/usr/local/bin/cloudflared"),
			doctor.Fail("database", "health report shows database \"error: connection timeout\""),
		}
	}
	g.run = func(_ context.Context, name string, args ...string) (string, error) {
		return "-- journal tail for " + strings.Join(args, " ") + " --\n", nil
	}
	return g, cfg
}

func memberByName(t *testing.T, files []bundlelib.File, name string) []byte {
	t.Helper()
	for _, file := range files {
		if file.Name == name {
			return file.Data
		}
	}
	t.Fatalf("bundle member %q not found in %d members", name, len(files))
	return nil
}

func TestBundleRoundTrip(t *testing.T) {
	g, cfg := testGatherer(t)

	if err := os.WriteFile(cfg.Paths.EnvFile,
		[]byte("CAMERA_API_KEY=super-secret\nCLOUDFLARE_DOMAIN=cam.example.com\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Paths.Settings,
		[]byte("// fridge door camera\n{\"focus\": {\"mode\": \"manual\", \"lens_position\": 2.5}}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Install one unit with operator edits so the manifest flags it.
	if err := os.MkdirAll(cfg.Paths.UnitDir, 0o755); err != nil {
		t.Fatal(err)
	}
	edited := "[Unit]\nDescription=edited by hand\n[Service]\n[Install]\n"
	if err := os.WriteFile(filepath.Join(cfg.Paths.UnitDir, "cloudflared.service"), []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}

	output := filepath.Join(t.TempDir(), "bundle.tar.zst")
	if err := writeBundle(context.Background(), g, output, discardLogger()); err != nil {
		t.Fatalf("writeBundle: %v", err)
	}

	archive, err := os.Open(output)
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()

	files, err := bundlelib.Read(archive)
	if err != nil {
		t.Fatalf("reading bundle back: %v", err)
	}

	if files[0].Name != bundlelib.ManifestName {
		t.Errorf("first member = %q, want the manifest", files[0].Name)
	}

	var report doctor.JSONOutput
	if err := json.Unmarshal(memberByName(t, files, "verify.json"), &report); err != nil {
		t.Fatalf("verify.json: %v", err)
	}
	if len(report.Checks) != 2 || report.OK != true {
		t.Errorf("verify.json content wrong: %+v", report)
	}

	envMember := string(memberByName(t, files, "fridgecam.env"))
	if strings.Contains(envMember, "super-secret") {
		t.Error("bundle leaked the API key")
	}
	if !strings.Contains(envMember, "CAMERA_API_KEY=<redacted>") {
		t.Errorf("env member not redacted:\n%s", envMember)
	}

	var records []unitRecord
	if err := json.Unmarshal(memberByName(t, files, "units/manifest.json"), &records); err != nil {
		t.Fatalf("units/manifest.json: %v", err)
	}
	byName := map[string]unitRecord{}
	for _, record := range records {
		byName[record.Name] = record
	}
	if record := byName["cloudflared.service"]; !record.Installed || !record.Modified {
		t.Errorf("edited unit should be installed+modified: %+v", record)
	}
	if record := byName["fridgecam-server.service"]; record.Installed {
		t.Errorf("uninstalled unit reported as installed: %+v", record)
	}

	if got := string(memberByName(t, files, "units/cloudflared.service")); got != edited {
		t.Errorf("installed unit content altered: %q", got)
	}

	journal := string(memberByName(t, files, "journal/cloudflared.service.log"))
	if !strings.Contains(journal, "-u cloudflared.service") {
		t.Errorf("journal member should come from journalctl, got %q", journal)
	}

	settings := string(memberByName(t, files, "camera-settings.jsonc"))
	if !strings.Contains(settings, "lens_position") {
		t.Errorf("settings member missing document content: %q", settings)
	}

	var system systemInfo
	if err := json.Unmarshal(memberByName(t, files, "system.json"), &system); err != nil {
		t.Fatalf("system.json: %v", err)
	}
	if !strings.HasPrefix(system.Tool, "fridgecam ") {
		t.Errorf("tool = %q", system.Tool)
	}
	if system.CreatedAt != time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC) {
		t.Errorf("created_at = %v", system.CreatedAt)
	}
	if system.Host.CPUCount < 1 {
		t.Errorf("host probe missing from system.json: %+v", system.Host)
	}
}

func TestBundleMissingPiecesAreNoted(t *testing.T) {
	g, cfg := testGatherer(t)
	g.run = func(context.Context, string, ...string) (string, error) {
		return "", os.ErrNotExist
	}

	files, err := g.gather(context.Background())
	if err != nil {
		t.Fatalf("gather on a bare host must succeed: %v", err)
	}

	envMember := string(memberByName(t, files, "fridgecam.env"))
	if !strings.Contains(envMember, "not present") {
		t.Errorf("missing env file should be noted, got %q", envMember)
	}

	journal := string(memberByName(t, files, "journal/"+cfg.Services.CameraUnit+".log"))
	if !strings.Contains(journal, "journal unavailable") {
		t.Errorf("journal failure should be noted inside the member, got %q", journal)
	}

	settings := string(memberByName(t, files, "camera-settings.jsonc"))
	if !strings.Contains(settings, "not present") {
		t.Errorf("missing settings should be noted, got %q", settings)
	}

	for _, file := range files {
		if strings.HasPrefix(file.Name, "units/") && file.Name != "units/manifest.json" {
			t.Errorf("no unit files are installed, yet bundle has %s", file.Name)
		}
	}
}

func TestBundleDefaultFileName(t *testing.T) {
	g, _ := testGatherer(t)
	t.Chdir(t.TempDir())

	if err := writeBundle(context.Background(), g, "", discardLogger()); err != nil {
		t.Fatalf("writeBundle: %v", err)
	}

	want := "fridgecam-bundle-20260825T100000Z.tar.zst"
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected %s in the working directory: %v", want, err)
	}
}

func TestBundleNoPartialFileOnGatherFailure(t *testing.T) {
	g, cfg := testGatherer(t)
	// An unreadable env file is the one gather error that aborts.
	if err := os.MkdirAll(cfg.Paths.EnvFile, 0o755); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	output := filepath.Join(dir, "bundle.tar.zst")
	if err := writeBundle(context.Background(), g, output, discardLogger()); err == nil {
		t.Fatal("expected gather to fail when the env file is unreadable")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("no files should remain after a failed run, found %v", entries)
	}
}
