// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli/doctor"
	"github.com/fridgelab/fridgecam/lib/camera"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/fridgelab/fridgecam/lib/envfile"
	"github.com/fridgelab/fridgecam/lib/systemd"
	"github.com/fridgelab/fridgecam/lib/tunnel"
)

// fakeTunnel satisfies tunnel.Client with canned answers.
type fakeTunnel struct {
	descriptors []tunnel.Descriptor
	listErr     error
}

func (f *fakeTunnel) Version(context.Context) (string, error) {
	return "cloudflared version 2026.1.0", nil
}

func (f *fakeTunnel) List(context.Context) ([]tunnel.Descriptor, error) {
	return f.descriptors, f.listErr
}

func (f *fakeTunnel) Create(context.Context, string) error { return nil }

func (f *fakeTunnel) ServiceInstall(context.Context) error { return nil }

func (f *fakeTunnel) LoginHint() string {
	return "run cloudflared tunnel login and retry"
}

// staticTransport answers every request with one canned status or
// error, standing in for the public endpoint.
type staticTransport struct {
	status int
	err    error
}

func (t *staticTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &http.Response{
		StatusCode: t.status,
		Body:       http.NoBody,
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testPipelineConfig points every probed path into the test's temp
// directory so host state cannot leak into results.
func testPipelineConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Tunnel.Binary = filepath.Join(dir, "cloudflared")
	cfg.Tunnel.ConfigDir = filepath.Join(dir, "cloudflared-config")
	cfg.Camera.DeviceNode = filepath.Join(dir, "video0")
	return cfg
}

func writeFile(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), mode); err != nil {
		t.Fatal(err)
	}
}

// systemctlWithStates fakes `systemctl is-active <unit>` from a
// unit-to-state map. Unknown units report inactive, as the real binary
// does for units it has never heard of.
func systemctlWithStates(states map[string]string) *systemd.Systemctl {
	return systemd.NewWithRunFunc(func(_ context.Context, args ...string) (string, error) {
		if len(args) == 2 && args[0] == "is-active" {
			state, ok := states[args[1]]
			if !ok {
				return "inactive\n", errors.New("exit status 3")
			}
			if state != "active" {
				return state + "\n", errors.New("exit status 3")
			}
			return state + "\n", nil
		}
		return "", fmt.Errorf("unexpected systemctl call: %v", args)
	})
}

// cameraServer serves /test and /health with the given health body.
// The returned env routes the pipeline's local probes at the server's
// ephemeral port.
func cameraServer(t *testing.T, healthBody string, extra string) (*httptest.Server, *envfile.Env) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/test", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Camera server is running!")
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, healthBody)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	parsed, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	env := envfile.Parse(strings.NewReader("SERVER_PORT=" + parsed.Port() + "\n" + extra))
	return server, env
}

func statusByName(t *testing.T, results []doctor.Result, name string) doctor.Result {
	t.Helper()
	for _, result := range results {
		if result.Name == name {
			return result
		}
	}
	t.Fatalf("no result named %q in %v", name, results)
	return doctor.Result{}
}

const healthyBody = `{"status":"healthy","timestamp":"2026-08-25T10:00:00Z",` +
	`"components":{"database":"ok","camera":"ok","disk_space_gb":21.4}}`

func TestAllLayersPassOnHealthyDevice(t *testing.T) {
	cfg := testPipelineConfig(t)
	writeFile(t, cfg.Tunnel.Binary, 0o755)
	writeFile(t, cfg.Camera.DeviceNode, 0o644)
	if err := os.MkdirAll(cfg.Tunnel.ConfigDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(cfg.Tunnel.ConfigDir, "config.yml"), 0o644)

	_, env := cameraServer(t, healthyBody, "CLOUDFLARE_DOMAIN=cam.example.com\n")

	pipeline := newPipeline(cfg, env, discardLogger())
	pipeline.systemctl = systemctlWithStates(map[string]string{
		"cloudflared.service":      "active",
		"fridgecam-server.service": "active",
	})
	pipeline.tunnelClient = &fakeTunnel{descriptors: []tunnel.Descriptor{
		{ID: "6ff42ae2-765d-4adf-8112-31c55c1551ef", Name: "fridgecam"},
	}}
	pipeline.remoteClient = &http.Client{Transport: &staticTransport{status: http.StatusOK}}

	results := pipeline.Run(context.Background(), time.Second)

	if len(results) != 9 {
		t.Fatalf("expected 9 results, got %d: %v", len(results), results)
	}
	for i, result := range results {
		if result.Status != doctor.StatusPass {
			t.Errorf("layer %d (%s): %s %s", i+1, result.Name, result.Status, result.Message)
		}
	}
	if doctor.AnyFatal(results) {
		t.Error("healthy device must not report a fatal failure")
	}

	for i, name := range layerNames() {
		if results[i].Name != name {
			t.Errorf("layer %d: got %q, want %q", i+1, results[i].Name, name)
		}
	}
}

func TestMissingBinaryAbortsPipeline(t *testing.T) {
	cfg := testPipelineConfig(t)
	t.Setenv("PATH", t.TempDir())

	env := envfile.Parse(strings.NewReader(""))
	pipeline := newPipeline(cfg, env, discardLogger())

	results := pipeline.Run(context.Background(), time.Second)

	if len(results) != 1 {
		t.Fatalf("pipeline must stop after the fatal layer, got %d results", len(results))
	}
	if results[0].Status != doctor.StatusFail || !results[0].Fatal {
		t.Fatalf("expected fatal failure, got %+v", results[0])
	}
	if !strings.Contains(results[0].Hint, "fridgecam setup") {
		t.Errorf("hint should point at setup, got %q", results[0].Hint)
	}
	if !doctor.AnyFatal(results) {
		t.Error("AnyFatal must be true when layer 1 fails")
	}
}

// TestOnlyBinaryFailureIsFatal wires a host where everything past the
// binary is broken and checks that the report still carries no fatal
// result: layer 1 alone decides the exit code.
func TestOnlyBinaryFailureIsFatal(t *testing.T) {
	cfg := testPipelineConfig(t)
	writeFile(t, cfg.Tunnel.Binary, 0o755)

	// A server that closes immediately leaves a port that refuses.
	dead := httptest.NewServer(http.NotFoundHandler())
	parsed, err := url.Parse(dead.URL)
	if err != nil {
		t.Fatal(err)
	}
	dead.Close()

	env := envfile.Parse(strings.NewReader(
		"SERVER_PORT=" + parsed.Port() + "\nCLOUDFLARE_DOMAIN=cam.example.com\n"))

	pipeline := newPipeline(cfg, env, discardLogger())
	pipeline.systemctl = systemctlWithStates(map[string]string{
		"cloudflared.service":      "failed",
		"fridgecam-server.service": "inactive",
	})
	pipeline.tunnelClient = &fakeTunnel{listErr: errors.New("cannot determine default origin certificate path")}
	pipeline.remoteClient = &http.Client{Transport: &staticTransport{err: errors.New("connection refused")}}

	results := pipeline.Run(context.Background(), 2*time.Second)

	if len(results) != 9 {
		t.Fatalf("non-fatal failures must not stop the pipeline, got %d results", len(results))
	}
	if doctor.AnyFatal(results) {
		t.Fatal("only the binary layer may be fatal")
	}

	want := map[string]doctor.Status{
		layerTunnelBinary:   doctor.StatusPass,
		layerTunnelService:  doctor.StatusFail,
		layerCameraService:  doctor.StatusFail,
		layerLocalLiveness:  doctor.StatusFail,
		layerLocalHealth:    doctor.StatusFail,
		layerCameraDevice:   doctor.StatusWarn,
		layerDatabase:       doctor.StatusFail,
		layerRegistration:   doctor.StatusFail,
		layerRemoteEndpoint: doctor.StatusWarn,
	}
	for name, status := range want {
		if got := statusByName(t, results, name).Status; got != status {
			t.Errorf("%s: got %s, want %s", name, got, status)
		}
	}

	database := statusByName(t, results, layerDatabase)
	if !strings.Contains(database.Message, "database state unknown") {
		t.Errorf("database layer without a health report must say the state is unknown, got %q", database.Message)
	}
}

func TestHealthReportFeedsDatabaseLayer(t *testing.T) {
	t.Run("database error fails both layers", func(t *testing.T) {
		cfg := testPipelineConfig(t)
		writeFile(t, cfg.Tunnel.Binary, 0o755)

		body := `{"status":"degraded","components":{"database":"error: connection timeout","camera":"ok","disk_space_gb":3.0}}`
		_, env := cameraServer(t, body, "")

		pipeline := newPipeline(cfg, env, discardLogger())
		pipeline.systemctl = systemctlWithStates(map[string]string{
			"cloudflared.service":      "active",
			"fridgecam-server.service": "active",
		})
		pipeline.tunnelClient = &fakeTunnel{descriptors: []tunnel.Descriptor{{Name: "fridgecam"}}}

		results := pipeline.Run(context.Background(), time.Second)

		health := statusByName(t, results, layerLocalHealth)
		if health.Status != doctor.StatusFail || !strings.Contains(health.Message, `"degraded"`) {
			t.Errorf("health layer should fail with the reported status, got %+v", health)
		}

		database := statusByName(t, results, layerDatabase)
		if database.Status != doctor.StatusFail {
			t.Fatalf("database layer: got %s, want fail", database.Status)
		}
		if !strings.Contains(database.Message, `"error: connection timeout"`) {
			t.Errorf("database layer must relay the component state, got %q", database.Message)
		}
		if !strings.Contains(database.Hint, "MONGO_URI") {
			t.Errorf("database hint should name the env key, got %q", database.Hint)
		}
	})

	t.Run("ok database passes through a degraded report", func(t *testing.T) {
		cfg := testPipelineConfig(t)
		writeFile(t, cfg.Tunnel.Binary, 0o755)

		body := `{"status":"degraded","components":{"database":"ok","camera":"error","disk_space_gb":3.0}}`
		_, env := cameraServer(t, body, "")

		pipeline := newPipeline(cfg, env, discardLogger())
		pipeline.systemctl = systemctlWithStates(map[string]string{
			"cloudflared.service":      "active",
			"fridgecam-server.service": "active",
		})
		pipeline.tunnelClient = &fakeTunnel{descriptors: []tunnel.Descriptor{{Name: "fridgecam"}}}

		results := pipeline.Run(context.Background(), time.Second)

		if health := statusByName(t, results, layerLocalHealth); health.Status != doctor.StatusFail {
			t.Errorf("degraded status must fail the health layer, got %s", health.Status)
		}
		database := statusByName(t, results, layerDatabase)
		if database.Status != doctor.StatusPass {
			t.Errorf("ok database must pass even in a degraded report, got %+v", database)
		}
	})
}

func TestNonJSONHealthWarnsWithExcerpt(t *testing.T) {
	cfg := testPipelineConfig(t)
	writeFile(t, cfg.Tunnel.Binary, 0o755)

	_, env := cameraServer(t, "<html>Service Temporarily Unavailable</html>", "")

	pipeline := newPipeline(cfg, env, discardLogger())
	pipeline.systemctl = systemctlWithStates(map[string]string{
		"cloudflared.service":      "active",
		"fridgecam-server.service": "active",
	})
	pipeline.tunnelClient = &fakeTunnel{descriptors: []tunnel.Descriptor{{Name: "fridgecam"}}}

	results := pipeline.Run(context.Background(), time.Second)

	health := statusByName(t, results, layerLocalHealth)
	if health.Status != doctor.StatusWarn {
		t.Fatalf("non-JSON 200 from /health must warn, got %s: %s", health.Status, health.Message)
	}
	if !strings.Contains(health.Message, "Service Temporarily Unavailable") {
		t.Errorf("warning should carry the raw body excerpt, got %q", health.Message)
	}

	// No parsed report means layer 7 cannot know the database state.
	database := statusByName(t, results, layerDatabase)
	if database.Status != doctor.StatusFail || !strings.Contains(database.Message, "database state unknown") {
		t.Errorf("database layer should report unknown state, got %+v", database)
	}
}

// TestAbandonedCheckCannotRecordState covers the window where the
// runner gave up on a check but its goroutine is still running: a
// write under an expired context must be dropped so a later layer
// never reads state the report did not account for.
func TestAbandonedCheckCannotRecordState(t *testing.T) {
	cfg := testPipelineConfig(t)
	env := envfile.Parse(strings.NewReader(""))
	pipeline := newPipeline(cfg, env, discardLogger())

	expired, cancel := context.WithCancel(context.Background())
	cancel()

	report := &camera.HealthReport{Status: "healthy"}
	pipeline.setHealth(expired, report)
	if pipeline.currentHealth() != nil {
		t.Error("a health report written under an expired context must be dropped")
	}
	pipeline.setBinaryPath(expired, "/usr/local/bin/cloudflared")
	if pipeline.binaryPath != "" {
		t.Errorf("a binary path written under an expired context must be dropped, got %q", pipeline.binaryPath)
	}

	pipeline.setHealth(context.Background(), report)
	if pipeline.currentHealth() != report {
		t.Error("a live context must record the health report")
	}
	pipeline.setBinaryPath(context.Background(), "/usr/local/bin/cloudflared")
	if pipeline.binaryPath != "/usr/local/bin/cloudflared" {
		t.Errorf("a live context must record the binary path, got %q", pipeline.binaryPath)
	}
}

func TestHungHealthEndpointTimesOut(t *testing.T) {
	cfg := testPipelineConfig(t)
	writeFile(t, cfg.Tunnel.Binary, 0o755)

	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/test", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Camera server is running!")
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, healthyBody)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	// Registered after server.Close so it runs first and unblocks any
	// handler still waiting.
	t.Cleanup(func() { close(release) })

	parsed, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	env := envfile.Parse(strings.NewReader("SERVER_PORT=" + parsed.Port() + "\n"))

	pipeline := newPipeline(cfg, env, discardLogger())
	pipeline.systemctl = systemctlWithStates(map[string]string{
		"cloudflared.service":      "active",
		"fridgecam-server.service": "active",
	})
	pipeline.tunnelClient = &fakeTunnel{descriptors: []tunnel.Descriptor{{Name: "fridgecam"}}}

	results := pipeline.Run(context.Background(), 50*time.Millisecond)

	health := statusByName(t, results, layerLocalHealth)
	if health.Status != doctor.StatusFail {
		t.Fatalf("a hung /health must fail its layer, got %s: %s", health.Status, health.Message)
	}
	if !strings.Contains(health.Message, "timed out") {
		t.Errorf("health layer should report the timeout, got %q", health.Message)
	}

	database := statusByName(t, results, layerDatabase)
	if database.Status != doctor.StatusFail || !strings.Contains(database.Message, "database state unknown") {
		t.Errorf("with no recorded report the database layer must report unknown state, got %+v", database)
	}
}

func TestRemoteSkippedWithoutDomain(t *testing.T) {
	cfg := testPipelineConfig(t)
	writeFile(t, cfg.Tunnel.Binary, 0o755)

	_, env := cameraServer(t, healthyBody, "")

	pipeline := newPipeline(cfg, env, discardLogger())
	pipeline.systemctl = systemctlWithStates(map[string]string{
		"cloudflared.service":      "active",
		"fridgecam-server.service": "active",
	})
	pipeline.tunnelClient = &fakeTunnel{descriptors: []tunnel.Descriptor{{Name: "fridgecam"}}}

	results := pipeline.Run(context.Background(), time.Second)

	remote := statusByName(t, results, layerRemoteEndpoint)
	if remote.Status != doctor.StatusSkip {
		t.Fatalf("no domain must skip, not probe: %+v", remote)
	}
	if !strings.Contains(remote.Message, envfile.KeyDomain) {
		t.Errorf("skip message should name the missing key, got %q", remote.Message)
	}
}

func TestRemoteTimeoutWarnsAboutPropagation(t *testing.T) {
	cfg := testPipelineConfig(t)
	writeFile(t, cfg.Tunnel.Binary, 0o755)

	_, env := cameraServer(t, healthyBody, "CLOUDFLARE_DOMAIN=cam.example.com\n")

	pipeline := newPipeline(cfg, env, discardLogger())
	pipeline.systemctl = systemctlWithStates(map[string]string{
		"cloudflared.service":      "active",
		"fridgecam-server.service": "active",
	})
	pipeline.tunnelClient = &fakeTunnel{descriptors: []tunnel.Descriptor{{Name: "fridgecam"}}}
	pipeline.remoteClient = &http.Client{Transport: &staticTransport{err: context.DeadlineExceeded}}

	results := pipeline.Run(context.Background(), time.Second)

	remote := statusByName(t, results, layerRemoteEndpoint)
	if remote.Status != doctor.StatusWarn {
		t.Fatalf("an unreachable public endpoint must warn, never fail: %+v", remote)
	}
	if !strings.Contains(remote.Message, "timed out") {
		t.Errorf("timeout should be named as such, got %q", remote.Message)
	}
	if !strings.Contains(remote.Hint, "48 hours") {
		t.Errorf("hint should mention DNS propagation, got %q", remote.Hint)
	}
}

func TestRegistrationMissingTunnel(t *testing.T) {
	cfg := testPipelineConfig(t)
	writeFile(t, cfg.Tunnel.Binary, 0o755)

	_, env := cameraServer(t, healthyBody, "")

	pipeline := newPipeline(cfg, env, discardLogger())
	pipeline.systemctl = systemctlWithStates(map[string]string{
		"cloudflared.service":      "active",
		"fridgecam-server.service": "active",
	})
	pipeline.tunnelClient = &fakeTunnel{descriptors: []tunnel.Descriptor{
		{ID: "0a1b2c3d-0000-4000-8000-000000000000", Name: "somebody-else"},
	}}

	results := pipeline.Run(context.Background(), time.Second)

	registration := statusByName(t, results, layerRegistration)
	if registration.Status != doctor.StatusFail {
		t.Fatalf("missing registration must fail, got %s", registration.Status)
	}
	if !strings.Contains(registration.Hint, "tunnel create fridgecam") {
		t.Errorf("hint should give the create command, got %q", registration.Hint)
	}
}

func TestRegistrationNotLoggedIn(t *testing.T) {
	cfg := testPipelineConfig(t)
	writeFile(t, cfg.Tunnel.Binary, 0o755)

	_, env := cameraServer(t, healthyBody, "")

	client := &fakeTunnel{listErr: errors.New("cannot determine default origin certificate path")}
	pipeline := newPipeline(cfg, env, discardLogger())
	pipeline.systemctl = systemctlWithStates(map[string]string{
		"cloudflared.service":      "active",
		"fridgecam-server.service": "active",
	})
	pipeline.tunnelClient = client

	results := pipeline.Run(context.Background(), time.Second)

	registration := statusByName(t, results, layerRegistration)
	if registration.Status != doctor.StatusFail {
		t.Fatalf("list failure must fail the layer, got %s", registration.Status)
	}
	if registration.Hint != client.LoginHint() {
		t.Errorf("hint should be the login instruction, got %q", registration.Hint)
	}
}

func TestRegistrationNotesMissingIngress(t *testing.T) {
	cfg := testPipelineConfig(t)
	writeFile(t, cfg.Tunnel.Binary, 0o755)

	_, env := cameraServer(t, healthyBody, "")

	pipeline := newPipeline(cfg, env, discardLogger())
	pipeline.systemctl = systemctlWithStates(map[string]string{
		"cloudflared.service":      "active",
		"fridgecam-server.service": "active",
	})
	pipeline.tunnelClient = &fakeTunnel{descriptors: []tunnel.Descriptor{{Name: "fridgecam"}}}

	results := pipeline.Run(context.Background(), time.Second)

	registration := statusByName(t, results, layerRegistration)
	if registration.Status != doctor.StatusPass {
		t.Fatalf("registered tunnel must pass, got %+v", registration)
	}
	if !strings.Contains(registration.Message, "no config.yml") {
		t.Errorf("pass message should note the absent ingress file, got %q", registration.Message)
	}
}

func TestInactiveUnitCarriesStateAndJournalHint(t *testing.T) {
	cfg := testPipelineConfig(t)
	writeFile(t, cfg.Tunnel.Binary, 0o755)

	_, env := cameraServer(t, healthyBody, "")

	pipeline := newPipeline(cfg, env, discardLogger())
	pipeline.systemctl = systemctlWithStates(map[string]string{
		"cloudflared.service":      "active",
		"fridgecam-server.service": "failed",
	})
	pipeline.tunnelClient = &fakeTunnel{descriptors: []tunnel.Descriptor{{Name: "fridgecam"}}}

	results := pipeline.Run(context.Background(), time.Second)

	unit := statusByName(t, results, layerCameraService)
	if unit.Status != doctor.StatusFail {
		t.Fatalf("failed unit must fail the layer, got %s", unit.Status)
	}
	if !strings.Contains(unit.Message, "failed") {
		t.Errorf("message should carry the raw state, got %q", unit.Message)
	}
	if !strings.Contains(unit.Hint, "journalctl -u fridgecam-server.service") {
		t.Errorf("hint should point at the unit's journal, got %q", unit.Hint)
	}
}
