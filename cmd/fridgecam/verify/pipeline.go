// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli/doctor"
	"github.com/fridgelab/fridgecam/lib/camera"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/fridgelab/fridgecam/lib/envfile"
	"github.com/fridgelab/fridgecam/lib/systemd"
	"github.com/fridgelab/fridgecam/lib/tunnel"
)

// Layer names, in pipeline order. The checklist column is 40 characters
// wide; keep names short and put detail in the message.
const (
	layerTunnelBinary   = "tunnel binary"
	layerTunnelService  = "tunnel service"
	layerCameraService  = "camera service"
	layerLocalLiveness  = "local liveness"
	layerLocalHealth    = "local health"
	layerCameraDevice   = "camera device"
	layerDatabase       = "database"
	layerRegistration   = "tunnel registration"
	layerRemoteEndpoint = "remote endpoint"
)

// remoteHint explains why an unreachable public endpoint is usually not
// an emergency. The status logic does not distinguish the causes; the
// wording names them all.
const remoteHint = "DNS propagation can take up to 48 hours after tunnel creation; " +
	"also check that the tunnel service is running and the domain's CNAME targets the tunnel"

// pipeline holds the dependencies of the nine layers plus the state
// later layers read from earlier ones. The clients are injectable;
// nil fields are replaced by real implementations on first use.
type pipeline struct {
	cfg    *config.Config
	env    *envfile.Env
	logger *slog.Logger

	// tunnelClient drives cloudflared. Nil means the real binary,
	// resolved by layer 1.
	tunnelClient tunnel.Client

	// systemctl reads unit activation state. Nil means the real binary.
	systemctl *systemd.Systemctl

	// cameraClient talks to the local camera service. Nil means a
	// client against the env file's port.
	cameraClient *camera.Client

	// remoteClient performs the public HTTPS probe. Nil means a fresh
	// http.Client bounded by the per-check context.
	remoteClient *http.Client

	// mu guards the lazy client fields above and the carried state
	// below. The runner abandons a check that outlives its timeout, so
	// a stale goroutine can still be running while a later layer reads;
	// writes from an expired check context are dropped.
	mu sync.Mutex

	// binaryPath is where layer 1 found cloudflared.
	binaryPath string

	// health is the parsed report from layer 5, nil when the fetch or
	// parse failed. Layer 7 reads it.
	health *camera.HealthReport
}

// setBinaryPath records layer 1's resolution unless the check's context
// has already expired (the runner has moved on without this result).
func (p *pipeline) setBinaryPath(ctx context.Context, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	p.binaryPath = path
}

// setHealth records layer 5's parsed report unless the check's context
// has already expired.
func (p *pipeline) setHealth(ctx context.Context, report *camera.HealthReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	p.health = report
}

func (p *pipeline) currentHealth() *camera.HealthReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.health
}

// newPipeline builds a pipeline against the real system. The env file
// is read fresh by the caller per run — verification never caches
// device configuration across passes.
func newPipeline(cfg *config.Config, env *envfile.Env, logger *slog.Logger) *pipeline {
	return &pipeline{cfg: cfg, env: env, logger: logger}
}

// Run executes all nine layers in order with the per-layer timeout and
// returns their results. Layer 1 failing is the only early exit.
func (p *pipeline) Run(ctx context.Context, timeout time.Duration) []doctor.Result {
	runner := &doctor.Runner{Timeout: timeout}
	return runner.Run(ctx, p.checks())
}

// checks returns the nine layers in pipeline order.
func (p *pipeline) checks() []doctor.Check {
	return []doctor.Check{
		{Name: layerTunnelBinary, Fatal: true, Run: p.checkTunnelBinary},
		{Name: layerTunnelService, Run: p.checkTunnelService},
		{Name: layerCameraService, Run: p.checkCameraService},
		{Name: layerLocalLiveness, Run: p.checkLocalLiveness},
		{Name: layerLocalHealth, Run: p.checkLocalHealth},
		{Name: layerCameraDevice, Run: p.checkCameraDevice},
		{Name: layerDatabase, Run: p.checkDatabase},
		{Name: layerRegistration, Run: p.checkRegistration},
		// A slow public endpoint must degrade, never fail: the runner
		// forges a warning if this layer outlives its budget.
		{Name: layerRemoteEndpoint, Run: p.checkRemoteEndpoint, TimeoutStatus: doctor.StatusWarn},
	}
}

// --- Layer 1: tunnel binary ---

func (p *pipeline) checkTunnelBinary(ctx context.Context) doctor.Result {
	resolved, ok := tunnel.BinaryPresent(p.cfg.Tunnel.Binary)
	if !ok {
		return doctor.FailFatal(layerTunnelBinary,
			fmt.Sprintf("cloudflared not found (configured %q, PATH searched)", p.cfg.Tunnel.Binary),
			"rerun fridgecam setup to download it, or install cloudflared manually")
	}
	p.setBinaryPath(ctx, resolved)

	message := resolved
	if version, err := p.tunnel().Version(ctx); err == nil && version != "" {
		message = fmt.Sprintf("%s (%s)", resolved, version)
	}
	return doctor.Pass(layerTunnelBinary, message)
}

// --- Layers 2 and 3: unit activation ---

func (p *pipeline) checkTunnelService(ctx context.Context) doctor.Result {
	return p.checkUnit(ctx, layerTunnelService, p.cfg.Services.TunnelUnit)
}

func (p *pipeline) checkCameraService(ctx context.Context) doctor.Result {
	return p.checkUnit(ctx, layerCameraService, p.cfg.Services.CameraUnit)
}

func (p *pipeline) checkUnit(ctx context.Context, layer, unit string) doctor.Result {
	state, active := p.ctl().IsActive(ctx, unit)
	if !active {
		return doctor.FailHint(layer,
			fmt.Sprintf("%s is %s", unit, state),
			fmt.Sprintf("journalctl -u %s -n 50", unit))
	}
	return doctor.Pass(layer, fmt.Sprintf("%s %s", unit, state))
}

// --- Layer 4: local liveness ---

func (p *pipeline) checkLocalLiveness(ctx context.Context) doctor.Result {
	client, err := p.camera()
	if err != nil {
		return doctor.Fail(layerLocalLiveness, fmt.Sprintf("building camera client: %v", err))
	}
	if err := client.Liveness(ctx); err != nil {
		return doctor.FailHint(layerLocalLiveness,
			fmt.Sprintf("GET %s/test: %v", client.BaseURL(), err),
			fmt.Sprintf("journalctl -u %s -n 50", p.cfg.Services.CameraUnit))
	}
	return doctor.Pass(layerLocalLiveness, fmt.Sprintf("%s/test answered", client.BaseURL()))
}

// --- Layer 5: local health ---

func (p *pipeline) checkLocalHealth(ctx context.Context) doctor.Result {
	client, err := p.camera()
	if err != nil {
		return doctor.Fail(layerLocalHealth, fmt.Sprintf("building camera client: %v", err))
	}

	report, err := client.Health(ctx)
	if err != nil {
		var parseError *camera.ParseError
		if errors.As(err, &parseError) {
			// The endpoint answered 200 with something that is not
			// JSON: alive but not speaking the contract yet.
			return doctor.WarnHint(layerLocalHealth,
				fmt.Sprintf("non-JSON body from /health: %s", camera.Excerpt(parseError.Raw, 80)),
				"the server may still be starting; rerun verify in a minute")
		}
		var statusError *camera.StatusError
		if errors.As(err, &statusError) {
			return doctor.Fail(layerLocalHealth, fmt.Sprintf("GET /health: %v", statusError))
		}
		return doctor.FailHint(layerLocalHealth,
			fmt.Sprintf("GET %s/health: %v", client.BaseURL(), err),
			fmt.Sprintf("journalctl -u %s -n 50", p.cfg.Services.CameraUnit))
	}

	// Record the report for layer 7 whatever its verdict says.
	p.setHealth(ctx, report)

	if !report.Healthy() {
		return doctor.Fail(layerLocalHealth, fmt.Sprintf("service reports status %q", report.Status))
	}
	return doctor.Pass(layerLocalHealth,
		fmt.Sprintf("status %q, %.1f GB free on device", report.Status, report.Components.DiskSpaceGB))
}

// --- Layer 6: camera device node ---

func (p *pipeline) checkCameraDevice(context.Context) doctor.Result {
	node := p.cfg.Camera.DeviceNode
	if _, err := os.Stat(node); err != nil {
		// Hardware absence degrades, never fails: the service may use
		// the CSI stack without a v4l node, or the cable slipped.
		return doctor.WarnHint(layerCameraDevice,
			fmt.Sprintf("%s not present", node),
			"check the camera ribbon cable and the camera interface setting")
	}
	return doctor.Pass(layerCameraDevice, node)
}

// --- Layer 7: database, as reported by layer 5 ---

func (p *pipeline) checkDatabase(context.Context) doctor.Result {
	report := p.currentHealth()
	if report == nil {
		return doctor.Fail(layerDatabase, "no health report to read; database state unknown")
	}
	if report.DatabaseOK() {
		return doctor.Pass(layerDatabase, "ok (reported by /health)")
	}
	return doctor.FailHint(layerDatabase,
		fmt.Sprintf("health report shows database %q", report.Components.Database),
		"check MONGO_URI in fridgecam.env and the cluster's IP allowlist")
}

// --- Layer 8: tunnel registration ---

func (p *pipeline) checkRegistration(ctx context.Context) doctor.Result {
	client := p.tunnel()
	name := p.cfg.Tunnel.Name

	descriptors, err := client.List(ctx)
	if err != nil {
		return doctor.FailHint(layerRegistration,
			fmt.Sprintf("listing tunnels: %v", err),
			client.LoginHint())
	}
	if !tunnel.Registered(descriptors, name) {
		return doctor.FailHint(layerRegistration,
			fmt.Sprintf("no tunnel named %q registered", name),
			fmt.Sprintf("%s tunnel create %s", filepath.Base(p.cfg.Tunnel.Binary), name))
	}

	message := fmt.Sprintf("tunnel %q registered", name)
	if !tunnel.IngressPresent(p.cfg.Tunnel.ConfigDir) {
		message += fmt.Sprintf(" (no config.yml under %s)", p.cfg.Tunnel.ConfigDir)
	}
	return doctor.Pass(layerRegistration, message)
}

// --- Layer 9: remote endpoint ---

func (p *pipeline) checkRemoteEndpoint(ctx context.Context) doctor.Result {
	domain := p.env.Domain()
	if domain == "" {
		return doctor.Skip(layerRemoteEndpoint,
			fmt.Sprintf("%s not set; remote check skipped", envfile.KeyDomain))
	}

	client := p.remoteClient
	if client == nil {
		client = &http.Client{}
	}

	if err := camera.RemoteLiveness(ctx, client, domain); err != nil {
		message := fmt.Sprintf("https://%s/test: %v", domain, err)
		if camera.IsTimeout(err) {
			message = fmt.Sprintf("https://%s/test timed out", domain)
		}
		return doctor.WarnHint(layerRemoteEndpoint, message, remoteHint)
	}
	return doctor.Pass(layerRemoteEndpoint, fmt.Sprintf("https://%s/test reachable", domain))
}

// --- Dependency accessors ---

func (p *pipeline) ctl() *systemd.Systemctl {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.systemctl == nil {
		p.systemctl = systemd.New()
	}
	return p.systemctl
}

func (p *pipeline) tunnel() tunnel.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tunnelClient == nil {
		binary := p.binaryPath
		if binary == "" {
			binary = p.cfg.Tunnel.Binary
		}
		p.tunnelClient = tunnel.New(binary)
	}
	return p.tunnelClient
}

func (p *pipeline) camera() (*camera.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cameraClient != nil {
		return p.cameraClient, nil
	}
	client, err := camera.NewClient(camera.Config{
		BaseURL: p.env.LocalBaseURL(),
		Logger:  p.logger,
	})
	if err != nil {
		return nil, err
	}
	p.cameraClient = client
	return client, nil
}

// baseURL is the local service URL for summary output, matching
// whatever client the pipeline used.
func (p *pipeline) baseURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cameraClient != nil {
		return p.cameraClient.BaseURL()
	}
	return p.env.LocalBaseURL()
}
