// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package camera implements the commands that exercise the running
// camera service directly: "fridgecam capture" grabs a frame and
// "fridgecam focus" adjusts the lens. Both authenticate with the API
// key from fridgecam.env, the same way the service's own clients do.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli"
	cameraclient "github.com/fridgelab/fridgecam/lib/camera"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/fridgelab/fridgecam/lib/envfile"
)

type captureParams struct {
	Config string `flag:"config" desc:"path to fridgecam.yaml (default: standard locations)"`
	Output string `flag:"output" desc:"output file (default: frame-<timestamp>.<ext> in the current directory)"`
}

type focusParams struct {
	Config string  `flag:"config" desc:"path to fridgecam.yaml (default: standard locations)"`
	Value  float64 `flag:"value" default:"-1" desc:"lens position in dioptres (0 = infinity, fridge shelves ~2.5)"`
}

// CaptureCommand returns the capture command.
func CaptureCommand() *cli.Command {
	var params captureParams

	return &cli.Command{
		Name:    "capture",
		Summary: "Grab a frame from the camera service",
		Description: `Fetch one frame from the running camera service and write it to a
file. The request authenticates with the CAMERA_API_KEY from
fridgecam.env, so this doubles as an end-to-end check of the key the
remote clients will use.`,
		Examples: []cli.Example{
			{
				Description: "Save a frame next to the current directory",
				Command:     "fridgecam capture --output frame.jpg",
			},
			{
				Description: "Timestamped file name derived from the content type",
				Command:     "fridgecam capture",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("capture", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}

			client, env, cfg, err := serviceClient(params.Config, logger)
			if err != nil {
				return err
			}

			data, contentType, err := client.Capture(ctx, env.APIKey())
			if err != nil {
				return classify(err, cfg, "capture")
			}

			output := params.Output
			if output == "" {
				output = "frame-" + time.Now().UTC().Format("20060102T150405Z") + extension(contentType)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return cli.Internal("writing %s: %v", output, err)
			}

			logger.Info("frame captured",
				"path", output,
				"bytes", len(data),
				"content_type", contentType)
			fmt.Println(output)
			return nil
		},
	}
}

// FocusCommand returns the focus command.
func FocusCommand() *cli.Command {
	var params focusParams

	return &cli.Command{
		Name:    "focus",
		Summary: "Set the camera's manual focus",
		Description: `Post a manual focus override to the running camera service. The value
is a lens position in dioptres: 0 focuses at infinity, larger values
focus closer. The service persists the value to its settings document,
so it survives a restart.`,
		Examples: []cli.Example{
			{
				Description: "Focus on the middle shelf",
				Command:     "fridgecam focus --value 2.5",
			},
			{
				Description: "Back to infinity",
				Command:     "fridgecam focus --value 0",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("focus", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			if params.Value < 0 {
				return cli.Validation("--value is required and must not be negative (0 = infinity)")
			}

			client, env, cfg, err := serviceClient(params.Config, logger)
			if err != nil {
				return err
			}

			if err := client.SetFocus(ctx, env.APIKey(), params.Value); err != nil {
				return classify(err, cfg, "focus")
			}

			logger.Info("focus set", "value", params.Value)
			return nil
		},
	}
}

// serviceClient builds a camera client for the local service from the
// device environment, plus the pieces callers report with.
func serviceClient(configPath string, logger *slog.Logger) (*cameraclient.Client, *envfile.Env, *config.Config, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	env, err := envfile.ReadOrEmpty(cfg.Paths.EnvFile)
	if err != nil {
		return nil, nil, nil, cli.Internal("reading %s: %v", cfg.Paths.EnvFile, err)
	}
	client, err := cameraclient.NewClient(cameraclient.Config{
		BaseURL: env.LocalBaseURL(),
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, nil, cli.Internal("building camera client: %v", err)
	}
	return client, env, cfg, nil
}

// classify maps camera client errors onto the error taxonomy: rejected
// keys are an operator configuration problem, a non-JSON 2xx body means
// something other than the service answered, other service errors mean
// a broken dependency behind a live endpoint, and everything else is
// the endpoint being unreachable.
func classify(err error, cfg *config.Config, operation string) error {
	var parseError *cameraclient.ParseError
	if errors.As(err, &parseError) {
		return cli.Malformed("%s: %v", operation, parseError).
			WithHint(fmt.Sprintf("the port may be serving something else; check %s and the service logs", cfg.Services.CameraUnit))
	}
	var statusError *cameraclient.StatusError
	if errors.As(err, &statusError) {
		if statusError.Unauthorized() {
			return cli.Validation("camera service rejected the API key (%d)", statusError.StatusCode).
				WithHint(fmt.Sprintf("set CAMERA_API_KEY in %s to the key the service was started with", cfg.Paths.EnvFile))
		}
		return cli.Dependency("%s failed: %v", operation, statusError).
			WithHint(fmt.Sprintf("journalctl -u %s -n 50", cfg.Services.CameraUnit))
	}
	return cli.Unreachable("%s: %v", operation, err).
		WithHint(fmt.Sprintf("systemctl status %s", cfg.Services.CameraUnit))
}

// extension maps a Content-Type header to a file extension for derived
// output names.
func extension(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	switch strings.TrimSpace(contentType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}

// loadConfig resolves the tool configuration from an explicit path or
// the standard lookup chain.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, cli.Internal("loading configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("invalid configuration: %v", err)
	}
	return cfg, nil
}