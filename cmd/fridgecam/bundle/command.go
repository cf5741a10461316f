// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundle implements "fridgecam bundle": collect everything a
// support thread asks for — verification report, redacted environment,
// installed unit files, journal tails, camera settings, disk state —
// into one zstd-compressed tar archive.
package bundle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli"
	bundlelib "github.com/fridgelab/fridgecam/lib/bundle"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/fridgelab/fridgecam/lib/version"
)

type commandParams struct {
	Config string `flag:"config" desc:"path to fridgecam.yaml (default: standard locations)"`
	Output string `flag:"output" desc:"output file (default: fridgecam-bundle-<timestamp>.tar.zst)"`
}

// Command returns the bundle command.
func Command() *cli.Command {
	var params commandParams

	return &cli.Command{
		Name:    "bundle",
		Summary: "Collect a diagnostic bundle for support",
		Description: `Assemble a support archive from the device: a fresh verification
report, the environment file with secrets redacted, the installed unit
files and their digests, journal tails for both services, the camera
settings document, and basic system information.

Collection is best-effort: missing pieces are noted inside the archive
instead of failing it. The archive opens with manifest.json listing
every member with a BLAKE3 digest.`,
		Examples: []cli.Example{
			{
				Description: "Write a timestamped bundle in the current directory",
				Command:     "fridgecam bundle",
			},
			{
				Description: "Write to a specific path",
				Command:     "fridgecam bundle --output /tmp/fridge.tar.zst",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("bundle", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}

			cfg, err := loadConfig(params.Config)
			if err != nil {
				return err
			}

			gatherer := newGatherer(cfg, logger)
			return writeBundle(ctx, gatherer, params.Output, logger)
		},
	}
}

// writeBundle gathers members and writes the archive, temp file first
// so an interrupted run never leaves a truncated bundle at the final
// name.
func writeBundle(ctx context.Context, gatherer *gatherer, output string, logger *slog.Logger) error {
	files, err := gatherer.gather(ctx)
	if err != nil {
		return cli.Internal("gathering bundle members: %v", err)
	}

	createdAt := gatherer.now()
	if output == "" {
		output = bundlelib.FileName(createdAt)
	}

	dir := filepath.Dir(output)
	temp, err := os.CreateTemp(dir, filepath.Base(output)+"-*.tmp")
	if err != nil {
		return cli.Internal("creating temp file in %s: %v", dir, err)
	}
	success := false
	defer func() {
		if !success {
			os.Remove(temp.Name())
		}
	}()

	manifest, err := bundlelib.Write(temp, "fridgecam "+version.Info(), createdAt, files)
	if err != nil {
		temp.Close()
		return cli.Internal("writing bundle: %v", err)
	}
	if err := temp.Close(); err != nil {
		return cli.Internal("closing %s: %v", temp.Name(), err)
	}
	if err := os.Rename(temp.Name(), output); err != nil {
		return cli.Internal("renaming bundle into place: %v", err)
	}
	success = true

	logger.Info("bundle written",
		"path", output,
		"members", len(manifest.Files),
		"created_at", manifest.CreatedAt)
	fmt.Println(output)
	return nil
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
