// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package env implements "fridgecam env": show the device environment
// file as the camera service will see it, secrets redacted. Output is
// env-file shaped so operators can paste rows straight back into
// fridgecam.env; context lines ride along as # comments, which the
// lenient parser skips.
package env

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/fridgelab/fridgecam/lib/envfile"
)

type commandParams struct {
	cli.JSONOutput
	Config string `flag:"config" desc:"path to fridgecam.yaml (default: standard locations)"`
}

// report is the --json shape: the raw (redacted) pairs plus the values
// derived from them, so scripts need not duplicate the default rules.
type report struct {
	File         string `json:"file"`
	Exists       bool   `json:"exists"`
	Entries      []pair `json:"entries"`
	SkippedLines int    `json:"skipped_lines"`
	ServerPort   int    `json:"server_port"`
	LocalBaseURL string `json:"local_base_url"`
	Domain       string `json:"domain,omitempty"`
}

type pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Command returns the env command.
func Command() *cli.Command {
	var params commandParams

	return &cli.Command{
		Name:    "env",
		Summary: "Show the device environment (secrets redacted)",
		Description: `Print the effective device environment from fridgecam.env.

The API key is replaced with a placeholder and any password embedded
in MONGO_URI is masked, so the output is safe to share in a support
thread. Values the service derives from the file (server port, local
base URL) are appended as comments.`,
		Examples: []cli.Example{
			{
				Description: "Show the effective environment",
				Command:     "fridgecam env",
			},
			{
				Description: "Machine-readable form for scripts",
				Command:     "fridgecam env --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("env", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}

			cfg, err := loadConfig(params.Config)
			if err != nil {
				return err
			}

			path := cfg.Paths.EnvFile
			exists := true
			env, err := envfile.Read(path)
			if err != nil {
				if !os.IsNotExist(err) {
					return cli.Internal("reading %s: %v", path, err)
				}
				exists = false
				env = envfile.Parse(strings.NewReader(""))
			}

			if params.OutputJSON {
				out := report{
					File:         path,
					Exists:       exists,
					Entries:      []pair{},
					SkippedLines: env.SkippedLines(),
					ServerPort:   env.ServerPort(),
					LocalBaseURL: env.LocalBaseURL(),
					Domain:       env.Domain(),
				}
				for _, entry := range env.Redacted() {
					out.Entries = append(out.Entries, pair{Key: entry.Key, Value: entry.Value})
				}
				return cli.WriteJSON(out)
			}

			if !exists {
				logger.Warn("env file not present; defaults in effect", "path", path)
			}
			if skipped := env.SkippedLines(); skipped > 0 {
				logger.Warn("malformed lines skipped", "path", path, "count", skipped)
			}

			fmt.Printf("# file: %s\n", path)
			for _, entry := range env.Redacted() {
				fmt.Printf("%s=%s\n", entry.Key, entry.Value)
			}
			fmt.Printf("# local base URL: %s\n", env.LocalBaseURL())
			if domain := env.Domain(); domain != "" {
				fmt.Printf("# remote: https://%s\n", domain)
			}
			return nil
		},
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
