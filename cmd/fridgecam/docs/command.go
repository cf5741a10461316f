// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package docs implements "fridgecam docs": print the operator
// runbook. On a terminal the embedded markdown renders as styled,
// width-wrapped text; piped output gets the raw markdown so it stays
// grep-able and diffable.
package docs

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli"
	"github.com/fridgelab/fridgecam/lib/content"
	"github.com/fridgelab/fridgecam/lib/runbook"
)

// maxRenderWidth caps prose wrapping on wide terminals. Lines longer
// than this are hard to read; an explicit --width still wins.
const maxRenderWidth = 100

// fallbackWidth is used when the terminal size cannot be determined.
const fallbackWidth = 80

type commandParams struct {
	Raw   bool `flag:"raw" desc:"print the runbook as raw markdown"`
	Width int  `flag:"width" desc:"wrap width for rendered output (default: terminal width)"`
}

// Command returns the docs command.
func Command() *cli.Command {
	var params commandParams

	return &cli.Command{
		Name:    "docs",
		Summary: "Show the operator runbook",
		Description: `Print the operator runbook: provisioning walkthrough, verification
layers, and recovery steps for common failures.

The runbook is embedded in the binary, so it is available on a device
with no network. Output is rendered for the terminal; pipe it or pass
--raw to get the markdown source.`,
		Examples: []cli.Example{
			{
				Description: "Read the runbook in the terminal",
				Command:     "fridgecam docs",
			},
			{
				Description: "Save the markdown source",
				Command:     "fridgecam docs --raw > RUNBOOK.md",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("docs", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			if params.Width < 0 {
				return cli.Validation("--width must be positive, got %d", params.Width)
			}

			source := content.Runbook()
			if params.Raw || !term.IsTerminal(int(os.Stdout.Fd())) {
				fmt.Print(source)
				return nil
			}

			fmt.Print(runbook.Render(source, runbook.DefaultTheme(), renderWidth(params.Width)))
			return nil
		},
	}
}

// renderWidth resolves the wrap width: an explicit flag wins, then the
// terminal width capped for readability, then a fixed fallback.
func renderWidth(flagWidth int) int {
	if flagWidth > 0 {
		return flagWidth
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallbackWidth
	}
	if width > maxRenderWidth {
		return maxRenderWidth
	}
	return width
}
