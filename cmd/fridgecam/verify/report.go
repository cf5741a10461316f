// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"context"
	"log/slog"
	"time"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli/doctor"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/fridgelab/fridgecam/lib/envfile"
)

// Report runs the full nine-layer pipeline once and returns its
// results. The bundle command embeds a fresh report in diagnostic
// archives without shelling back into the CLI.
func Report(ctx context.Context, cfg *config.Config, env *envfile.Env, logger *slog.Logger, timeout time.Duration) []doctor.Result {
	return newPipeline(cfg, env, logger).Run(ctx, timeout)
}
