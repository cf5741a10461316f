// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package diskfree reports free space on the filesystem holding a
// path. The camera service archives frames until a retention job
// deletes them, so provisioning and diagnostics both surface how much
// room the data directory has left.
package diskfree

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Usage describes the space on the filesystem holding a path.
type Usage struct {
	// FreeBytes is the space available to unprivileged writers.
	FreeBytes uint64

	// TotalBytes is the filesystem size.
	TotalBytes uint64
}

// Stat returns the usage of the filesystem containing path.
func Stat(path string) (Usage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	blockSize := uint64(stat.Bsize)
	return Usage{
		FreeBytes:  stat.Bavail * blockSize,
		TotalBytes: stat.Blocks * blockSize,
	}, nil
}

// FreeGB returns the free space in gigabytes.
func (u Usage) FreeGB() float64 {
	return float64(u.FreeBytes) / (1 << 30)
}

func (u Usage) String() string {
	return fmt.Sprintf("%.1f GB free of %.1f GB", u.FreeGB(), float64(u.TotalBytes)/(1<<30))
}
