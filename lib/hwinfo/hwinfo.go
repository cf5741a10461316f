// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package hwinfo probes the host hardware the camera service runs on.
// It reads board identity, memory, load, and the SoC temperature from
// /proc and /sys. Setup logs the result so operators can tell at a
// glance which device an SSH session landed on; diagnostic bundles
// record it so support sees the hardware next to the failure.
//
// Probing never returns an error: a field whose source file is missing
// or unreadable stays at its zero value. A container or a non-Pi test
// box is a valid host that should still report what it can.
package hwinfo

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// HostInfo is a point-in-time inventory of the device.
type HostInfo struct {
	// Model is the board identity, e.g. "Raspberry Pi 4 Model B Rev
	// 1.4". Device-tree on the Pi, DMI product name elsewhere.
	Model string `json:"model,omitempty"`

	Hostname      string `json:"hostname,omitempty"`
	KernelVersion string `json:"kernel_version,omitempty"`

	CPUModel string `json:"cpu_model,omitempty"`
	CPUCount int    `json:"cpu_count,omitempty"`

	MemoryTotalMB     int `json:"memory_total_mb,omitempty"`
	MemoryAvailableMB int `json:"memory_available_mb,omitempty"`
	SwapTotalMB       int `json:"swap_total_mb,omitempty"`

	// Load1 is the one-minute load average at probe time.
	Load1 float64 `json:"load_1m,omitempty"`

	UptimeSeconds int64 `json:"uptime_seconds,omitempty"`

	// SoCTemperatureC is the first thermal zone's reading in degrees
	// Celsius. The Pi throttles around 80; a camera wedged against a
	// warm compressor housing gets there faster than expected.
	SoCTemperatureC float64 `json:"soc_temperature_c,omitempty"`
}

// Probe collects the host inventory from the live system.
func Probe() HostInfo {
	return probeFrom("/proc", "/sys")
}

// probeFrom is the testable implementation of Probe. It accepts root
// paths for /proc and /sys so tests can point at synthetic trees.
func probeFrom(procRoot, sysRoot string) HostInfo {
	info := HostInfo{
		CPUCount: runtime.NumCPU(),
	}

	info.Hostname, _ = os.Hostname()
	info.KernelVersion = readTrimmed(filepath.Join(procRoot, "sys/kernel/osrelease"))
	info.Model = readBoardModel(sysRoot)
	info.CPUModel = readCPUModel(filepath.Join(procRoot, "cpuinfo"))
	info.MemoryTotalMB, info.MemoryAvailableMB, info.SwapTotalMB = readMemory(filepath.Join(procRoot, "meminfo"))
	info.Load1 = readLoad1(filepath.Join(procRoot, "loadavg"))
	info.UptimeSeconds = readUptime(filepath.Join(procRoot, "uptime"))
	info.SoCTemperatureC = readSoCTemperature(sysRoot)

	return info
}

// readTrimmed returns a file's content with surrounding whitespace and
// any trailing NUL removed, or "" when unreadable. Device-tree files
// are NUL-terminated; everything under /proc ends in a newline.
func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(string(data), "\x00"))
}

// readBoardModel resolves the board identity. Raspberry Pis publish it
// in the device tree; x86 test boxes carry DMI instead.
func readBoardModel(sysRoot string) string {
	if model := readTrimmed(filepath.Join(sysRoot, "firmware/devicetree/base/model")); model != "" {
		return model
	}
	return readTrimmed(filepath.Join(sysRoot, "class/dmi/id/product_name"))
}

// readCPUModel extracts the processor name from /proc/cpuinfo. x86
// kernels emit per-core "model name" lines; ARM kernels put the SoC in
// a trailing "Model" or legacy "Hardware" line instead.
func readCPUModel(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	byKey := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if _, seen := byKey[key]; !seen {
			byKey[key] = strings.TrimSpace(value)
		}
	}

	for _, key := range []string{"model name", "Model", "Hardware"} {
		if value := byKey[key]; value != "" {
			return value
		}
	}
	return ""
}

// readMemory parses MemTotal, MemAvailable, and SwapTotal out of
// /proc/meminfo. Values are reported by the kernel in kB.
func readMemory(path string) (totalMB, availableMB, swapMB int) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields := strings.Fields(value)
		if len(fields) == 0 {
			continue
		}
		kb, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		switch strings.TrimSpace(key) {
		case "MemTotal":
			totalMB = int(kb / 1024)
		case "MemAvailable":
			availableMB = int(kb / 1024)
		case "SwapTotal":
			swapMB = int(kb / 1024)
		}
	}
	return totalMB, availableMB, swapMB
}

// readLoad1 parses the one-minute average from /proc/loadavg.
func readLoad1(path string) float64 {
	fields := strings.Fields(readTrimmed(path))
	if len(fields) == 0 {
		return 0
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return load
}

// readUptime parses whole seconds from /proc/uptime.
func readUptime(path string) int64 {
	fields := strings.Fields(readTrimmed(path))
	if len(fields) == 0 {
		return 0
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return int64(seconds)
}

// readSoCTemperature reads the first thermal zone in millidegrees and
// converts to Celsius. The Pi exposes the SoC there as zone 0.
func readSoCTemperature(sysRoot string) float64 {
	raw := readTrimmed(filepath.Join(sysRoot, "class/thermal/thermal_zone0/temp"))
	if raw == "" {
		return 0
	}
	milli, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return float64(milli) / 1000
}
