// Package system provides OS-level utilities for disk monitoring,
// thermal state, display resolution and general health checks on the
// Raspberry Pi.
package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"kiosk-player/internal/logger"
)

// thermalZone is the Raspberry Pi SoC temperature in millidegrees.
var thermalZone = "/sys/class/thermal/thermal_zone0/temp"

// HealthStatus represents the current system health snapshot.
type HealthStatus struct {
	DiskUsedPct   float64   `json:"disk_used_pct"`
	DiskFreeBytes uint64    `json:"disk_free_bytes"`
	CPUTempC      float64   `json:"cpu_temp_c"`
	Throttled     bool      `json:"throttled"`
	Timestamp     time.Time `json:"timestamp"`
}

// GetCPUTemp reads the Raspberry Pi thermal zone and returns
// the temperature in degrees Celsius.
func GetCPUTemp() (float64, error) {
	data, err := os.ReadFile(thermalZone)
	if err != nil {
		return 0, fmt.Errorf("read cpu temp: %w", err)
	}

	milliC, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse cpu temp: %w", err)
	}

	return milliC / 1000.0, nil
}

// GetDiskUsage returns the usage percentage and free bytes for
// the filesystem mounted at the given path (default "/").
func GetDiskUsage(ctx context.Context, path string) (usedPct float64, freeBytes uint64, err error) {
	if path == "" {
		path = "/"
	}

	out, err := exec.CommandContext(ctx, "df", "--output=pcent,avail", "-B1", path).Output()
	if err != nil {
		return 0, 0, fmt.Errorf("df command failed: %w", err)
	}
	return parseDF(string(out))
}

func parseDF(out string) (float64, uint64, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return 0, 0, errors.New("unexpected df output")
	}

	fields := strings.Fields(lines[1])
	if len(fields) < 2 {
		return 0, 0, errors.New("unexpected df fields")
	}

	pct, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "%"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse disk pct: %w", err)
	}

	free, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse disk free: %w", err)
	}

	return pct, free, nil
}

// IsThrottled asks vcgencmd whether the CPU is currently throttled
// because of temperature or power supply issues.
func IsThrottled(ctx context.Context) (bool, error) {
	out, err := exec.CommandContext(ctx, "vcgencmd", "get_throttled").Output()
	if err != nil {
		return false, fmt.Errorf("vcgencmd failed: %w", err)
	}
	return parseThrottled(string(out))
}

// parseThrottled reads "throttled=0x50005".
func parseThrottled(out string) (bool, error) {
	parts := strings.SplitN(strings.TrimSpace(out), "=", 2)
	if len(parts) < 2 {
		return false, errors.New("unexpected vcgencmd output")
	}

	val, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "0x"), 16, 64)
	if err != nil {
		return false, fmt.Errorf("parse throttle value: %w", err)
	}

	return val != 0, nil
}

// SetResolution uses fbset to configure the framebuffer resolution.
// Common values: 1920x1080 or 3840x2160.
func SetResolution(ctx context.Context, width, height int) error {
	cmd := exec.CommandContext(ctx, "fbset", "-xres", strconv.Itoa(width), "-yres", strconv.Itoa(height))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("fbset failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	log := logger.Component("system")
	log.Info().Int("width", width).Int("height", height).Msg("resolution set")
	return nil
}

// RunHealthCheck performs a full system health snapshot. Probes that
// fail leave their fields zero.
func RunHealthCheck(ctx context.Context) HealthStatus {
	log := logger.Component("system")
	status := HealthStatus{
		Timestamp: time.Now(),
	}

	if temp, err := GetCPUTemp(); err == nil {
		status.CPUTempC = temp
	} else {
		log.Debug().Err(err).Msg("health: temp read failed")
	}

	if pct, free, err := GetDiskUsage(ctx, "/"); err == nil {
		status.DiskUsedPct = pct
		status.DiskFreeBytes = free
	} else {
		log.Debug().Err(err).Msg("health: disk read failed")
	}

	if throttled, err := IsThrottled(ctx); err == nil {
		status.Throttled = throttled
	} else {
		log.Debug().Err(err).Msg("health: throttle check failed")
	}

	log.Debug().
		Float64("temp_c", status.CPUTempC).
		Float64("disk_pct", status.DiskUsedPct).
		Bool("throttled", status.Throttled).
		Msg("health snapshot")

	return status
}

// EnsureDir creates a directory and all parents if it does not exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
