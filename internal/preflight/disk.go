package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// DiskProbe reports free space on the filesystem holding Path.
type DiskProbe struct {
	Path string
}

// NewDiskProbe returns a probe for path. path need not exist yet; the
// nearest existing ancestor is measured.
func NewDiskProbe(path string) *DiskProbe {
	return &DiskProbe{Path: path}
}

// Free returns the bytes available to unprivileged users.
func (p *DiskProbe) Free(ctx context.Context) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, existingAncestor(p.Path))
	if err != nil {
		return 0, fmt.Errorf("disk usage for %s: %w", p.Path, err)
	}
	return usage.Free, nil
}

// HasFreeSpace reports whether at least minBytes are free. minBytes <= 0
// passes whenever the probe itself succeeds.
func (p *DiskProbe) HasFreeSpace(ctx context.Context, minBytes int64) (bool, error) {
	free, err := p.Free(ctx)
	if err != nil {
		return false, err
	}
	if minBytes <= 0 {
		return true, nil
	}
	return free >= uint64(minBytes), nil
}

func existingAncestor(path string) string {
	if path == "" {
		return string(filepath.Separator)
	}
	p := filepath.Clean(path)
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}

// CheckDiskSpace checks free space at path against the configured minimum.
func (c *Checker) CheckDiskSpace(ctx context.Context, path string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
	}

	free, err := NewDiskProbe(path).Free(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	minimum := fmt.Sprintf("minimum: %s", formatBytes(uint64(c.minDiskSpace)))
	if c.minDiskSpace > 0 && free < uint64(c.minDiskSpace) {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s free (%s)", formatBytes(free), minimum)
		result.Details = "Index archives are not loaded below this threshold"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s free (%s)", formatBytes(free), minimum)
	return result
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
