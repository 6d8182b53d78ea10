package preflight

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// MinMemoryBytes is the available memory below which doctor warns. Both
// indexes live in RAM.
const MinMemoryBytes = 512 * 1024 * 1024

// CheckMemory checks available system memory.
func (c *Checker) CheckMemory(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "memory",
		Required: false,
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to read memory stats: %v", err)
		return result
	}

	msg := fmt.Sprintf("%s available (recommended: %s)", formatBytes(vm.Available), formatBytes(MinMemoryBytes))
	if vm.Available < MinMemoryBytes {
		result.Status = StatusWarn
		result.Message = msg
		result.Details = fmt.Sprintf("%.0f%% of %s in use", vm.UsedPercent, formatBytes(vm.Total))
		return result
	}

	result.Status = StatusPass
	result.Message = msg
	return result
}
