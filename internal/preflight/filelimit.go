//go:build unix

package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the descriptor limit below which doctor warns. The
// daemon holds one descriptor per client connection.
const MinFileDescriptors = 256

// CheckFileDescriptors checks the process file descriptor limit.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: false,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to read limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusWarn
		result.Details = fmt.Sprintf("Run 'ulimit -n %d' before starting the daemon", MinFileDescriptors*4)
		return result
	}
	result.Status = StatusPass
	return result
}
