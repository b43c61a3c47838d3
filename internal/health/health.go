// Package health checks host resources during long runs. Findings are
// advisory; collection continues regardless.
package health

import (
	"context"
	"fmt"

	"codeberg.org/mutker/mperf/internal/errors"
	"codeberg.org/mutker/mperf/internal/logger"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	ErrHostCheckFailed errors.ErrorCode = "host_check_failed"

	defaultMemoryThreshold = 90.0
	defaultDiskThreshold   = 95.0
)

// Status reports host resource usage and any threshold breaches.
type Status struct {
	MemoryPercent float64
	DiskPercent   float64
	Warnings      []string
}

type Checker struct {
	memoryThreshold float64
	diskThreshold   float64
	diskPath        string
}

func NewChecker() *Checker {
	return &Checker{
		memoryThreshold: defaultMemoryThreshold,
		diskThreshold:   defaultDiskThreshold,
		diskPath:        "/",
	}
}

// Check reads host memory and disk usage and logs a warning for every
// breached threshold.
func (c *Checker) Check(ctx context.Context) (Status, error) {
	errFactory := errors.New()

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Status{}, errFactory.Wrap(ErrHostCheckFailed, err)
	}
	du, err := disk.UsageWithContext(ctx, c.diskPath)
	if err != nil {
		return Status{}, errFactory.Wrap(ErrHostCheckFailed, err)
	}

	status := Status{
		MemoryPercent: vm.UsedPercent,
		DiskPercent:   du.UsedPercent,
	}
	if vm.UsedPercent > c.memoryThreshold {
		status.Warnings = append(status.Warnings,
			fmt.Sprintf("host memory usage at %.1f%%", vm.UsedPercent))
	}
	if du.UsedPercent > c.diskThreshold {
		status.Warnings = append(status.Warnings,
			fmt.Sprintf("host disk usage at %.1f%%", du.UsedPercent))
	}

	for _, w := range status.Warnings {
		logger.Warn().Str("warning", w).Msg("Host resource pressure")
	}

	return status, nil
}
