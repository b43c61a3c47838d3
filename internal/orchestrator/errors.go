package orchestrator

import "codeberg.org/mutker/mperf/internal/errors"

const (
	ErrDeviceUnreachable = errors.ErrDeviceUnreachable
	ErrPersistStore      = errors.ErrPersistStore
	ErrInvalidConfig     = errors.ErrInvalidConfig
)
