package command

import "codeberg.org/mutker/mperf/internal/errors"

const (
	ErrCommandTimeout    = errors.ErrCommandTimeout
	ErrCommandFailed     = errors.ErrCommandFailed
	ErrDeviceUnreachable = errors.ErrDeviceUnreachable
	ErrToolMissing       = errors.ErrToolMissing
	ErrEmptySpec         = errors.ErrorCode("command_empty_spec")
)
