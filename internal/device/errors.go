package device

import "codeberg.org/mutker/mperf/internal/errors"

const (
	ErrDeviceUnreachable = errors.ErrDeviceUnreachable
	ErrDeviceNotFound    = errors.ErrDeviceNotFound
	ErrPlatformUnknown   = errors.ErrPlatformUnknown
	ErrToolMissing       = errors.ErrToolMissing
	ErrInvalidVersion    = errors.ErrorCode("device_invalid_version")
)
