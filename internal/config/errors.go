package config

import "codeberg.org/mutker/mperf/internal/errors"

const (
	ErrInvalidConfig     = errors.ErrInvalidConfig
	ErrReadConfig        = errors.ErrReadConfig
	ErrBindFlags         = errors.ErrBindFlags
	ErrInvalidInterval   = errors.ErrInvalidInterval
	ErrInvalidLogLevel   = errors.ErrInvalidLogLevel
	ErrInvalidPlatform   = errors.ErrorCode("config_invalid_platform")
	ErrInvalidWorkers    = errors.ErrorCode("config_invalid_max_workers")
	ErrMissingPackages   = errors.ErrorCode("config_missing_packages")
	ErrInvalidOutputPath = errors.ErrorCode("config_invalid_output_path")
)
