package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"
	ErrUnavailable     ErrorCode = "service_unavailable"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Device errors
	ErrDeviceUnreachable ErrorCode = "device_unreachable"
	ErrDeviceNotFound    ErrorCode = "device_not_found"
	ErrPlatformUnknown   ErrorCode = "platform_unknown"
	ErrToolMissing       ErrorCode = "tool_missing"

	// Collection errors
	ErrCommandTimeout         ErrorCode = "command_timeout"
	ErrCommandFailed          ErrorCode = "command_failed"
	ErrParseFailure           ErrorCode = "parse_failure"
	ErrAllStrategiesExhausted ErrorCode = "all_strategies_exhausted"

	// Lifecycle errors
	ErrLifecycleSequenceFailure ErrorCode = "lifecycle_sequence_failure"

	// Operation errors
	ErrOperationFailed  ErrorCode = "operation_failed"
	ErrTimeout          ErrorCode = "operation_timeout"
	ErrInvalidOperation ErrorCode = "invalid_operation"

	// Store errors
	ErrStoreClosed  ErrorCode = "store_closed"
	ErrPersistStore ErrorCode = "persist_store_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:                 "Internal error occurred",
	ErrInvalidArgument:          "Invalid argument provided",
	ErrNotImplemented:           "Operation not implemented",
	ErrUnavailable:              "Service unavailable",
	ErrAlreadyRunning:           "Another collector instance is already running",
	ErrInvalidConfig:            "Invalid configuration",
	ErrMissingConfig:            "Missing configuration",
	ErrBindFlags:                "Failed to bind flags",
	ErrReadConfig:               "Failed to read configuration",
	ErrInvalidInterval:          "Invalid interval value",
	ErrInvalidLogLevel:          "Invalid log level",
	ErrInitFailed:               "Initialization failed",
	ErrShutdownFailed:           "Shutdown failed",
	ErrDeviceUnreachable:        "Device is unreachable",
	ErrDeviceNotFound:           "Device not found",
	ErrPlatformUnknown:          "Unable to determine device platform",
	ErrToolMissing:              "Required device tool not found",
	ErrCommandTimeout:           "Device command timed out",
	ErrCommandFailed:            "Device command failed",
	ErrParseFailure:             "Failed to parse command output",
	ErrAllStrategiesExhausted:   "All collection strategies exhausted",
	ErrLifecycleSequenceFailure: "Lifecycle sequence failed",
	ErrOperationFailed:          "Operation failed",
	ErrTimeout:                  "Operation timed out",
	ErrInvalidOperation:         "Invalid operation",
	ErrStoreClosed:              "Result store is closed",
	ErrPersistStore:             "Failed to persist result store",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
