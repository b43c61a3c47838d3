package archive

import "codeberg.org/mutker/mperf/internal/errors"

const (
	ErrInvalidConfig          errors.ErrorCode = "archive_invalid_config"
	ErrInvalidDBPath          errors.ErrorCode = "archive_invalid_db_path"
	ErrStorageInit            errors.ErrorCode = "archive_storage_init_failed"
	ErrStorageClose           errors.ErrorCode = "archive_storage_close_failed"
	ErrSchemaInitFailed       errors.ErrorCode = "archive_schema_init_failed"
	ErrSchemaValidationFailed errors.ErrorCode = "archive_schema_validation_failed"
	ErrTransactionFailed      errors.ErrorCode = "archive_transaction_failed"
	ErrInvalidRecord          errors.ErrorCode = "archive_invalid_record"
)
