package collector

import "codeberg.org/mutker/hostwatch/internal/errors"

const (
	ErrCollectorFailure    = errors.ErrorCode("collector_failure")
	ErrBatchFailure        = errors.ErrorCode("collector_batch_failure")
	ErrDatabaseUnavailable = errors.ErrorCode("collector_database_unavailable")
	ErrUnknownDriver       = errors.ErrorCode("collector_unknown_driver")
	ErrInvalidCPUMode      = errors.ErrorCode("collector_invalid_cpu_mode")
)
