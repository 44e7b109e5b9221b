package metadata

import "codeberg.org/mutker/hostwatch/internal/errors"

const (
	ErrTokenRefresh   = errors.ErrorCode("metadata_token_refresh")
	ErrRequestFailed  = errors.ErrorCode("metadata_request_failed")
	ErrUnexpectedCode = errors.ErrorCode("metadata_unexpected_status")
)
