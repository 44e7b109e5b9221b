package instances

import "codeberg.org/mutker/hostwatch/internal/errors"

const (
	ErrEnumerationFailed = errors.ErrorCode("instances_enumeration_failed")
	ErrIdentityFailed    = errors.ErrorCode("instances_identity_failed")
	ErrClientConfig      = errors.ErrorCode("instances_client_config")
)
