package sampler

import "codeberg.org/mutker/hostwatch/internal/errors"

const (
	ErrSampleUnavailable = errors.ErrorCode("sampler_sample_unavailable")
	ErrUnknownCounter    = errors.ErrorCode("sampler_unknown_counter")
	ErrUnknownCategory   = errors.ErrorCode("sampler_unknown_category")
	ErrProbeFailed       = errors.ErrorCode("sampler_probe_failed")
)

// Unavailable marks err as a failed read.
func Unavailable(err error) errors.Error {
	return errors.New().Wrap(ErrSampleUnavailable, err)
}
