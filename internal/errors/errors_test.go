package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	f := errors.New()
	cause := stderrors.New("disk full")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"known code", f.New(errors.ErrTimeout), "Operation timed out (operation_timeout)"},
		{"unknown code", f.New(errors.ErrorCode("custom_code")), "custom_code (custom_code)"},
		{"custom message", f.WithMessage(errors.ErrInvalidArgument, "IP address cannot be empty"),
			"IP address cannot be empty (invalid_argument)"},
		{"data", f.WithData(errors.ErrNotFound, "10.0.0.1"), "Not found (not_found): 10.0.0.1"},
		{"wrapped", f.Wrap(errors.ErrWriteOutput, cause), "Failed to write output (write_output_failed): disk full"},
		{"wrapped with data", f.Wrap(errors.ErrWriteOutput, cause).WithData("/tmp/x.json"),
			"Failed to write output (write_output_failed): /tmp/x.json: disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, tt.err, tt.want)
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := errors.New().Wrap(errors.ErrInternal, cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestIsMatchesByCode(t *testing.T) {
	f := errors.New()
	err := fmt.Errorf("cycle: %w", f.Wrap(errors.ErrUnavailable, stderrors.New("refused")))

	assert.True(t, errors.Is(err, f.New(errors.ErrUnavailable)))
	assert.False(t, errors.Is(err, f.New(errors.ErrTimeout)))
}

func TestCodeOf(t *testing.T) {
	f := errors.New()

	assert.Equal(t, errors.ErrNotFound, errors.CodeOf(f.New(errors.ErrNotFound)))
	assert.Equal(t, errors.ErrNotFound, errors.CodeOf(fmt.Errorf("lookup: %w", f.New(errors.ErrNotFound))))
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(stderrors.New("plain")))
}

func TestWithDataDoesNotMutate(t *testing.T) {
	base := errors.New().New(errors.ErrInvalidConfig)
	withData := base.WithData("cpu.mode=bogus")

	assert.Nil(t, base.GetData())
	assert.Equal(t, "cpu.mode=bogus", withData.GetData())

	var appErr errors.Error
	require.True(t, errors.As(withData, &appErr))
	assert.Equal(t, errors.ErrInvalidConfig, appErr.Code())
}

func TestCoded(t *testing.T) {
	f := errors.New()

	inner := f.WithData(errors.ErrAlreadyRunning, "/run/hostwatch.pid")
	coded := errors.Coded(fmt.Errorf("startup: %w", inner), errors.ErrInitFailed)
	assert.Equal(t, errors.ErrAlreadyRunning, coded.Code())

	plain := stderrors.New("no such file")
	coded = errors.Coded(plain, errors.ErrInitFailed)
	assert.Equal(t, errors.ErrInitFailed, coded.Code())
	assert.True(t, errors.Is(coded, plain))
}
