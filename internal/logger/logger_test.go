package logger_test

import (
	"bytes"
	"io"
	"testing"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/logger"
	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	logger.InitWithWriter(&buf, level, true)
	t.Cleanup(func() { logger.InitWithWriter(io.Discard, "warning", true) })

	return &buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logger.DebugLevel, logger.ParseLevel("DEBUG"))
	assert.Equal(t, logger.InfoLevel, logger.ParseLevel("info"))
	assert.Equal(t, logger.ErrorLevel, logger.ParseLevel("error"))
	assert.Equal(t, logger.WarnLevel, logger.ParseLevel("warning"))
	assert.Equal(t, logger.WarnLevel, logger.ParseLevel("bogus"))
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, "warning")

	logger.Debug().Msg("hidden debug")
	logger.Info().Msg("hidden info")
	logger.Warn().Msg("visible warning")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible warning")
}

func TestComponentFields(t *testing.T) {
	buf := capture(t, "debug")
	log := logger.Component("report")

	log.Debug().Msg("component debug")
	log.ErrorWithCode(errors.New().WithData(errors.ErrNotFound, "10.0.0.1")).Msg("lookup failed")

	out := buf.String()
	assert.Contains(t, out, "component debug")
	assert.Contains(t, out, "component=report")
	assert.Contains(t, out, "error_code=not_found")
	assert.Contains(t, out, "lookup failed")
}

func TestErrorWithCode(t *testing.T) {
	buf := capture(t, "error")

	logger.ErrorWithCode(errors.New().New(errors.ErrWriteOutput)).Msg("report not written")

	assert.Contains(t, buf.String(), "error_code=write_output_failed")
	assert.Contains(t, buf.String(), "report not written")
}
