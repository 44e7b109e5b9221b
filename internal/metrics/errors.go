package metrics

import "codeberg.org/mutker/hostwatch/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig   = errors.ErrInvalidConfig
	ErrInvalidExporter = errors.ErrorCode("metrics_invalid_exporter")

	// Exporter Errors
	ErrExporterInit = errors.ErrorCode("metrics_exporter_init_failed")
	ErrResource     = errors.ErrorCode("metrics_resource_failed")
	ErrInstruments  = errors.ErrorCode("metrics_instruments_failed")

	// Service Errors
	ErrServiceShutdown = errors.ErrShutdownFailed

	// Collection Errors
	ErrInvalidMetrics = errors.ErrorCode("metrics_invalid_metrics")
)
