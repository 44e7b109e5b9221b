package metrics

import (
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
)

// Exporter names accepted in the metrics configuration.
const (
	ExporterStdout   = "stdout"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"

	defaultServiceName = "hostwatch"
	defaultInterval    = time.Minute
)

type Config struct {
	Enabled        bool
	Exporter       string
	Endpoint       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string
	Interval       time.Duration
	Attributes     map[string]string
}

func DefaultConfig() Config {
	return Config{
		Enabled:     false, // Disabled by default
		Exporter:    ExporterStdout,
		ServiceName: defaultServiceName,
		Interval:    defaultInterval,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate the exporter if metrics is enabled
	if !c.Enabled {
		return nil
	}

	switch c.Exporter {
	case ExporterStdout, ExporterOTLPGRPC, ExporterOTLPHTTP:
	default:
		return errFactory.WithData(ErrInvalidExporter, c.Exporter)
	}

	if c.Interval < 0 {
		return errFactory.WithData(ErrInvalidConfig, "metrics.interval cannot be negative")
	}

	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
