package metrics

import (
	"context"

	"codeberg.org/mutker/hostwatch/internal/collector"
)

// Publisher exposes the readings of the latest batch as OpenTelemetry
// metrics.
type Publisher interface {
	Record(ctx context.Context, batch *collector.MonitoringBatch) error
	Shutdown(ctx context.Context) error
	Enabled() bool
}
