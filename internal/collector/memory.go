package collector

import (
	"context"
	"fmt"

	"codeberg.org/mutker/hostwatch/internal/sampler"
)

type MemoryCollector struct {
	reader sampler.Reader
	rates  *sampler.RateSampler
}

func NewMemoryCollector(reader sampler.Reader, rates *sampler.RateSampler) *MemoryCollector {
	return &MemoryCollector{reader: reader, rates: rates}
}

func (c *MemoryCollector) Collect(ctx context.Context) MemoryMetrics {
	var metrics MemoryMetrics

	metrics.AvailableMBytes = round2(readOr(ctx, c.reader, sampler.AvailableMBytes))
	metrics.PagesPerSec = round2(sampleOr(ctx, c.rates, sampler.PagesPerSec))
	metrics.TotalMemoryMBytes = round2(readOr(ctx, c.reader, sampler.TotalMBytes))
	metrics.AvailableMemoryPercentage = percent(metrics.AvailableMBytes, metrics.TotalMemoryMBytes)

	// A zero total means the reading failed.
	if metrics.TotalMemoryMBytes > 0 &&
		metrics.AvailableMemoryPercentage < AvailableMemoryThreshold &&
		metrics.PagesPerSec > PagesPerSecThreshold {
		metrics.AlertTriggered = true
		metrics.AlertMessage = fmt.Sprintf(
			"Memory Pressure Alert: Available memory is %s%% (threshold: %s%%) and Pages/sec is %s (threshold: %s)",
			num(metrics.AvailableMemoryPercentage), num(AvailableMemoryThreshold),
			num(metrics.PagesPerSec), num(PagesPerSecThreshold))
	}

	return metrics
}
