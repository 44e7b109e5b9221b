package collector

import (
	"context"

	"codeberg.org/mutker/hostwatch/internal/logger"
	"codeberg.org/mutker/hostwatch/internal/sampler"
)

// Collector produces one snapshot of its domain per call. Sampler failures
// degrade individual readings, they never make Collect fail.
type Collector[T any] interface {
	Collect(ctx context.Context) T
}

// CollectorFunc adapts a plain function to Collector.
type CollectorFunc[T any] func(ctx context.Context) T

func (f CollectorFunc[T]) Collect(ctx context.Context) T {
	return f(ctx)
}

var log = logger.Component("collector")

// readOr reads counter once, substituting 0 on failure.
func readOr(ctx context.Context, reader sampler.Reader, counter sampler.Counter) float64 {
	value, err := reader.Read(ctx, counter)
	if err != nil {
		log.Warn().Err(err).Str("counter", counter.String()).Msg("Counter unavailable, using 0")
		return 0
	}

	return value
}

// sampleOr rate-samples counter, substituting 0 on failure.
func sampleOr(ctx context.Context, rates *sampler.RateSampler, counter sampler.Counter) float64 {
	value, err := rates.Sample(ctx, counter)
	if err != nil {
		log.Warn().Err(err).Str("counter", counter.String()).Msg("Rate counter unavailable, using 0")
		return 0
	}

	return value
}

// sampleAllOr rate-samples counters together over one warm-up delay.
func sampleAllOr(ctx context.Context, rates *sampler.RateSampler, counters ...sampler.Counter) []float64 {
	values, err := rates.SampleAll(ctx, counters...)
	if err != nil {
		log.Warn().Err(err).Int("counters", len(counters)).Msg("Some rate counters unavailable, using 0")
	}

	return values
}
