package sampler

import (
	"context"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
)

// DefaultWarmupDelay is the pause between the discarded and the timed read.
const DefaultWarmupDelay = 100 * time.Millisecond

// WaitFunc pauses for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// RateSampler turns rate counters into usable values by discarding the
// warm-up read, waiting, and returning the second read.
type RateSampler struct {
	reader Reader
	delay  time.Duration
	wait   WaitFunc
}

func NewRateSampler(reader Reader, delay time.Duration) *RateSampler {
	if delay <= 0 {
		delay = DefaultWarmupDelay
	}

	return &RateSampler{
		reader: reader,
		delay:  delay,
		wait:   Wait,
	}
}

// WithWait replaces the pause between reads, mostly for tests.
func (s *RateSampler) WithWait(wait WaitFunc) *RateSampler {
	s.wait = wait
	return s
}

func (s *RateSampler) Delay() time.Duration {
	return s.delay
}

// Sample returns the second of two reads taken Delay apart. If either read
// fails the result is 0 along with the failure.
func (s *RateSampler) Sample(ctx context.Context, counter Counter) (float64, error) {
	if _, err := s.reader.Read(ctx, counter); err != nil {
		return 0, Unavailable(err)
	}

	if err := s.wait(ctx, s.delay); err != nil {
		return 0, Unavailable(err)
	}

	value, err := s.reader.Read(ctx, counter)
	if err != nil {
		return 0, Unavailable(err)
	}

	return value, nil
}

// SampleAll warms up every counter, waits once, then reads them all again.
// Failed counters read as 0 and their errors are joined in the result.
func (s *RateSampler) SampleAll(ctx context.Context, counters ...Counter) ([]float64, error) {
	values := make([]float64, len(counters))
	failed := make([]error, len(counters))

	for i, counter := range counters {
		if _, err := s.reader.Read(ctx, counter); err != nil {
			failed[i] = Unavailable(err)
		}
	}

	if err := s.wait(ctx, s.delay); err != nil {
		return values, Unavailable(err)
	}

	for i, counter := range counters {
		if failed[i] != nil {
			continue
		}
		value, err := s.reader.Read(ctx, counter)
		if err != nil {
			failed[i] = Unavailable(err)
			continue
		}
		values[i] = value
	}

	return values, errors.Join(failed...)
}

// Wait blocks for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
