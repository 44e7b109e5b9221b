package collector

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/sampler"
)

type CPUMode string

const (
	// CPUModeRolling averages a window of samples kept across calls.
	CPUModeRolling CPUMode = "rolling"
	// CPUModeInstant takes one sample per call and keeps no state.
	CPUModeInstant CPUMode = "instant"
)

const (
	DefaultCPUWindowSize    = 30
	DefaultCPUSampleSpacing = 10 * time.Second
)

func (m CPUMode) IsValid() bool {
	return m == CPUModeRolling || m == CPUModeInstant
}

type CPUOptions struct {
	Mode          CPUMode
	WindowSize    int
	SampleSpacing time.Duration
	Cores         int
	// Wait pauses between baseline samples. Defaults to sampler.Wait.
	Wait sampler.WaitFunc
}

type CPUCollector struct {
	reader sampler.Reader
	rates  *sampler.RateSampler
	opts   CPUOptions

	mu      sync.Mutex
	samples []float64
}

func NewCPUCollector(reader sampler.Reader, rates *sampler.RateSampler, opts CPUOptions) (*CPUCollector, error) {
	if opts.Mode == "" {
		opts.Mode = CPUModeRolling
	}
	if !opts.Mode.IsValid() {
		return nil, errors.New().WithData(ErrInvalidCPUMode, string(opts.Mode))
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultCPUWindowSize
	}
	if opts.SampleSpacing <= 0 {
		opts.SampleSpacing = DefaultCPUSampleSpacing
	}
	if opts.Cores <= 0 {
		opts.Cores = runtime.NumCPU()
	}
	if opts.Wait == nil {
		opts.Wait = sampler.Wait
	}

	return &CPUCollector{
		reader:  reader,
		rates:   rates,
		opts:    opts,
		samples: make([]float64, 0, opts.WindowSize+1),
	}, nil
}

func (c *CPUCollector) Collect(ctx context.Context) CPUMetrics {
	metrics := CPUMetrics{
		Mode:          string(c.opts.Mode),
		NumberOfCores: c.opts.Cores,
	}

	instant := round2(sampleOr(ctx, c.rates, sampler.ProcessorTime))
	metrics.InstantProcessorTimePercentage = instant

	if c.opts.Mode == CPUModeRolling {
		metrics.ProcessorTimePercentage, metrics.SampleCount = c.rolling(ctx, instant)
	} else {
		metrics.ProcessorTimePercentage, metrics.SampleCount = instant, 1
	}

	metrics.ProcessorQueueLength = round2(readOr(ctx, c.reader, sampler.ProcessorQueueLength))
	metrics.QueueLengthPerCore = round2(metrics.ProcessorQueueLength / float64(c.opts.Cores))

	if metrics.ProcessorTimePercentage > CPUThreshold && metrics.QueueLengthPerCore > QueueLengthPerCoreLimit {
		metrics.AlertTriggered = true
		metrics.AlertMessage = fmt.Sprintf(
			"CPU Pressure Alert: CPU usage is %s%% (threshold: %s%%) and Queue Length per Core is %s (threshold: %s)",
			num(metrics.ProcessorTimePercentage), num(CPUThreshold),
			num(metrics.QueueLengthPerCore), num(QueueLengthPerCoreLimit))
	}

	return metrics
}

// rolling adds sample to the window and returns the window average. Until the
// window is full the remaining baseline samples are taken here, spaced by
// SampleSpacing. The baseline is built under the window lock.
func (c *CPUCollector) rolling(ctx context.Context, sample float64) (float64, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = append(c.samples, sample)

	for len(c.samples) < c.opts.WindowSize {
		if err := c.opts.Wait(ctx, c.opts.SampleSpacing); err != nil {
			log.Warn().Err(err).Int("samples", len(c.samples)).Msg("CPU baseline interrupted")
			break
		}
		c.samples = append(c.samples, round2(sampleOr(ctx, c.rates, sampler.ProcessorTime)))
	}

	if over := len(c.samples) - c.opts.WindowSize; over > 0 {
		c.samples = append(c.samples[:0], c.samples[over:]...)
	}

	sum := 0.0
	for _, s := range c.samples {
		sum += s
	}

	return round2(sum / float64(len(c.samples))), len(c.samples)
}
