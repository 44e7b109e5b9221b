package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/hostwatch/internal/sampler"
)

type WebServerOptions struct {
	Service      string
	Host         string
	HealthURL    string
	PortTimeout  time.Duration
	ProbeTimeout time.Duration
}

// WebServerCollector checks web server availability and performance. It is
// the only collector besides CPU that keeps state across cycles: the count of
// consecutive failed health probes.
type WebServerCollector struct {
	reader   sampler.Reader
	rates    *sampler.RateSampler
	services sampler.ServiceManager
	prober   sampler.Prober
	perf     PerformanceSource
	opts     WebServerOptions

	mu       sync.Mutex
	failures int
}

func NewWebServerCollector(
	reader sampler.Reader,
	rates *sampler.RateSampler,
	services sampler.ServiceManager,
	prober sampler.Prober,
	perf PerformanceSource,
	opts WebServerOptions,
) *WebServerCollector {
	if perf == nil {
		perf = PlaceholderPerformance{}
	}
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.PortTimeout <= 0 {
		opts.PortTimeout = time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}

	return &WebServerCollector{
		reader:   reader,
		rates:    rates,
		services: services,
		prober:   prober,
		perf:     perf,
		opts:     opts,
	}
}

func (c *WebServerCollector) Collect(ctx context.Context) WebServerMetrics {
	metrics := WebServerMetrics{ServiceName: c.opts.Service}

	status, err := c.services.Status(ctx, c.opts.Service)
	if err != nil {
		log.Warn().Err(err).Str("service", c.opts.Service).Msg("Service status unavailable")
	}
	metrics.ServiceRunning = err == nil && status == sampler.StatusRunning

	metrics.Port80Listening = c.prober.ProbeTCP(ctx, c.opts.Host, 80, c.opts.PortTimeout)
	metrics.Port443Listening = c.prober.ProbeTCP(ctx, c.opts.Host, 443, c.opts.PortTimeout)

	if c.opts.HealthURL != "" {
		metrics.HealthProbeSuccessful, metrics.HealthProbeResponseTimeMs = c.probe(ctx)
		metrics.HealthProbeFailureCount = c.recordProbe(metrics.HealthProbeSuccessful)
	}

	if metrics.ServiceRunning {
		metrics.CurrentConnections = round2(readOr(ctx, c.reader, sampler.CurrentConnections))
		metrics.ConnectionAttemptsPerSec = round2(sampleOr(ctx, c.rates, sampler.ConnectionAttemptsRate))

		perf := c.perf.WebServer(ctx, metrics.HealthProbeResponseTimeMs)
		metrics.TotalMethodRequestsPerSec = round2(perf.RequestsPerSec)
		metrics.TotalRequests = perf.TotalRequests
		metrics.Error5xxCount = perf.Error5xxCount
		metrics.Error5xxPercentage = percent(float64(perf.Error5xxCount), float64(perf.TotalRequests))
		metrics.ResponseTime95thPercentileMs = round2(perf.ResponseTime95thPercentileMs)
	}

	var msg strings.Builder

	switch {
	case !metrics.ServiceRunning && !metrics.Port80Listening && !metrics.Port443Listening:
		metrics.AvailabilityAlertTriggered = true
		fmt.Fprintf(&msg, "Web Server Availability Alert: %s service not running and ports 80/443 not listening. ",
			c.opts.Service)
	case metrics.HealthProbeFailureCount >= HealthProbeFailureLimit:
		metrics.AvailabilityAlertTriggered = true
		fmt.Fprintf(&msg, "Web Server Availability Alert: Health probe failed %d consecutive times. ",
			metrics.HealthProbeFailureCount)
	}

	if metrics.Error5xxPercentage > Error5xxPercentThreshold &&
		metrics.ResponseTime95thPercentileMs > ResponseTimeThresholdMs {
		metrics.PerformanceAlertTriggered = true
		fmt.Fprintf(&msg,
			"Web Server Performance Alert: 5xx errors at %s%% (threshold: %s%%) and response time at %sms (threshold: %sms)",
			num(metrics.Error5xxPercentage), num(Error5xxPercentThreshold),
			num(metrics.ResponseTime95thPercentileMs), num(ResponseTimeThresholdMs))
	}

	metrics.AlertMessage = strings.TrimSpace(msg.String())

	return metrics
}

func (c *WebServerCollector) probe(ctx context.Context) (bool, float64) {
	result, err := c.prober.ProbeHTTP(ctx, c.opts.HealthURL, c.opts.ProbeTimeout)
	if err != nil {
		log.Warn().Err(err).Str("url", c.opts.HealthURL).Msg("Health probe failed")
		return false, 0
	}

	ms := round2(float64(result.Elapsed) / float64(time.Millisecond))

	return result.StatusCode == http.StatusOK, ms
}

// recordProbe updates the consecutive failure count and returns it.
func (c *WebServerCollector) recordProbe(ok bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ok {
		c.failures = 0
	} else {
		c.failures++
	}

	return c.failures
}
