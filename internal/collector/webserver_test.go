package collector_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"codeberg.org/mutker/hostwatch/internal/collector"
	"codeberg.org/mutker/hostwatch/internal/sampler"
	"github.com/stretchr/testify/assert"
)

type fixedPerformance struct {
	web collector.WebPerformance
}

func (p fixedPerformance) WebServer(context.Context, float64) collector.WebPerformance {
	return p.web
}

func (p fixedPerformance) Database(context.Context, float64) collector.DatabasePerformance {
	return collector.DatabasePerformance{}
}

func webOptions() collector.WebServerOptions {
	return collector.WebServerOptions{
		Service:   "nginx",
		HealthURL: "http://localhost/health",
	}
}

func healthyWebHost() *fakeHost {
	host := newFakeHost()
	host.statuses["nginx"] = sampler.StatusRunning
	host.ports[80] = true
	host.ports[443] = true
	host.set(sampler.CurrentConnections, 12)
	host.rate(sampler.ConnectionAttemptsRate, 3)
	host.http = []httpStep{{result: sampler.HTTPResult{StatusCode: http.StatusOK, Elapsed: 120 * time.Millisecond}}}
	return host
}

func TestWebServerHealthy(t *testing.T) {
	host := healthyWebHost()
	c := collector.NewWebServerCollector(host, rates(host), host, host, nil, webOptions())

	metrics := c.Collect(context.Background())
	assert.True(t, metrics.ServiceRunning)
	assert.True(t, metrics.HealthProbeSuccessful)
	assert.Zero(t, metrics.HealthProbeFailureCount)
	assert.InDelta(t, 120.0, metrics.HealthProbeResponseTimeMs, 0.0001)
	assert.InDelta(t, 12.0, metrics.CurrentConnections, 0.0001)
	assert.InDelta(t, 3.0, metrics.ConnectionAttemptsPerSec, 0.0001)

	// placeholder performance: 10 of 1000 requests failed
	assert.Equal(t, 1000, metrics.TotalRequests)
	assert.InDelta(t, 1.0, metrics.Error5xxPercentage, 0.0001)
	assert.InDelta(t, 120.0, metrics.ResponseTime95thPercentileMs, 0.0001)

	assert.False(t, metrics.AvailabilityAlertTriggered)
	assert.False(t, metrics.PerformanceAlertTriggered)
	assert.Empty(t, metrics.AlertMessage)
}

func TestWebServerDown(t *testing.T) {
	host := newFakeHost()
	host.statuses["nginx"] = sampler.StatusStopped
	c := collector.NewWebServerCollector(host, rates(host), host, host, nil, webOptions())

	metrics := c.Collect(context.Background())
	assert.False(t, metrics.ServiceRunning)
	assert.True(t, metrics.AvailabilityAlertTriggered)
	assert.Equal(t, 1, metrics.HealthProbeFailureCount)
	assert.Contains(t, metrics.AlertMessage, "nginx service not running and ports 80/443 not listening")
	assert.Zero(t, metrics.TotalRequests, "performance is only read while the service runs")
}

func TestWebServerConsecutiveProbeFailures(t *testing.T) {
	host := healthyWebHost()
	failed := httpStep{result: sampler.HTTPResult{StatusCode: http.StatusBadGateway, Elapsed: time.Millisecond}}
	ok := httpStep{result: sampler.HTTPResult{StatusCode: http.StatusOK, Elapsed: time.Millisecond}}
	host.http = []httpStep{failed, failed, failed, ok, failed}

	c := collector.NewWebServerCollector(host, rates(host), host, host, nil, webOptions())

	for i := 1; i <= 2; i++ {
		metrics := c.Collect(context.Background())
		assert.Equal(t, i, metrics.HealthProbeFailureCount)
		assert.False(t, metrics.AvailabilityAlertTriggered)
	}

	third := c.Collect(context.Background())
	assert.Equal(t, 3, third.HealthProbeFailureCount)
	assert.True(t, third.AvailabilityAlertTriggered)
	assert.Equal(t, "Web Server Availability Alert: Health probe failed 3 consecutive times.", third.AlertMessage)

	recovered := c.Collect(context.Background())
	assert.Zero(t, recovered.HealthProbeFailureCount)
	assert.False(t, recovered.AvailabilityAlertTriggered)

	again := c.Collect(context.Background())
	assert.Equal(t, 1, again.HealthProbeFailureCount)
}

func TestWebServerPerformanceAlert(t *testing.T) {
	host := healthyWebHost()
	perf := fixedPerformance{web: collector.WebPerformance{
		TotalRequests:                1000,
		Error5xxCount:                30,
		ResponseTime95thPercentileMs: 2500,
	}}
	c := collector.NewWebServerCollector(host, rates(host), host, host, perf, webOptions())

	metrics := c.Collect(context.Background())
	assert.InDelta(t, 3.0, metrics.Error5xxPercentage, 0.0001)
	assert.True(t, metrics.PerformanceAlertTriggered)
	assert.False(t, metrics.AvailabilityAlertTriggered)
	assert.Equal(t,
		"Web Server Performance Alert: 5xx errors at 3% (threshold: 2%) and response time at 2500ms (threshold: 2000ms)",
		metrics.AlertMessage)
}

func TestWebServerWithoutHealthURL(t *testing.T) {
	host := healthyWebHost()
	opts := webOptions()
	opts.HealthURL = ""
	c := collector.NewWebServerCollector(host, rates(host), host, host, nil, opts)

	for range 4 {
		metrics := c.Collect(context.Background())
		assert.Zero(t, metrics.HealthProbeFailureCount)
		assert.False(t, metrics.AvailabilityAlertTriggered)
	}
}
