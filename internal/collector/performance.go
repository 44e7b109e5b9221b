package collector

import "context"

// WebPerformance holds request statistics that the OS counters do not carry.
type WebPerformance struct {
	RequestsPerSec               float64
	TotalRequests                int
	Error5xxCount                int
	ResponseTime95thPercentileMs float64
}

type DatabasePerformance struct {
	ConnectionFailuresPerMinute   int
	QueryDuration95thPercentileMs float64
}

// PerformanceSource supplies the web and database performance inputs.
type PerformanceSource interface {
	WebServer(ctx context.Context, probeMs float64) WebPerformance
	Database(ctx context.Context, avgQueryMs float64) DatabasePerformance
}

// PlaceholderPerformance returns fixed request counts and derives latency
// percentiles from the probe and average query latency.
// TODO: replace with an access-log reader once the web server log format is configurable.
type PlaceholderPerformance struct{}

const (
	placeholderTotalRequests = 1000
	placeholderError5xxCount = 10
	queryP95Factor           = 1.5
)

func (PlaceholderPerformance) WebServer(_ context.Context, probeMs float64) WebPerformance {
	return WebPerformance{
		TotalRequests:                placeholderTotalRequests,
		Error5xxCount:                placeholderError5xxCount,
		ResponseTime95thPercentileMs: probeMs,
	}
}

func (PlaceholderPerformance) Database(_ context.Context, avgQueryMs float64) DatabasePerformance {
	return DatabasePerformance{
		QueryDuration95thPercentileMs: round2(avgQueryMs * queryP95Factor),
	}
}
