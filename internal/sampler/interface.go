package sampler

import (
	"context"
	"time"
)

// Counter names a single performance counter reading. Instance is empty for
// counters that have no per-instance breakdown.
type Counter struct {
	Category string
	Name     string
	Instance string
}

// Reader reads performance counters. Rate counters have warm-up semantics:
// the first read of a counter returns 0 and every later read returns the
// rate accumulated since the previous read of the same counter.
type Reader interface {
	Read(ctx context.Context, counter Counter) (float64, error)
	Instances(ctx context.Context, category string) ([]string, error)
}

// VolumeLister enumerates mounted volumes with their capacity.
type VolumeLister interface {
	Volumes(ctx context.Context) ([]Volume, error)
}

// ServiceManager reports the state of a named service.
type ServiceManager interface {
	Status(ctx context.Context, name string) (ServiceStatus, error)
}

// Prober checks network liveness of local endpoints.
type Prober interface {
	ProbeTCP(ctx context.Context, host string, port int, timeout time.Duration) bool
	ProbeHTTP(ctx context.Context, url string, timeout time.Duration) (HTTPResult, error)
}

type ServiceStatus string

const (
	StatusRunning      ServiceStatus = "Running"
	StatusStopped      ServiceStatus = "Stopped"
	StatusNotInstalled ServiceStatus = "NotInstalled"
)

type Volume struct {
	Name       string
	FreeBytes  uint64
	TotalBytes uint64
	Fixed      bool
	Ready      bool
}

type HTTPResult struct {
	StatusCode int
	Elapsed    time.Duration
}
