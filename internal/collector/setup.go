package collector

import (
	"context"

	"codeberg.org/mutker/hostwatch/internal/config"
	"codeberg.org/mutker/hostwatch/internal/sampler"
)

// HostPorts is the set of sampler ports the production collectors read.
type HostPorts interface {
	sampler.Reader
	sampler.VolumeLister
	sampler.ServiceManager
}

// NewFromConfig wires the production collectors for cfg.
func NewFromConfig(cfg *config.Config, host HostPorts, prober sampler.Prober, perf PerformanceSource) (*Aggregator, error) {
	rates := sampler.NewRateSampler(host, cfg.Sampling.WarmupDelay)

	cpu, err := NewCPUCollector(host, rates, CPUOptions{
		Mode:          CPUMode(cfg.CPU.Mode),
		WindowSize:    cfg.CPU.WindowSize,
		SampleSpacing: cfg.CPU.SampleSpacing,
	})
	if err != nil {
		return nil, err
	}

	services := make([]MonitoredService, 0, len(cfg.Services))
	for _, svc := range cfg.Services {
		services = append(services, MonitoredService{
			Name:        svc.Name,
			DisplayName: svc.DisplayName,
			Port:        svc.Port,
		})
	}

	collectors := &Collectors{
		CPU:     cpu,
		Memory:  NewMemoryCollector(host, rates),
		Disk:    NewDiskCollector(host),
		DiskIO:  NewDiskIOCollector(host, rates, 0),
		Network: NewNetworkCollector(host, rates),
		WebServer: NewWebServerCollector(host, rates, host, prober, perf, WebServerOptions{
			Service:      cfg.WebServer.Service,
			Host:         cfg.WebServer.Host,
			HealthURL:    cfg.WebServer.HealthURL,
			PortTimeout:  cfg.Sampling.PortTimeout,
			ProbeTimeout: cfg.WebServer.ProbeTimeout,
		}),
		Services: NewServiceCollector(services, host, prober, cfg.WebServer.Host, cfg.Sampling.PortTimeout),
	}

	agg := NewAggregator(collectors)

	if cfg.Database.Enabled {
		db, err := OpenDatabaseCollector(cfg.Database.Driver, cfg.Database.DSN, perf, DatabaseOptions{
			Timeout:     cfg.Database.Timeout,
			WarmupDelay: cfg.Sampling.WarmupDelay,
		})
		if err != nil {
			return nil, err
		}
		collectors.Database = db
		agg.closers = append(agg.closers, db.Close)
	} else {
		collectors.Database = CollectorFunc[DatabaseMetrics](func(_ context.Context) DatabaseMetrics {
			return DatabaseMetrics{Driver: cfg.Database.Driver}
		})
	}

	return agg, nil
}
