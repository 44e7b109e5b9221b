package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeberg.org/mutker/hostwatch/internal/sampler"
)

// MonitoredService pairs a service with the port it serves. Port 0 means the
// service has no port.
type MonitoredService struct {
	Name        string
	DisplayName string
	Port        int
}

// DefaultServices is the monitored set when none is configured.
var DefaultServices = []MonitoredService{
	{Name: "nginx", DisplayName: "Web server", Port: 80},
	{Name: "nginx", DisplayName: "Web server (HTTPS)", Port: 443},
	{Name: "sqlservr", DisplayName: "SQL Server", Port: 1433},
	{Name: "sqlagent", DisplayName: "SQL Server Agent"},
}

type ServiceCollector struct {
	services    []MonitoredService
	manager     sampler.ServiceManager
	prober      sampler.Prober
	host        string
	portTimeout time.Duration
}

func NewServiceCollector(
	services []MonitoredService,
	manager sampler.ServiceManager,
	prober sampler.Prober,
	host string,
	portTimeout time.Duration,
) *ServiceCollector {
	if len(services) == 0 {
		services = DefaultServices
	}
	if host == "" {
		host = "localhost"
	}
	if portTimeout <= 0 {
		portTimeout = time.Second
	}

	return &ServiceCollector{
		services:    services,
		manager:     manager,
		prober:      prober,
		host:        host,
		portTimeout: portTimeout,
	}
}

func (c *ServiceCollector) Collect(ctx context.Context) ServiceMetrics {
	metrics := ServiceMetrics{Services: make([]ServiceInfo, 0, len(c.services))}

	var alerted []string
	for _, svc := range c.services {
		info := c.check(ctx, svc)
		if info.AlertTriggered {
			metrics.AlertTriggered = true
			alerted = append(alerted, fmt.Sprintf("%s (%s)", info.DisplayName, info.ServiceName))
		}
		metrics.Services = append(metrics.Services, info)
	}

	if metrics.AlertTriggered {
		metrics.AlertMessage = "Critical Service Availability Alert: The following services are not running " +
			"and their corresponding ports are not responding: " + strings.Join(alerted, ", ")
	}

	return metrics
}

func (c *ServiceCollector) check(ctx context.Context, svc MonitoredService) ServiceInfo {
	info := ServiceInfo{
		ServiceName: svc.Name,
		DisplayName: svc.DisplayName,
	}
	if info.DisplayName == "" {
		info.DisplayName = svc.Name
	}

	status, err := c.manager.Status(ctx, svc.Name)
	if err != nil {
		log.Warn().Err(err).Str("service", svc.Name).Msg("Service status unavailable")
		info.Status = "Error: " + err.Error()
	} else {
		info.Status = string(status)
		info.IsRunning = status == sampler.StatusRunning
	}

	if svc.Port > 0 {
		port := svc.Port
		listening := c.prober.ProbeTCP(ctx, c.host, port, c.portTimeout)
		info.MonitoredPort = &port
		info.PortListening = &listening

		info.AlertTriggered = !info.IsRunning && !listening
	} else {
		info.AlertTriggered = !info.IsRunning && info.Status != string(sampler.StatusNotInstalled)
	}

	return info
}
