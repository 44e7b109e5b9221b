package metrics

import (
	"codeberg.org/mutker/hostwatch/internal/collector"
	"go.opentelemetry.io/otel/attribute"
)

// reading is one headline value taken from a batch. Readings that belong to
// a sub-record (disk, interface, service) emit one point per record.
type reading struct {
	name        string
	description string
	unit        string
	observe     func(batch *collector.MonitoringBatch, emit func(value float64, attrs ...attribute.KeyValue))
}

var domains = []string{
	collector.DomainCPU,
	collector.DomainMemory,
	collector.DomainDisk,
	collector.DomainDiskIO,
	collector.DomainNetwork,
	collector.DomainWebServer,
	collector.DomainDatabase,
	collector.DomainServices,
}

func alertName(domain string) string {
	return "hostwatch." + domain + ".alert"
}

var readings = []reading{
	{
		name:        "hostwatch.cpu.processor_time",
		description: "Processor time, averaged over the sampling window",
		unit:        "%",
		observe: func(b *collector.MonitoringBatch, emit func(float64, ...attribute.KeyValue)) {
			emit(b.CPU.ProcessorTimePercentage)
		},
	},
	{
		name:        "hostwatch.cpu.queue_length_per_core",
		description: "Runnable threads per core",
		unit:        "1",
		observe: func(b *collector.MonitoringBatch, emit func(float64, ...attribute.KeyValue)) {
			emit(b.CPU.QueueLengthPerCore)
		},
	},
	{
		name:        "hostwatch.memory.available",
		description: "Available physical memory",
		unit:        "%",
		observe: func(b *collector.MonitoringBatch, emit func(float64, ...attribute.KeyValue)) {
			emit(b.Memory.AvailableMemoryPercentage)
		},
	},
	{
		name:        "hostwatch.memory.pages",
		description: "Hard page faults and swap pages per second",
		unit:        "{page}/s",
		observe: func(b *collector.MonitoringBatch, emit func(float64, ...attribute.KeyValue)) {
			emit(b.Memory.PagesPerSec)
		},
	},
	{
		name:        "hostwatch.disk.free",
		description: "Free space per fixed volume",
		unit:        "%",
		observe: func(b *collector.MonitoringBatch, emit func(float64, ...attribute.KeyValue)) {
			for _, disk := range b.Disk.Disks {
				emit(disk.FreeSpacePercentage, attribute.String("drive", disk.DriveName))
			}
		},
	},
	{
		name:        "hostwatch.disk_io.queue_length",
		description: "Average queue length per physical disk",
		unit:        "1",
		observe: func(b *collector.MonitoringBatch, emit func(float64, ...attribute.KeyValue)) {
			for _, disk := range b.DiskIO.Disks {
				emit(disk.AvgDiskQueueLength, attribute.String("disk", disk.DiskName))
			}
		},
	},
	{
		name:        "hostwatch.network.throughput",
		description: "Bytes sent and received per interface",
		unit:        "By/s",
		observe: func(b *collector.MonitoringBatch, emit func(float64, ...attribute.KeyValue)) {
			for _, iface := range b.Network.Interfaces {
				emit(iface.BytesTotalPerSec, attribute.String("interface", iface.InterfaceName))
			}
		},
	},
	{
		name:        "hostwatch.web_server.probe_response_time",
		description: "Health probe response time",
		unit:        "ms",
		observe: func(b *collector.MonitoringBatch, emit func(float64, ...attribute.KeyValue)) {
			emit(b.WebServer.HealthProbeResponseTimeMs, attribute.String("service", b.WebServer.ServiceName))
		},
	},
	{
		name:        "hostwatch.database.connection_usage",
		description: "User connections relative to the configured maximum",
		unit:        "%",
		observe: func(b *collector.MonitoringBatch, emit func(float64, ...attribute.KeyValue)) {
			if b.Database.DatabaseAvailable {
				emit(b.Database.ConnectionUsagePercentage, attribute.String("driver", b.Database.Driver))
			}
		},
	},
	{
		name:        "hostwatch.database.log_usage",
		description: "Transaction log space in use",
		unit:        "%",
		observe: func(b *collector.MonitoringBatch, emit func(float64, ...attribute.KeyValue)) {
			if b.Database.DatabaseAvailable {
				emit(b.Database.LogFileUsagePercentage, attribute.String("driver", b.Database.Driver))
			}
		},
	},
	{
		name:        "hostwatch.services.running",
		description: "1 when the monitored service is running",
		unit:        "1",
		observe: func(b *collector.MonitoringBatch, emit func(float64, ...attribute.KeyValue)) {
			for _, svc := range b.Services.Services {
				emit(float64(boolToInt(svc.IsRunning)), attribute.String("service", svc.ServiceName))
			}
		},
	},
}

// domainErrors lists the domains whose snapshot carries an error message.
func domainErrors(b *collector.MonitoringBatch) []string {
	messages := map[string]string{
		collector.DomainCPU:       b.CPU.ErrorMessage,
		collector.DomainMemory:    b.Memory.ErrorMessage,
		collector.DomainDisk:      b.Disk.ErrorMessage,
		collector.DomainDiskIO:    b.DiskIO.ErrorMessage,
		collector.DomainNetwork:   b.Network.ErrorMessage,
		collector.DomainWebServer: b.WebServer.ErrorMessage,
		collector.DomainDatabase:  b.Database.ErrorMessage,
		collector.DomainServices:  b.Services.ErrorMessage,
	}

	var failed []string
	for _, domain := range domains {
		if messages[domain] != "" {
			failed = append(failed, domain)
		}
	}
	if b.ErrorMessage != "" {
		failed = append(failed, "batch")
	}

	return failed
}
