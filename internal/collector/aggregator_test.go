package collector_test

import (
	"context"
	"testing"

	"codeberg.org/mutker/hostwatch/internal/collector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubCollectors() *collector.Collectors {
	return &collector.Collectors{
		CPU: collector.CollectorFunc[collector.CPUMetrics](func(context.Context) collector.CPUMetrics {
			return collector.CPUMetrics{ProcessorTimePercentage: 42, NumberOfCores: 4}
		}),
		Memory: collector.CollectorFunc[collector.MemoryMetrics](func(context.Context) collector.MemoryMetrics {
			return collector.MemoryMetrics{AvailableMBytes: 2048}
		}),
		Disk: collector.CollectorFunc[collector.DiskMetrics](func(context.Context) collector.DiskMetrics {
			return collector.DiskMetrics{Disks: []collector.DiskInfo{{DriveName: "/"}}}
		}),
		DiskIO: collector.CollectorFunc[collector.DiskIOMetrics](func(context.Context) collector.DiskIOMetrics {
			return collector.DiskIOMetrics{Disks: []collector.DiskIOInfo{{DiskName: "sda"}}}
		}),
		Network: collector.CollectorFunc[collector.NetworkMetrics](func(context.Context) collector.NetworkMetrics {
			return collector.NetworkMetrics{AlertTriggered: true, AlertMessage: "alert"}
		}),
		WebServer: collector.CollectorFunc[collector.WebServerMetrics](func(context.Context) collector.WebServerMetrics {
			return collector.WebServerMetrics{ServiceRunning: true}
		}),
		Database: collector.CollectorFunc[collector.DatabaseMetrics](func(context.Context) collector.DatabaseMetrics {
			return collector.DatabaseMetrics{DatabaseAvailable: true}
		}),
		Services: collector.CollectorFunc[collector.ServiceMetrics](func(context.Context) collector.ServiceMetrics {
			return collector.ServiceMetrics{Services: []collector.ServiceInfo{{ServiceName: "nginx"}}}
		}),
	}
}

func TestCollectAll(t *testing.T) {
	batch := collector.NewAggregator(stubCollectors()).CollectAll(context.Background())

	assert.False(t, batch.CollectionTimestamp.IsZero())
	assert.Empty(t, batch.ErrorMessage)
	assert.InDelta(t, 42.0, batch.CPU.ProcessorTimePercentage, 0.0001)
	assert.InDelta(t, 2048.0, batch.Memory.AvailableMBytes, 0.0001)
	assert.Len(t, batch.Disk.Disks, 1)
	assert.Len(t, batch.DiskIO.Disks, 1)
	assert.True(t, batch.WebServer.ServiceRunning)
	assert.True(t, batch.Database.DatabaseAvailable)
	assert.Len(t, batch.Services.Services, 1)

	alerts := batch.Alerts()
	assert.True(t, alerts[collector.DomainNetwork])
	assert.False(t, alerts[collector.DomainCPU])
}

func TestCollectAllIsolatesPanics(t *testing.T) {
	collectors := stubCollectors()
	collectors.DiskIO = collector.CollectorFunc[collector.DiskIOMetrics](func(context.Context) collector.DiskIOMetrics {
		panic("perf counter category missing")
	})

	var batch collector.MonitoringBatch
	require.NotPanics(t, func() {
		batch = collector.NewAggregator(collectors).CollectAll(context.Background())
	})

	assert.Equal(t, "Error collecting disk I/O metrics: perf counter category missing", batch.DiskIO.ErrorMessage)
	assert.Empty(t, batch.DiskIO.Disks)
	assert.Empty(t, batch.ErrorMessage)

	assert.Empty(t, batch.CPU.ErrorMessage)
	assert.InDelta(t, 42.0, batch.CPU.ProcessorTimePercentage, 0.0001)
	assert.InDelta(t, 2048.0, batch.Memory.AvailableMBytes, 0.0001)
	assert.Len(t, batch.Disk.Disks, 1)
	assert.True(t, batch.Network.AlertTriggered)
	assert.True(t, batch.WebServer.ServiceRunning)
	assert.True(t, batch.Database.DatabaseAvailable)
	assert.Len(t, batch.Services.Services, 1)
}

func TestCollectAllMissingCollector(t *testing.T) {
	collectors := stubCollectors()
	collectors.Database = nil

	batch := collector.NewAggregator(collectors).CollectAll(context.Background())
	assert.Contains(t, batch.Database.ErrorMessage, "Error collecting database metrics")
	assert.True(t, batch.WebServer.ServiceRunning)
}

func TestCollectAllBatchFailure(t *testing.T) {
	batch := collector.NewAggregator(nil).CollectAll(context.Background())
	assert.NotEmpty(t, batch.ErrorMessage)
	assert.False(t, batch.CollectionTimestamp.IsZero())
	assert.Empty(t, batch.CPU.ErrorMessage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch = collector.NewAggregator(stubCollectors()).CollectAll(ctx)
	assert.Contains(t, batch.ErrorMessage, "context canceled")
	assert.Zero(t, batch.CPU.ProcessorTimePercentage)
}
