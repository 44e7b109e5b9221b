package collector

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"codeberg.org/mutker/hostwatch/internal/sampler"
)

// DiskIOCollector reports latency and queue depth per physical disk.
type DiskIOCollector struct {
	reader sampler.Reader
	rates  *sampler.RateSampler
	cores  int
}

func NewDiskIOCollector(reader sampler.Reader, rates *sampler.RateSampler, cores int) *DiskIOCollector {
	if cores <= 0 {
		cores = runtime.NumCPU()
	}

	return &DiskIOCollector{reader: reader, rates: rates, cores: cores}
}

func (c *DiskIOCollector) Collect(ctx context.Context) DiskIOMetrics {
	metrics := DiskIOMetrics{Disks: []DiskIOInfo{}}

	disks, err := c.reader.Instances(ctx, sampler.CategoryDisk)
	if err != nil {
		metrics.ErrorMessage = collectionError(DomainDiskIO, err)
		return metrics
	}

	queueThreshold := DiskQueueLengthMultiplier * float64(c.cores)

	var alerted []string
	for _, disk := range disks {
		if strings.EqualFold(disk, sampler.TotalInstance) {
			continue
		}

		values := sampleAllOr(ctx, c.rates,
			sampler.DiskSecPerRead(disk),
			sampler.DiskSecPerWrite(disk),
			sampler.DiskQueueLength(disk),
		)

		info := DiskIOInfo{
			DiskName:           disk,
			AvgDiskSecRead:     round2(values[0] * 1000),
			AvgDiskSecWrite:    round2(values[1] * 1000),
			AvgDiskQueueLength: round2(values[2]),
		}

		slow := info.AvgDiskSecRead > DiskSecThresholdMs || info.AvgDiskSecWrite > DiskSecThresholdMs
		if slow && info.AvgDiskQueueLength > queueThreshold {
			info.AlertTriggered = true
			metrics.AlertTriggered = true
			alerted = append(alerted, disk)
		}

		metrics.Disks = append(metrics.Disks, info)
	}

	if metrics.AlertTriggered {
		metrics.AlertMessage = fmt.Sprintf(
			"Disk I/O Bottleneck Alert: High latency detected on disks: %s. "+
				"Avg Disk sec/Read or sec/Write > %s ms AND Avg Disk Queue Length > %s × cores",
			strings.Join(alerted, ", "), num(DiskSecThresholdMs), num(DiskQueueLengthMultiplier))
	}

	return metrics
}
