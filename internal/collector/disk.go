package collector

import (
	"context"
	"fmt"
	"strings"

	"codeberg.org/mutker/hostwatch/internal/sampler"
)

const bytesPerMB = 1024.0 * 1024.0

// DiskCollector reports free space on fixed, ready volumes.
type DiskCollector struct {
	volumes sampler.VolumeLister
}

func NewDiskCollector(volumes sampler.VolumeLister) *DiskCollector {
	return &DiskCollector{volumes: volumes}
}

func (c *DiskCollector) Collect(ctx context.Context) DiskMetrics {
	metrics := DiskMetrics{Disks: []DiskInfo{}}

	volumes, err := c.volumes.Volumes(ctx)
	if err != nil {
		metrics.ErrorMessage = collectionError(DomainDisk, err)
		return metrics
	}

	var alerted []string
	for _, volume := range volumes {
		if !volume.Fixed || !volume.Ready || volume.TotalBytes == 0 {
			log.Debug().Str("volume", volume.Name).Msg("Skipping volume")
			continue
		}

		info := DiskInfo{
			DriveName:          volume.Name,
			FreeMegabytes:      round2(float64(volume.FreeBytes) / bytesPerMB),
			TotalSizeMegabytes: round2(float64(volume.TotalBytes) / bytesPerMB),
		}
		info.FreeSpacePercentage = percent(info.FreeMegabytes, info.TotalSizeMegabytes)

		freeGB := info.FreeMegabytes / 1024
		if info.FreeSpacePercentage < FreeSpacePercentThreshold && freeGB < FreeSpaceGBThreshold {
			info.AlertTriggered = true
			metrics.AlertTriggered = true
			alerted = append(alerted, info.DriveName)
		}

		metrics.Disks = append(metrics.Disks, info)
	}

	if metrics.AlertTriggered {
		metrics.AlertMessage = fmt.Sprintf(
			"Disk Space Alert: Low disk space on drives: %s. Free space < %s%% AND < %s GB",
			strings.Join(alerted, ", "), num(FreeSpacePercentThreshold), num(FreeSpaceGBThreshold))
	}

	return metrics
}
