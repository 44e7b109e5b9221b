package collector

import (
	"fmt"
	"math"
	"strconv"
)

const (
	CPUThreshold               = 90.0
	QueueLengthPerCoreLimit    = 2.0
	AvailableMemoryThreshold   = 10.0
	PagesPerSecThreshold       = 2000.0
	FreeSpacePercentThreshold  = 15.0
	FreeSpaceGBThreshold       = 5.0
	DiskSecThresholdMs         = 25.0
	DiskQueueLengthMultiplier  = 2.0
	NetworkErrorPercentLimit   = 1.0
	Error5xxPercentThreshold   = 2.0
	ResponseTimeThresholdMs    = 2000.0
	HealthProbeFailureLimit    = 3
	ConnectionUsageThreshold   = 85.0
	ConnectionFailureThreshold = 5
	AvgQueryDurationLimitMs    = 2000.0
	LogFileUsageThreshold      = 85.0
	LogBackupThresholdMinutes  = 30.0
)

// DefaultMaxConnections is reported when the engine advertises no limit.
const DefaultMaxConnections = 32767

const (
	DomainCPU       = "cpu"
	DomainMemory    = "memory"
	DomainDisk      = "disk"
	DomainDiskIO    = "disk_io"
	DomainNetwork   = "network"
	DomainWebServer = "web_server"
	DomainDatabase  = "database"
	DomainServices  = "services"
)

var domainLabels = map[string]string{
	DomainCPU:       "CPU",
	DomainMemory:    "memory",
	DomainDisk:      "disk",
	DomainDiskIO:    "disk I/O",
	DomainNetwork:   "network",
	DomainWebServer: "web server",
	DomainDatabase:  "database",
	DomainServices:  "service",
}

// collectionError is the ErrorMessage of a domain whose collection failed.
func collectionError(domain string, cause any) string {
	return fmt.Sprintf("Error collecting %s metrics: %v", domainLabels[domain], cause)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// percent returns part/whole*100 rounded to 2 decimals, or 0 for an empty whole.
func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}

	return round2(part / whole * 100)
}

// num formats a reading the shortest way that round-trips.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
