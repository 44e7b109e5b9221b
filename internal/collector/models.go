package collector

import "time"

// MonitoringBatch is the merged set of domain snapshots for one collection
// cycle. CollectionTimestamp is the time aggregation started.
type MonitoringBatch struct {
	CollectionTimestamp time.Time
	CPU                 CPUMetrics       `json:"CpuMetrics"`
	Memory              MemoryMetrics    `json:"MemoryMetrics"`
	Disk                DiskMetrics      `json:"DiskMetrics"`
	DiskIO              DiskIOMetrics    `json:"DiskIoMetrics"`
	Network             NetworkMetrics   `json:"NetworkMetrics"`
	WebServer           WebServerMetrics `json:"WebServerMetrics"`
	Database            DatabaseMetrics  `json:"DatabaseMetrics"`
	Services            ServiceMetrics   `json:"ServiceMetrics"`
	ErrorMessage        string           `json:",omitempty"`
}

// Alerts reports the alert flag of every domain, keyed by domain name.
func (b *MonitoringBatch) Alerts() map[string]bool {
	return map[string]bool{
		DomainCPU:       b.CPU.AlertTriggered,
		DomainMemory:    b.Memory.AlertTriggered,
		DomainDisk:      b.Disk.AlertTriggered,
		DomainDiskIO:    b.DiskIO.AlertTriggered,
		DomainNetwork:   b.Network.AlertTriggered,
		DomainWebServer: b.WebServer.AvailabilityAlertTriggered || b.WebServer.PerformanceAlertTriggered,
		DomainDatabase: b.Database.ConnectionAlertTriggered || b.Database.QueryPerformanceAlertTriggered ||
			b.Database.TransactionLogAlertTriggered,
		DomainServices: b.Services.AlertTriggered,
	}
}

type CPUMetrics struct {
	Mode                           string
	ProcessorTimePercentage        float64
	InstantProcessorTimePercentage float64
	SampleCount                    int
	ProcessorQueueLength           float64
	NumberOfCores                  int
	QueueLengthPerCore             float64
	AlertTriggered                 bool
	AlertMessage                   string `json:",omitempty"`
	ErrorMessage                   string `json:",omitempty"`
}

type MemoryMetrics struct {
	AvailableMBytes           float64
	TotalMemoryMBytes         float64
	AvailableMemoryPercentage float64
	PagesPerSec               float64
	AlertTriggered            bool
	AlertMessage              string `json:",omitempty"`
	ErrorMessage              string `json:",omitempty"`
}

type DiskMetrics struct {
	Disks          []DiskInfo
	AlertTriggered bool
	AlertMessage   string `json:",omitempty"`
	ErrorMessage   string `json:",omitempty"`
}

type DiskInfo struct {
	DriveName           string
	FreeSpacePercentage float64
	FreeMegabytes       float64
	TotalSizeMegabytes  float64
	AlertTriggered      bool
}

type DiskIOMetrics struct {
	Disks          []DiskIOInfo
	AlertTriggered bool
	AlertMessage   string `json:",omitempty"`
	ErrorMessage   string `json:",omitempty"`
}

// DiskIOInfo latencies are in milliseconds.
type DiskIOInfo struct {
	DiskName           string
	AvgDiskSecRead     float64
	AvgDiskSecWrite    float64
	AvgDiskQueueLength float64
	AlertTriggered     bool
}

type NetworkMetrics struct {
	Interfaces     []NetworkInterfaceInfo
	AlertTriggered bool
	AlertMessage   string `json:",omitempty"`
	ErrorMessage   string `json:",omitempty"`
}

// NetworkInterfaceInfo.ErrorPercentage is nil when the interface carried no
// packets during the sample window.
type NetworkInterfaceInfo struct {
	InterfaceName         string
	BytesTotalPerSec      float64
	PacketsOutboundErrors float64
	PacketsReceivedErrors float64
	TotalPackets          float64
	ErrorPercentage       *float64
	AlertTriggered        bool
}

type WebServerMetrics struct {
	ServiceName               string
	ServiceRunning            bool
	Port80Listening           bool
	Port443Listening          bool
	HealthProbeSuccessful     bool
	HealthProbeFailureCount   int
	HealthProbeResponseTimeMs float64

	TotalMethodRequestsPerSec    float64
	CurrentConnections           float64
	ConnectionAttemptsPerSec     float64
	Error5xxCount                int
	TotalRequests                int
	Error5xxPercentage           float64
	ResponseTime95thPercentileMs float64

	AvailabilityAlertTriggered bool
	PerformanceAlertTriggered  bool
	AlertMessage               string `json:",omitempty"`
	ErrorMessage               string `json:",omitempty"`
}

type DatabaseMetrics struct {
	Driver string

	UserConnections             int
	MaxConnections              int
	ConnectionUsagePercentage   float64
	LoginsPerSec                float64
	ConnectionFailuresPerMinute int

	BatchRequestsPerSec           float64
	SQLCompilationsPerSec         float64 `json:"SqlCompilationsPerSec"`
	SlowQueryCount                int
	AvgQueryDurationMs            float64
	QueryDuration95thPercentileMs float64

	LogFileUsedSizeKB         float64
	LogFileTotalSizeKB        float64
	LogFileUsagePercentage    float64
	LastLogBackupTime         *time.Time `json:",omitempty"`
	MinutesSinceLastLogBackup float64

	ConnectionAlertTriggered       bool
	QueryPerformanceAlertTriggered bool
	TransactionLogAlertTriggered   bool
	AlertMessage                   string `json:",omitempty"`
	DatabaseAvailable              bool
	ErrorMessage                   string `json:",omitempty"`
}

type ServiceMetrics struct {
	Services       []ServiceInfo
	AlertTriggered bool
	AlertMessage   string `json:",omitempty"`
	ErrorMessage   string `json:",omitempty"`
}

type ServiceInfo struct {
	ServiceName    string
	DisplayName    string
	IsRunning      bool
	Status         string
	MonitoredPort  *int  `json:",omitempty"`
	PortListening  *bool `json:",omitempty"`
	AlertTriggered bool
}

func (m *CPUMetrics) setError(msg string)       { m.ErrorMessage = msg }
func (m *MemoryMetrics) setError(msg string)    { m.ErrorMessage = msg }
func (m *DiskMetrics) setError(msg string)      { m.ErrorMessage = msg }
func (m *DiskIOMetrics) setError(msg string)    { m.ErrorMessage = msg }
func (m *NetworkMetrics) setError(msg string)   { m.ErrorMessage = msg }
func (m *WebServerMetrics) setError(msg string) { m.ErrorMessage = msg }
func (m *DatabaseMetrics) setError(msg string)  { m.ErrorMessage = msg }
func (m *ServiceMetrics) setError(msg string)   { m.ErrorMessage = msg }
