package sampler

// TotalInstance is the aggregate pseudo-instance reported by categories
// with per-instance counters.
const TotalInstance = "_Total"

const (
	CategoryProcessor  = "Processor"
	CategorySystem     = "System"
	CategoryMemory     = "Memory"
	CategoryDisk       = "PhysicalDisk"
	CategoryNetwork    = "Network Interface"
	CategoryWebService = "Web Service"
)

var (
	ProcessorTime        = Counter{Category: CategoryProcessor, Name: "% Processor Time", Instance: TotalInstance}
	ProcessorQueueLength = Counter{Category: CategorySystem, Name: "Processor Queue Length"}

	AvailableMBytes = Counter{Category: CategoryMemory, Name: "Available MBytes"}
	TotalMBytes     = Counter{Category: CategoryMemory, Name: "Total MBytes"}
	PagesPerSec     = Counter{Category: CategoryMemory, Name: "Pages/sec"}

	CurrentConnections     = Counter{Category: CategoryWebService, Name: "Current Connections", Instance: TotalInstance}
	ConnectionAttemptsRate = Counter{Category: CategoryWebService, Name: "Connection Attempts/sec", Instance: TotalInstance}
)

const (
	nameDiskSecPerRead   = "Avg. Disk sec/Read"
	nameDiskSecPerWrite  = "Avg. Disk sec/Write"
	nameDiskQueueLength  = "Avg. Disk Queue Length"
	nameBytesTotalRate   = "Bytes Total/sec"
	namePacketsOutErrors = "Packets Outbound Errors"
	namePacketsInErrors  = "Packets Received Errors"
	namePacketsSentRate  = "Packets Sent/sec"
	namePacketsRecvRate  = "Packets Received/sec"
)

func DiskSecPerRead(disk string) Counter {
	return Counter{Category: CategoryDisk, Name: nameDiskSecPerRead, Instance: disk}
}

func DiskSecPerWrite(disk string) Counter {
	return Counter{Category: CategoryDisk, Name: nameDiskSecPerWrite, Instance: disk}
}

func DiskQueueLength(disk string) Counter {
	return Counter{Category: CategoryDisk, Name: nameDiskQueueLength, Instance: disk}
}

func BytesTotalRate(iface string) Counter {
	return Counter{Category: CategoryNetwork, Name: nameBytesTotalRate, Instance: iface}
}

// PacketsOutboundErrors and PacketsReceivedErrors are reported as rates over
// the same window as the packet rates so the two can be compared.
func PacketsOutboundErrors(iface string) Counter {
	return Counter{Category: CategoryNetwork, Name: namePacketsOutErrors, Instance: iface}
}

func PacketsReceivedErrors(iface string) Counter {
	return Counter{Category: CategoryNetwork, Name: namePacketsInErrors, Instance: iface}
}

func PacketsSentRate(iface string) Counter {
	return Counter{Category: CategoryNetwork, Name: namePacketsSentRate, Instance: iface}
}

func PacketsReceivedRate(iface string) Counter {
	return Counter{Category: CategoryNetwork, Name: namePacketsRecvRate, Instance: iface}
}

func (c Counter) String() string {
	if c.Instance == "" {
		return c.Category + `\` + c.Name
	}

	return c.Category + "(" + c.Instance + `)\` + c.Name
}
