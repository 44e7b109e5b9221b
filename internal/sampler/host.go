package sampler

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

const bytesPerMB = 1024 * 1024

var webPorts = map[uint32]bool{80: true, 443: true}

// Filesystems that never back a fixed local drive
var virtualFilesystems = map[string]bool{
	"tmpfs": true, "devtmpfs": true, "proc": true, "sysfs": true, "overlay": true,
	"squashfs": true, "cgroup": true, "cgroup2": true, "nfs": true, "nfs4": true,
	"cifs": true, "smbfs": true, "fuse.sshfs": true, "autofs": true, "ramfs": true,
}

// previous holds the last cumulative reading of a rate counter.
type previous struct {
	num float64
	den float64
}

// Host is the production Reader, VolumeLister and ServiceManager, backed by
// gopsutil. It keeps the last cumulative value of every rate counter so
// successive reads yield deltas.
type Host struct {
	mu       sync.Mutex
	previous map[string]previous
	now      func() time.Time
}

func NewHost() *Host {
	return &Host{
		previous: make(map[string]previous),
		now:      time.Now,
	}
}

// delta records (num, den) for key and returns Δnum/Δden against the
// previous reading. The first reading of a key returns 0.
func (h *Host) delta(key string, num, den float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, ok := h.previous[key]
	h.previous[key] = previous{num: num, den: den}
	if !ok {
		return 0
	}

	dDen := den - prev.den
	dNum := num - prev.num
	if dDen <= 0 || dNum < 0 {
		return 0
	}

	return dNum / dDen
}

func (h *Host) seconds() float64 {
	return float64(h.now().UnixNano()) / float64(time.Second)
}

func (h *Host) Read(ctx context.Context, counter Counter) (float64, error) {
	switch counter.Category {
	case CategoryProcessor:
		return h.readProcessor(ctx, counter)
	case CategorySystem:
		return h.readSystem(ctx, counter)
	case CategoryMemory:
		return h.readMemory(ctx, counter)
	case CategoryDisk:
		return h.readDisk(ctx, counter)
	case CategoryNetwork:
		return h.readNetwork(ctx, counter)
	case CategoryWebService:
		return h.readWebService(ctx, counter)
	}

	return 0, errors.New().WithData(ErrUnknownCategory, counter.Category)
}

func unknownCounter(counter Counter) error {
	return errors.New().WithData(ErrUnknownCounter, counter.String())
}

func (h *Host) readProcessor(ctx context.Context, counter Counter) (float64, error) {
	if counter.Name != ProcessorTime.Name {
		return 0, unknownCounter(counter)
	}

	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return 0, err
	}
	if len(times) == 0 {
		return 0, errors.New().WithMessage(ErrSampleUnavailable, "no CPU times reported")
	}

	t := times[0]
	total := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
	busy := total - t.Idle - t.Iowait

	return h.delta(counter.String(), busy, total) * 100, nil
}

func (h *Host) readSystem(ctx context.Context, counter Counter) (float64, error) {
	if counter.Name != ProcessorQueueLength.Name {
		return 0, unknownCounter(counter)
	}

	misc, err := load.MiscWithContext(ctx)
	if err != nil {
		return 0, err
	}

	return float64(misc.ProcsRunning), nil
}

func (h *Host) readMemory(ctx context.Context, counter Counter) (float64, error) {
	switch counter.Name {
	case AvailableMBytes.Name, TotalMBytes.Name:
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, err
		}
		if counter.Name == TotalMBytes.Name {
			return float64(vm.Total) / bytesPerMB, nil
		}
		return float64(vm.Available) / bytesPerMB, nil

	case PagesPerSec.Name:
		swap, err := mem.SwapMemoryWithContext(ctx)
		if err != nil {
			return 0, err
		}
		pageSize := float64(os.Getpagesize())
		pages := float64(swap.Sin)/pageSize + float64(swap.Sout)/pageSize + float64(swap.PgMajFault)
		return h.delta(counter.String(), pages, h.seconds()), nil
	}

	return 0, unknownCounter(counter)
}

func (h *Host) diskCounters(ctx context.Context, instance string) (disk.IOCountersStat, error) {
	stats, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return disk.IOCountersStat{}, err
	}

	if instance != TotalInstance {
		stat, ok := stats[instance]
		if !ok {
			return disk.IOCountersStat{}, errors.New().WithData(ErrSampleUnavailable, "disk "+instance)
		}
		return stat, nil
	}

	var total disk.IOCountersStat
	names := physicalDisks(stats)
	for _, name := range names {
		stat := stats[name]
		total.ReadCount += stat.ReadCount
		total.WriteCount += stat.WriteCount
		total.ReadTime += stat.ReadTime
		total.WriteTime += stat.WriteTime
		total.WeightedIO += stat.WeightedIO
	}

	return total, nil
}

func (h *Host) readDisk(ctx context.Context, counter Counter) (float64, error) {
	stat, err := h.diskCounters(ctx, counter.Instance)
	if err != nil {
		return 0, err
	}

	key := counter.String()
	switch counter.Name {
	case nameDiskSecPerRead:
		// ReadTime is in milliseconds
		return h.delta(key, float64(stat.ReadTime), float64(stat.ReadCount)) / 1000, nil
	case nameDiskSecPerWrite:
		return h.delta(key, float64(stat.WriteTime), float64(stat.WriteCount)) / 1000, nil
	case nameDiskQueueLength:
		// WeightedIO is in milliseconds, so is the elapsed wall time
		return h.delta(key, float64(stat.WeightedIO), h.seconds()*1000), nil
	}

	return 0, unknownCounter(counter)
}

func (h *Host) readNetwork(ctx context.Context, counter Counter) (float64, error) {
	stats, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return 0, err
	}

	var stat *net.IOCountersStat
	for i := range stats {
		if stats[i].Name == counter.Instance {
			stat = &stats[i]
			break
		}
	}
	if stat == nil {
		return 0, errors.New().WithData(ErrSampleUnavailable, "interface "+counter.Instance)
	}

	var value uint64
	switch counter.Name {
	case nameBytesTotalRate:
		value = stat.BytesSent + stat.BytesRecv
	case namePacketsOutErrors:
		value = stat.Errout
	case namePacketsInErrors:
		value = stat.Errin
	case namePacketsSentRate:
		value = stat.PacketsSent
	case namePacketsRecvRate:
		value = stat.PacketsRecv
	default:
		return 0, unknownCounter(counter)
	}

	return h.delta(counter.String(), float64(value), h.seconds()), nil
}

func (h *Host) readWebService(ctx context.Context, counter Counter) (float64, error) {
	switch counter.Name {
	case CurrentConnections.Name:
		conns, err := net.ConnectionsWithContext(ctx, "tcp")
		if err != nil {
			return 0, err
		}
		count := 0
		for _, conn := range conns {
			if conn.Status == "ESTABLISHED" && webPorts[conn.Laddr.Port] {
				count++
			}
		}
		return float64(count), nil

	case ConnectionAttemptsRate.Name:
		protos, err := net.ProtoCountersWithContext(ctx, []string{"tcp"})
		if err != nil {
			return 0, err
		}
		for _, proto := range protos {
			if proto.Protocol == "tcp" {
				return h.delta(counter.String(), float64(proto.Stats["PassiveOpens"]), h.seconds()), nil
			}
		}
		return 0, errors.New().WithMessage(ErrSampleUnavailable, "no tcp protocol counters")
	}

	return 0, unknownCounter(counter)
}

// Instances lists the per-instance names of a category, including the
// aggregate TotalInstance for disks.
func (h *Host) Instances(ctx context.Context, category string) ([]string, error) {
	switch category {
	case CategoryDisk:
		stats, err := disk.IOCountersWithContext(ctx)
		if err != nil {
			return nil, err
		}
		return append(physicalDisks(stats), TotalInstance), nil

	case CategoryNetwork:
		stats, err := net.IOCountersWithContext(ctx, true)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(stats))
		for _, stat := range stats {
			if stat.Name == "lo" {
				continue
			}
			names = append(names, stat.Name)
		}
		sort.Strings(names)
		return names, nil
	}

	return nil, errors.New().WithData(ErrUnknownCategory, category)
}

// physicalDisks drops partitions and virtual block devices.
func physicalDisks(stats map[string]disk.IOCountersStat) []string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") {
			continue
		}
		if isPartition(name, stats) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func isPartition(name string, stats map[string]disk.IOCountersStat) bool {
	for other := range stats {
		if other == name || !strings.HasPrefix(name, other) {
			continue
		}
		suffix := strings.TrimPrefix(strings.TrimPrefix(name, other), "p")
		if suffix != "" && strings.Trim(suffix, "0123456789") == "" {
			return true
		}
	}

	return false
}

func (h *Host) Volumes(ctx context.Context) ([]Volume, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(partitions))
	volumes := make([]Volume, 0, len(partitions))
	for _, partition := range partitions {
		if seen[partition.Mountpoint] {
			continue
		}
		seen[partition.Mountpoint] = true

		volume := Volume{
			Name:  partition.Mountpoint,
			Fixed: !virtualFilesystems[partition.Fstype],
		}
		if usage, err := disk.UsageWithContext(ctx, partition.Mountpoint); err == nil {
			volume.Ready = true
			volume.FreeBytes = usage.Free
			volume.TotalBytes = usage.Total
		}
		volumes = append(volumes, volume)
	}

	return volumes, nil
}

// maxCommLen is the length Linux truncates a process name (comm) to.
const maxCommLen = 15

// Status reports a service as running when a process with that name exists.
// A service whose executable cannot be found on PATH is not installed.
func (h *Host) Status(ctx context.Context, name string) (ServiceStatus, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return StatusStopped, err
	}

	for _, proc := range procs {
		comm, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if comm == name {
			return StatusRunning, nil
		}
		if !truncatedName(comm, name) {
			continue
		}

		exe, _ := proc.ExeWithContext(ctx)
		cmdline, _ := proc.CmdlineSliceWithContext(ctx)
		if matchesExecutable(name, exe, cmdline) {
			return StatusRunning, nil
		}
	}

	if _, err := exec.LookPath(name); err != nil {
		return StatusNotInstalled, nil
	}

	return StatusStopped, nil
}

// truncatedName reports whether comm could be name cut to maxCommLen.
func truncatedName(comm, name string) bool {
	return len(comm) == maxCommLen && len(name) > maxCommLen && strings.HasPrefix(name, comm)
}

// matchesExecutable compares name with the executable basename, then with
// the first word of the command line.
func matchesExecutable(name, exe string, cmdline []string) bool {
	if exe != "" && filepath.Base(exe) == name {
		return true
	}
	if len(cmdline) > 0 {
		first := strings.Fields(cmdline[0])
		if len(first) > 0 && filepath.Base(first[0]) == name {
			return true
		}
	}

	return false
}
