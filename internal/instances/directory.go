package instances

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/logger"
)

var log = logger.Component("instances")

// Record is one non-terminated instance.
type Record struct {
	ID        string `json:"InstanceId"`
	Name      string `json:"InstanceName"`
	PrivateIP string `json:"PrivateIP"`
	PublicIP  string `json:"PublicIP"`
	Region    string `json:"Region"`
}

// Enumerator lists every instance of a region, following pagination to the
// end.
type Enumerator interface {
	Enumerate(ctx context.Context, region string) ([]Record, error)
}

// Directory memoizes instance enumeration per region. A region is
// enumerated at most once until it is cleared; lookups only ever scan
// regions that are already cached.
type Directory struct {
	enumerator Enumerator

	mu      sync.RWMutex
	regions map[string][]Record
}

func NewDirectory(enumerator Enumerator) *Directory {
	return &Directory{
		enumerator: enumerator,
		regions:    make(map[string][]Record),
	}
}

// List returns the instances of region, enumerating it on first use.
// Enumeration failures are returned and leave the region uncached.
func (d *Directory) List(ctx context.Context, region string) ([]Record, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		return []Record{}, nil
	}

	d.mu.RLock()
	records, ok := d.regions[region]
	d.mu.RUnlock()
	if ok {
		return slices.Clone(records), nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if records, ok := d.regions[region]; ok {
		return slices.Clone(records), nil
	}

	records, err := d.enumerator.Enumerate(ctx, region)
	if err != nil {
		return nil, errors.New().Wrap(ErrEnumerationFailed, err).WithData(region)
	}
	if records == nil {
		records = []Record{}
	}

	d.regions[region] = records
	log.Debug().Str("region", region).Int("instances", len(records)).Msg("Cached region instances")

	return slices.Clone(records), nil
}

// FindByPrivateIP searches the cached regions for ip.
func (d *Directory) FindByPrivateIP(ip string) (Record, error) {
	return d.findIP(ip, func(r Record) bool { return r.PrivateIP == ip })
}

func (d *Directory) FindByPublicIP(ip string) (Record, error) {
	return d.findIP(ip, func(r Record) bool { return r.PublicIP == ip })
}

// FindByIP matches either address.
func (d *Directory) FindByIP(ip string) (Record, error) {
	return d.findIP(ip, func(r Record) bool { return r.PublicIP == ip || r.PrivateIP == ip })
}

func (d *Directory) findIP(ip string, match func(Record) bool) (Record, error) {
	if strings.TrimSpace(ip) == "" {
		return Record{}, errors.New().WithMessage(errors.ErrInvalidArgument, "IP address cannot be empty")
	}

	record, ok := d.FindFirstBy(match, "")
	if !ok {
		return Record{}, errors.New().WithData(errors.ErrNotFound, ip)
	}

	return record, nil
}

// FindBy returns every cached record matching pred, within region if given.
func (d *Directory) FindBy(pred func(Record) bool, region string) []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []Record
	for _, name := range d.scope(region) {
		for _, record := range d.regions[name] {
			if pred(record) {
				matches = append(matches, record)
			}
		}
	}

	return matches
}

// FindFirstBy returns the first cached record matching pred. Regions are
// scanned in name order.
func (d *Directory) FindFirstBy(pred func(Record) bool, region string) (Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, name := range d.scope(region) {
		for _, record := range d.regions[name] {
			if pred(record) {
				return record, true
			}
		}
	}

	return Record{}, false
}

// scope must be called with the lock held.
func (d *Directory) scope(region string) []string {
	if region = strings.TrimSpace(region); region != "" {
		if _, ok := d.regions[region]; ok {
			return []string{region}
		}
		return nil
	}

	return d.sortedRegions()
}

func (d *Directory) sortedRegions() []string {
	names := make([]string, 0, len(d.regions))
	for name := range d.regions {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Cached returns the cached records of region without enumerating.
func (d *Directory) Cached(region string) ([]Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	records, ok := d.regions[region]

	return slices.Clone(records), ok
}

func (d *Directory) AllCached() map[string][]Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	all := make(map[string][]Record, len(d.regions))
	for region, records := range d.regions {
		all[region] = slices.Clone(records)
	}

	return all
}

func (d *Directory) CachedRegions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.sortedRegions()
}

// ClearRegion drops region from the cache and reports whether it was cached.
func (d *Directory) ClearRegion(region string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.regions[region]
	delete(d.regions, region)

	return ok
}

func (d *Directory) ClearAll() {
	d.mu.Lock()
	d.regions = make(map[string][]Record)
	d.mu.Unlock()
}
