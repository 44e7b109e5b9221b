package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
)

// Collectors holds one collector per domain.
type Collectors struct {
	CPU       Collector[CPUMetrics]
	Memory    Collector[MemoryMetrics]
	Disk      Collector[DiskMetrics]
	DiskIO    Collector[DiskIOMetrics]
	Network   Collector[NetworkMetrics]
	WebServer Collector[WebServerMetrics]
	Database  Collector[DatabaseMetrics]
	Services  Collector[ServiceMetrics]
}

// Aggregator runs every collector concurrently and merges the snapshots into
// one MonitoringBatch.
type Aggregator struct {
	collectors *Collectors
	closers    []func() error
	now        func() time.Time
}

func NewAggregator(collectors *Collectors) *Aggregator {
	return &Aggregator{
		collectors: collectors,
		now:        time.Now,
	}
}

// CollectAll never fails: a collector that panics leaves an ErrorMessage on
// its own domain, and a batch that cannot be started carries a batch-level
// ErrorMessage with default snapshots.
func (a *Aggregator) CollectAll(ctx context.Context) (batch MonitoringBatch) {
	batch.CollectionTimestamp = a.now()

	defer func() {
		if r := recover(); r != nil {
			log.ErrorWithCode(errors.New().WithData(ErrBatchFailure, r)).Msg("Collection failed")
			batch = MonitoringBatch{
				CollectionTimestamp: batch.CollectionTimestamp,
				ErrorMessage:        fmt.Sprintf("Error during collection: %v", r),
			}
		}
	}()

	if a.collectors == nil {
		batch.ErrorMessage = "Error during collection: no collectors configured"
		return batch
	}
	if err := ctx.Err(); err != nil {
		batch.ErrorMessage = fmt.Sprintf("Error during collection: %v", err)
		return batch
	}

	c := a.collectors
	var wg sync.WaitGroup

	collect(ctx, &wg, DomainCPU, &batch.CPU, c.CPU)
	collect(ctx, &wg, DomainMemory, &batch.Memory, c.Memory)
	collect(ctx, &wg, DomainDisk, &batch.Disk, c.Disk)
	collect(ctx, &wg, DomainDiskIO, &batch.DiskIO, c.DiskIO)
	collect(ctx, &wg, DomainNetwork, &batch.Network, c.Network)
	collect(ctx, &wg, DomainWebServer, &batch.WebServer, c.WebServer)
	collect(ctx, &wg, DomainDatabase, &batch.Database, c.Database)
	collect(ctx, &wg, DomainServices, &batch.Services, c.Services)

	wg.Wait()

	log.Debug().
		Dur("elapsed", a.now().Sub(batch.CollectionTimestamp)).
		Msg("Collection cycle complete")

	return batch
}

type failable[T any] interface {
	*T
	setError(msg string)
}

// collect runs c on its own goroutine and stores the snapshot in dst. Each
// goroutine writes only its own field of the batch.
func collect[T any, P failable[T]](ctx context.Context, wg *sync.WaitGroup, domain string, dst *T, c Collector[T]) {
	wg.Add(1)

	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.ErrorWithCode(errors.New().WithData(ErrCollectorFailure, r)).Str("domain", domain).Msg("Collector failed")

				var snapshot T
				P(&snapshot).setError(collectionError(domain, r))
				*dst = snapshot
			}
		}()

		if c == nil {
			panic("collector not configured")
		}

		*dst = c.Collect(ctx)
	}()
}

// Close releases resources held by the collectors, such as database handles.
func (a *Aggregator) Close() error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
