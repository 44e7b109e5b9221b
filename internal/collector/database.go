package collector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/sampler"
)

type ConnectionStats struct {
	User int
	Max  int
}

type QueryStats struct {
	SlowQueryCount int
	AvgDurationMs  float64
}

type LogStats struct {
	UsedKB     float64
	TotalKB    float64
	LastBackup *time.Time
}

// Cumulative engine counters, sampled twice to derive per-second rates.
const (
	CounterBatchRequests   = "Batch Requests/sec"
	CounterSQLCompilations = "SQL Compilations/sec"
	CounterLogins          = "Logins/sec"
)

// Dialect runs the engine-specific statistics queries. Each step may fail
// independently; the collector keeps defaults for a failed step.
type Dialect interface {
	Name() string
	Connections(ctx context.Context, db *sql.DB) (ConnectionStats, error)
	Queries(ctx context.Context, db *sql.DB) (QueryStats, error)
	Log(ctx context.Context, db *sql.DB) (LogStats, error)
	Counters(ctx context.Context, db *sql.DB) (map[string]float64, error)
}

// DialectFor returns the Dialect for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlserver", "mssql":
		return SQLServerDialect{}, nil
	case "sqlite3", "sqlite":
		return SQLiteDialect{}, nil
	}

	return nil, errors.New().WithData(ErrUnknownDriver, driver)
}

// DatabaseCollector reports connection, query and transaction log health of
// one database.
type DatabaseCollector struct {
	db      *sql.DB
	dialect Dialect
	perf    PerformanceSource
	timeout time.Duration
	wait    sampler.WaitFunc
	delay   time.Duration
	now     func() time.Time
}

type DatabaseOptions struct {
	Timeout time.Duration
	// WarmupDelay separates the two reads of the cumulative counters.
	WarmupDelay time.Duration
	Wait        sampler.WaitFunc
}

func NewDatabaseCollector(db *sql.DB, dialect Dialect, perf PerformanceSource, opts DatabaseOptions) *DatabaseCollector {
	if perf == nil {
		perf = PlaceholderPerformance{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.WarmupDelay <= 0 {
		opts.WarmupDelay = sampler.DefaultWarmupDelay
	}
	if opts.Wait == nil {
		opts.Wait = sampler.Wait
	}

	return &DatabaseCollector{
		db:      db,
		dialect: dialect,
		perf:    perf,
		timeout: opts.Timeout,
		wait:    opts.Wait,
		delay:   opts.WarmupDelay,
		now:     time.Now,
	}
}

// OpenDatabaseCollector opens driver/dsn and wraps it in a collector. The
// connection is established lazily on the first Collect.
func OpenDatabaseCollector(driver, dsn string, perf PerformanceSource, opts DatabaseOptions) (*DatabaseCollector, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName(driver), dsn)
	if err != nil {
		return nil, errors.New().Wrap(ErrDatabaseUnavailable, err)
	}

	return NewDatabaseCollector(db, dialect, perf, opts), nil
}

func driverName(driver string) string {
	switch strings.ToLower(driver) {
	case "mssql", "sqlserver":
		return "sqlserver"
	case "sqlite":
		return "sqlite3"
	}

	return driver
}

func (c *DatabaseCollector) Close() error {
	return c.db.Close()
}

func (c *DatabaseCollector) Collect(ctx context.Context) DatabaseMetrics {
	metrics := DatabaseMetrics{Driver: c.dialect.Name()}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		metrics.ErrorMessage = fmt.Sprintf("Database connection error: %v", err)
		return metrics
	}
	metrics.DatabaseAvailable = true

	c.collectConnections(ctx, &metrics)
	c.collectQueries(ctx, &metrics)
	c.collectLog(ctx, &metrics)
	c.collectCounters(ctx, &metrics)

	perf := c.perf.Database(ctx, metrics.AvgQueryDurationMs)
	metrics.ConnectionFailuresPerMinute = perf.ConnectionFailuresPerMinute
	metrics.QueryDuration95thPercentileMs = perf.QueryDuration95thPercentileMs

	checkDatabaseAlerts(&metrics)

	return metrics
}

func (c *DatabaseCollector) collectConnections(ctx context.Context, metrics *DatabaseMetrics) {
	stats, err := c.dialect.Connections(ctx, c.db)
	if err != nil {
		log.Warn().Err(err).Str("dialect", c.dialect.Name()).Msg("Connection statistics unavailable")
		return
	}

	metrics.UserConnections = stats.User
	metrics.MaxConnections = stats.Max
	if metrics.MaxConnections <= 0 {
		metrics.MaxConnections = DefaultMaxConnections
	}
	metrics.ConnectionUsagePercentage = percent(float64(metrics.UserConnections), float64(metrics.MaxConnections))
}

func (c *DatabaseCollector) collectQueries(ctx context.Context, metrics *DatabaseMetrics) {
	stats, err := c.dialect.Queries(ctx, c.db)
	if err != nil {
		log.Warn().Err(err).Str("dialect", c.dialect.Name()).Msg("Query statistics unavailable")
		return
	}

	metrics.SlowQueryCount = stats.SlowQueryCount
	metrics.AvgQueryDurationMs = round2(stats.AvgDurationMs)
}

func (c *DatabaseCollector) collectLog(ctx context.Context, metrics *DatabaseMetrics) {
	// A failed backup-history read still carries the log usage figures.
	stats, err := c.dialect.Log(ctx, c.db)
	if err != nil {
		log.Warn().Err(err).Str("dialect", c.dialect.Name()).Msg("Transaction log statistics incomplete")
		if stats.TotalKB <= 0 {
			return
		}
		stats.LastBackup = nil
	}

	metrics.LogFileUsedSizeKB = round2(stats.UsedKB)
	metrics.LogFileTotalSizeKB = round2(stats.TotalKB)
	metrics.LogFileUsagePercentage = percent(stats.UsedKB, stats.TotalKB)

	if stats.LastBackup != nil {
		backup := *stats.LastBackup
		metrics.LastLogBackupTime = &backup
		metrics.MinutesSinceLastLogBackup = round2(c.now().Sub(backup).Minutes())
	}
}

// collectCounters reads the cumulative engine counters twice, WarmupDelay
// apart, and reports the per-second difference.
func (c *DatabaseCollector) collectCounters(ctx context.Context, metrics *DatabaseMetrics) {
	first, err := c.dialect.Counters(ctx, c.db)
	if err != nil || len(first) == 0 {
		if err != nil {
			log.Warn().Err(err).Str("dialect", c.dialect.Name()).Msg("Engine counters unavailable")
		}
		return
	}

	start := c.now()
	if err := c.wait(ctx, c.delay); err != nil {
		return
	}

	second, err := c.dialect.Counters(ctx, c.db)
	if err != nil {
		log.Warn().Err(err).Str("dialect", c.dialect.Name()).Msg("Engine counters unavailable")
		return
	}

	elapsed := c.now().Sub(start).Seconds()
	if elapsed <= 0 {
		elapsed = c.delay.Seconds()
	}

	rate := func(name string) float64 {
		d := second[name] - first[name]
		if d < 0 {
			return 0
		}
		return round2(d / elapsed)
	}

	metrics.BatchRequestsPerSec = rate(CounterBatchRequests)
	metrics.SQLCompilationsPerSec = rate(CounterSQLCompilations)
	metrics.LoginsPerSec = rate(CounterLogins)
}

func checkDatabaseAlerts(metrics *DatabaseMetrics) {
	var msg strings.Builder

	if metrics.ConnectionUsagePercentage > ConnectionUsageThreshold &&
		metrics.ConnectionFailuresPerMinute > ConnectionFailureThreshold {
		metrics.ConnectionAlertTriggered = true
		fmt.Fprintf(&msg, "Database Connection Alert: Connection usage at %s%% (threshold: %s%%) and %d failures/min (threshold: %d). ",
			num(metrics.ConnectionUsagePercentage), num(ConnectionUsageThreshold),
			metrics.ConnectionFailuresPerMinute, ConnectionFailureThreshold)
	}

	if metrics.AvgQueryDurationMs > AvgQueryDurationLimitMs {
		metrics.QueryPerformanceAlertTriggered = true
		fmt.Fprintf(&msg, "Database Query Performance Alert: Average query duration at %sms (threshold: %sms). ",
			num(metrics.AvgQueryDurationMs), num(AvgQueryDurationLimitMs))
	}

	if metrics.LogFileUsagePercentage > LogFileUsageThreshold &&
		metrics.MinutesSinceLastLogBackup > LogBackupThresholdMinutes {
		metrics.TransactionLogAlertTriggered = true
		fmt.Fprintf(&msg, "Transaction Log Alert: Log file usage at %s%% (threshold: %s%%) and %s minutes since last backup (threshold: %s minutes)",
			num(metrics.LogFileUsagePercentage), num(LogFileUsageThreshold),
			num(metrics.MinutesSinceLastLogBackup), num(LogBackupThresholdMinutes))
	}

	metrics.AlertMessage = strings.TrimSpace(msg.String())
}
