package collector

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteProbeQuery = `SELECT count(*) FROM sqlite_master`

// SQLiteDialect maps the database statistics onto an embedded SQLite file:
// connections come from the pool, query latency from a probe query and the
// transaction log from the write-ahead log.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string {
	return "sqlite3"
}

func (SQLiteDialect) Connections(_ context.Context, db *sql.DB) (ConnectionStats, error) {
	stats := db.Stats()

	return ConnectionStats{User: stats.InUse, Max: stats.MaxOpenConnections}, nil
}

func (SQLiteDialect) Queries(ctx context.Context, db *sql.DB) (QueryStats, error) {
	start := time.Now()

	var tables int
	if err := db.QueryRowContext(ctx, sqliteProbeQuery).Scan(&tables); err != nil {
		return QueryStats{}, err
	}

	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	stats := QueryStats{AvgDurationMs: elapsed}
	if elapsed > AvgQueryDurationLimitMs {
		stats.SlowQueryCount = 1
	}

	return stats, nil
}

// Log reports frames not yet checkpointed against the auto-checkpoint size.
// Databases not in WAL mode report an empty log.
func (SQLiteDialect) Log(ctx context.Context, db *sql.DB) (LogStats, error) {
	var pageSize, autoCheckpoint int64
	if err := db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return LogStats{}, err
	}
	if err := db.QueryRowContext(ctx, "PRAGMA wal_autocheckpoint").Scan(&autoCheckpoint); err != nil {
		return LogStats{}, err
	}

	var busy, logFrames, checkpointed int64
	if err := db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &logFrames, &checkpointed); err != nil {
		return LogStats{}, err
	}
	if logFrames < 0 {
		return LogStats{}, nil
	}

	pageKB := float64(pageSize) / 1024

	return LogStats{
		UsedKB:  float64(logFrames-checkpointed) * pageKB,
		TotalKB: float64(autoCheckpoint) * pageKB,
	}, nil
}

// Counters is empty: SQLite keeps no cumulative engine counters.
func (SQLiteDialect) Counters(context.Context, *sql.DB) (map[string]float64, error) {
	return nil, nil
}
