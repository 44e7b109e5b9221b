package collector

import (
	"context"
	"database/sql"
	"strings"

	"codeberg.org/mutker/hostwatch/internal/errors"
	_ "github.com/microsoft/go-mssqldb"
)

const (
	sqlServerConnectionsQuery = `
SELECT
	(SELECT CAST(value_in_use AS INT) FROM sys.configurations WHERE name = 'user connections') AS MaxConnections,
	(SELECT COUNT(*) FROM sys.dm_exec_sessions WHERE is_user_process = 1) AS UserConnections`

	sqlServerQueriesQuery = `
SELECT
	COUNT(*) AS SlowQueryCount,
	AVG(total_elapsed_time / execution_count / 1000.0) AS AvgDurationMs
FROM sys.dm_exec_query_stats
WHERE (total_elapsed_time / execution_count / 1000.0) > 2000`

	sqlServerLogQuery = `
SELECT
	CAST(SUM(CAST(FILEPROPERTY(name, 'SpaceUsed') AS BIGINT)) * 8.0 AS FLOAT) AS LogUsedSizeKB,
	CAST(SUM(CAST(size AS BIGINT)) * 8.0 AS FLOAT) AS LogTotalSizeKB
FROM sys.database_files
WHERE type_desc = 'LOG'`

	sqlServerBackupQuery = `
SELECT TOP 1 backup_finish_date
FROM msdb.dbo.backupset
WHERE database_name = DB_NAME() AND type = 'L'
ORDER BY backup_finish_date DESC`

	sqlServerCountersQuery = `
SELECT RTRIM(counter_name), CAST(cntr_value AS FLOAT)
FROM sys.dm_os_performance_counters
WHERE RTRIM(counter_name) IN ('Batch Requests/sec', 'SQL Compilations/sec', 'Logins/sec')`
)

// SQLServerDialect reads statistics from the SQL Server dynamic management
// views and msdb backup history.
type SQLServerDialect struct{}

func (SQLServerDialect) Name() string {
	return "sqlserver"
}

func (SQLServerDialect) Connections(ctx context.Context, db *sql.DB) (ConnectionStats, error) {
	var maxConns, userConns sql.NullInt64
	if err := db.QueryRowContext(ctx, sqlServerConnectionsQuery).Scan(&maxConns, &userConns); err != nil {
		return ConnectionStats{}, err
	}

	return ConnectionStats{User: int(userConns.Int64), Max: int(maxConns.Int64)}, nil
}

func (SQLServerDialect) Queries(ctx context.Context, db *sql.DB) (QueryStats, error) {
	var count sql.NullInt64
	var avg sql.NullFloat64
	if err := db.QueryRowContext(ctx, sqlServerQueriesQuery).Scan(&count, &avg); err != nil {
		return QueryStats{}, err
	}

	return QueryStats{SlowQueryCount: int(count.Int64), AvgDurationMs: avg.Float64}, nil
}

func (SQLServerDialect) Log(ctx context.Context, db *sql.DB) (LogStats, error) {
	var used, total sql.NullFloat64
	if err := db.QueryRowContext(ctx, sqlServerLogQuery).Scan(&used, &total); err != nil {
		return LogStats{}, err
	}
	stats := LogStats{UsedKB: used.Float64, TotalKB: total.Float64}

	var finished sql.NullTime
	err := db.QueryRowContext(ctx, sqlServerBackupQuery).Scan(&finished)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return stats, err
	case finished.Valid:
		stats.LastBackup = &finished.Time
	}

	return stats, nil
}

func (SQLServerDialect) Counters(ctx context.Context, db *sql.DB) (map[string]float64, error) {
	rows, err := db.QueryContext(ctx, sqlServerCountersQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counters := make(map[string]float64, 3)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		// The same counter exists once per instance object; keep the sum.
		counters[strings.TrimSpace(name)] += value
	}

	return counters, rows.Err()
}
