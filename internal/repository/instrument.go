package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/staffhub/platform/internal/metrics"
)

// instrumentedDB wraps a DBTX and records query durations. The query label is
// the leading SQL verb, keeping metric cardinality bounded.
type instrumentedDB struct {
	db DBTX
	m  *metrics.Metrics
}

// NewInstrumentedDB wraps db so every query reports its duration and outcome.
// A nil m returns db unwrapped.
func NewInstrumentedDB(db DBTX, m *metrics.Metrics) DBTX {
	if m == nil {
		return db
	}
	return &instrumentedDB{db: db, m: m}
}

func (i *instrumentedDB) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	start := time.Now()
	tag, err := i.db.Exec(ctx, sql, arguments...)
	i.m.ObserveDB(queryVerb(sql), start, err)
	return tag, err
}

func (i *instrumentedDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	start := time.Now()
	rows, err := i.db.Query(ctx, sql, args...)
	i.m.ObserveDB(queryVerb(sql), start, err)
	return rows, err
}

func (i *instrumentedDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	start := time.Now()
	row := i.db.QueryRow(ctx, sql, args...)
	// QueryRow defers errors to Scan; the observation covers the round trip
	// up to the first row.
	i.m.ObserveDB(queryVerb(sql), start, nil)
	return row
}

func queryVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToUpper(fields[0])
}
