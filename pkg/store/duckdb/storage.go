package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb"
)

// PointsTableSchema holds metric points keyed by measurement, timestamp and tag set,
// so rewriting an identical point replaces the previous row.
const PointsTableSchema = `
	CREATE TABLE IF NOT EXISTS metric_points (
		measurement VARCHAR NOT NULL,
		ts TIMESTAMP NOT NULL,
		tag_key VARCHAR NOT NULL,
		tags VARCHAR NOT NULL,
		fields VARCHAR NOT NULL,
		PRIMARY KEY (measurement, ts, tag_key)
	);
`

var bootQueries = []string{
	PointsTableSchema,
}

type Settings struct {
	DbPath  string
	Threads int
}

// NewDB opens (or creates) the database at DbPath. An empty path or ":memory:"
// gives an in-memory database shared by every connection of the pool.
func NewDB(settings Settings) (*sql.DB, error) {
	threads := settings.Threads
	if threads <= 0 {
		threads = 4
	}

	c, err := duckdb.NewConnector(dsn(settings.DbPath, threads), func(exec driver.ExecerContext) error {
		for _, query := range bootQueries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}

// dsn leaves the path empty for in-memory databases; the driver cannot parse
// ":memory:" followed by a query string.
func dsn(path string, threads int) string {
	if path == ":memory:" {
		path = ""
	}
	return fmt.Sprintf("%s?threads=%d", path, threads)
}
