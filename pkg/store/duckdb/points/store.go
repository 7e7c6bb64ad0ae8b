package points

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/de-tools/cost-watcher/pkg/adapters"
	"github.com/de-tools/cost-watcher/pkg/models/domain"
	"github.com/de-tools/cost-watcher/pkg/models/store"
	"github.com/de-tools/cost-watcher/pkg/store/timeseries"
	"github.com/rs/zerolog"
)

// Store is an embedded time-series store backed by DuckDB. It serves
// single-node deployments and local runs without an InfluxDB server.
type Store interface {
	timeseries.Store
	Query(ctx context.Context, measurement string, start, stop time.Time) ([]domain.MetricPoint, error)
}

type pointStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &pointStore{
		db: db,
	}, nil
}

func (s *pointStore) Write(ctx context.Context, point domain.MetricPoint) error {
	record := adapters.MapMetricPointToStorePointRecord(point)

	tags, err := json.Marshal(record.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	fields, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO metric_points (measurement, ts, tag_key, tags, fields)
		VALUES (?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		record.Measurement,
		record.Timestamp,
		record.TagKey,
		string(tags),
		string(fields),
	)
	if err != nil {
		return fmt.Errorf("insert point: %w", err)
	}
	return nil
}

func (s *pointStore) Delete(ctx context.Context, req timeseries.DeleteRequest) error {
	query := `DELETE FROM metric_points WHERE measurement = ? AND ts >= ? AND ts < ?`

	res, err := s.db.ExecContext(ctx, query, req.Measurement, req.Start.UTC(), req.Stop.UTC())
	if err != nil {
		return fmt.Errorf("delete points: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil {
		zerolog.Ctx(ctx).Debug().Int64("rows", n).Str("measurement", req.Measurement).Msg("deleted points")
	}
	return nil
}

func (s *pointStore) Query(
	ctx context.Context,
	measurement string,
	start, stop time.Time,
) ([]domain.MetricPoint, error) {
	query := `
		SELECT measurement, ts, tag_key, tags, fields
		FROM metric_points
		WHERE measurement = ? AND ts >= ? AND ts < ?
		ORDER BY ts, tag_key
	`
	rows, err := s.db.QueryContext(ctx, query, measurement, start.UTC(), stop.UTC())
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	points := make([]domain.MetricPoint, 0)
	for rows.Next() {
		var (
			record         store.PointRecord
			tags, fieldSet string
		)
		if err := rows.Scan(&record.Measurement, &record.Timestamp, &record.TagKey, &tags, &fieldSet); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &record.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldSet), &record.Fields); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
		record.Timestamp = record.Timestamp.UTC()
		points = append(points, adapters.MapStorePointRecordToDomain(record))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate points: %w", err)
	}
	return points, nil
}
