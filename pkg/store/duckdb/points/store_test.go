package points

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/de-tools/cost-watcher/pkg/models/domain"
	"github.com/de-tools/cost-watcher/pkg/store/duckdb"
	"github.com/de-tools/cost-watcher/pkg/store/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db    *sql.DB
	store Store
}

func setupFixture(t *testing.T) *fixture {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)

	store, err := NewStore(db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return &fixture{
		db:    db,
		store: store,
	}
}

func costPoint(day time.Time, service, region string, amortized float64) domain.MetricPoint {
	return domain.MetricPoint{
		Measurement: domain.CostMeasurement,
		Tags:        map[string]string{domain.TagService: service, domain.TagRegion: region},
		Fields: map[string]float64{
			domain.FieldAmortizedCost: amortized,
			domain.FieldBlendedCost:   amortized,
			domain.FieldUnblendedCost: amortized,
			domain.FieldUsageQuantity: 1,
		},
		Timestamp: day,
	}
}

var (
	epoch  = time.Unix(0, 0).UTC()
	future = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

func TestNewStore(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := setupFixture(t)
		assert.NotNil(t, f.store)
	})

	t.Run("nil db", func(t *testing.T) {
		store, err := NewStore(nil)
		assert.Error(t, err)
		assert.Nil(t, store)
	})
}

func TestStore_WriteAndQuery(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.store.Write(ctx, costPoint(day, "Amazon EC2", "us-east-1", 1.5)))
	require.NoError(t, f.store.Write(ctx, costPoint(day, "Amazon S3", "us-west-2", 0.25)))

	points, err := f.store.Query(ctx, domain.CostMeasurement, epoch, future)
	require.NoError(t, err)
	require.Len(t, points, 2, "same timestamp with different tags are distinct points")

	assert.Equal(t, costPoint(day, "Amazon EC2", "us-east-1", 1.5), points[0])
	assert.Equal(t, "Amazon S3", points[1].Tags[domain.TagService])
}

func TestStore_WriteOverwritesIdenticalPoint(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.store.Write(ctx, costPoint(day, "Amazon EC2", "us-east-1", 1.5)))
	require.NoError(t, f.store.Write(ctx, costPoint(day, "Amazon EC2", "us-east-1", 2.5)))

	points, err := f.store.Query(ctx, domain.CostMeasurement, epoch, future)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 2.5, points[0].Fields[domain.FieldAmortizedCost])
}

func TestStore_DeleteRange(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.store.Write(ctx, costPoint(old, "Amazon EC2", "us-east-1", 1)))
	require.NoError(t, f.store.Write(ctx, costPoint(cutoff, "Amazon EC2", "us-east-1", 2)))
	require.NoError(t, f.store.Write(ctx, costPoint(recent, "Amazon EC2", "us-east-1", 3)))

	req := timeseries.DeleteRequest{Measurement: domain.CostMeasurement, Start: epoch, Stop: cutoff}
	require.NoError(t, f.store.Delete(ctx, req))
	require.NoError(t, f.store.Delete(ctx, req), "deleting an already empty range is a no-op")

	points, err := f.store.Query(ctx, domain.CostMeasurement, epoch, future)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, cutoff, points[0].Timestamp, "stop bound is exclusive")
	assert.Equal(t, recent, points[1].Timestamp)
}

func TestStore_DeleteOnlyTouchesMeasurement(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	other := costPoint(day, "Amazon EC2", "us-east-1", 1)
	other.Measurement = "budget"
	require.NoError(t, f.store.Write(ctx, other))
	require.NoError(t, f.store.Write(ctx, costPoint(day, "Amazon EC2", "us-east-1", 1)))

	require.NoError(t, f.store.Delete(ctx, timeseries.DeleteRequest{
		Measurement: domain.CostMeasurement, Start: epoch, Stop: future,
	}))

	remaining, err := f.store.Query(ctx, "budget", epoch, future)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestStore_SQLErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT OR REPLACE INTO metric_points")).
		WillReturnError(errors.New("database is locked"))
	err = store.Write(ctx, costPoint(time.Now(), "Amazon EC2", "us-east-1", 1))
	assert.ErrorContains(t, err, "insert point")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM metric_points")).
		WillReturnError(errors.New("io error"))
	err = store.Delete(ctx, timeseries.DeleteRequest{Measurement: "cost", Start: epoch, Stop: future})
	assert.ErrorContains(t, err, "delete points")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT measurement, ts, tag_key, tags, fields")).
		WillReturnRows(sqlmock.NewRows([]string{"measurement", "ts", "tag_key", "tags", "fields"}).
			AddRow("cost", time.Now(), "k", "not-json", "{}"))
	_, err = store.Query(ctx, "cost", epoch, future)
	assert.ErrorContains(t, err, "decode tags")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FileBackedSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cost-watcher.db")
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	db, err := duckdb.NewDB(duckdb.Settings{DbPath: path})
	require.NoError(t, err)
	store, err := NewStore(db)
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, costPoint(day, "Amazon EC2", "us-east-1", 1.5)))
	require.NoError(t, store.Write(ctx, costPoint(day, "Amazon EC2", "us-east-1", 2.5)))
	require.NoError(t, store.Write(ctx, costPoint(cutoff, "Amazon EC2", "us-east-1", 3)))
	require.NoError(t, db.Close())

	db, err = duckdb.NewDB(duckdb.Settings{DbPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err = NewStore(db)
	require.NoError(t, err)

	points, err := store.Query(ctx, domain.CostMeasurement, epoch, future)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 2.5, points[0].Fields[domain.FieldAmortizedCost], "upsert kept the latest value")

	require.NoError(t, store.Delete(ctx, timeseries.DeleteRequest{
		Measurement: domain.CostMeasurement, Start: epoch, Stop: cutoff,
	}))
	points, err = store.Query(ctx, domain.CostMeasurement, epoch, future)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, cutoff, points[0].Timestamp)
}
