package adapters

import (
	"testing"
	"time"

	"github.com/de-tools/cost-watcher/pkg/models/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapCostRecordToMetricPoint(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	record := domain.CostRecord{
		Date:          day,
		Service:       "Amazon EC2",
		Region:        "us-east-1",
		AmortizedCost: 1.123456789,
		BlendedCost:   2,
		UnblendedCost: 3.5,
		UsageQuantity: 24,
	}

	point := MapCostRecordToMetricPoint(record)

	assert.Equal(t, "cost", point.Measurement)
	assert.Equal(t, day, point.Timestamp)
	assert.Equal(t, map[string]string{"service": "Amazon EC2", "region": "us-east-1"}, point.Tags)
	assert.Equal(t, 1.123456789, point.Fields["amortized_cost"], "values are forwarded without rounding")
	assert.Equal(t, 2.0, point.Fields["blended_cost"])
	assert.Equal(t, 3.5, point.Fields["unblended_cost"])
	assert.Equal(t, 24.0, point.Fields["usage_quantity"])
}

func TestTagKey(t *testing.T) {
	assert.Equal(t, "region=us-east-1,service=EC2", TagKey(map[string]string{"service": "EC2", "region": "us-east-1"}))
	assert.Equal(t, "", TagKey(nil))
}

func TestStorePointRecordRoundTrip(t *testing.T) {
	point := domain.MetricPoint{
		Measurement: "cost",
		Tags:        map[string]string{"service": "S3", "region": "us-west-2"},
		Fields:      map[string]float64{"blended_cost": 0.5},
		Timestamp:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	record := MapMetricPointToStorePointRecord(point)
	assert.Equal(t, "region=us-west-2,service=S3", record.TagKey)

	record.Tags["service"] = "changed"
	assert.Equal(t, "S3", point.Tags["service"], "mapping must not share maps")

	back := MapStorePointRecordToDomain(MapMetricPointToStorePointRecord(point))
	assert.Equal(t, point, back)
}
