package adapters

import (
	"maps"
	"slices"
	"strings"

	"github.com/de-tools/cost-watcher/pkg/models/domain"
	"github.com/de-tools/cost-watcher/pkg/models/store"
)

// MapCostRecordToMetricPoint forwards the parsed values as-is; no rounding.
func MapCostRecordToMetricPoint(record domain.CostRecord) domain.MetricPoint {
	return domain.MetricPoint{
		Measurement: domain.CostMeasurement,
		Tags: map[string]string{
			domain.TagService: record.Service,
			domain.TagRegion:  record.Region,
		},
		Fields: map[string]float64{
			domain.FieldAmortizedCost: record.AmortizedCost,
			domain.FieldBlendedCost:   record.BlendedCost,
			domain.FieldUnblendedCost: record.UnblendedCost,
			domain.FieldUsageQuantity: record.UsageQuantity,
		},
		Timestamp: record.Date,
	}
}

func MapMetricPointToStorePointRecord(point domain.MetricPoint) store.PointRecord {
	return store.PointRecord{
		Measurement: point.Measurement,
		Timestamp:   point.Timestamp.UTC(),
		TagKey:      TagKey(point.Tags),
		Tags:        maps.Clone(point.Tags),
		Fields:      maps.Clone(point.Fields),
	}
}

func MapStorePointRecordToDomain(record store.PointRecord) domain.MetricPoint {
	return domain.MetricPoint{
		Measurement: record.Measurement,
		Tags:        maps.Clone(record.Tags),
		Fields:      maps.Clone(record.Fields),
		Timestamp:   record.Timestamp,
	}
}

// TagKey renders tags sorted by name, e.g. "region=us-east-1,service=Amazon EC2".
func TagKey(tags map[string]string) string {
	names := slices.Sorted(maps.Keys(tags))
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+tags[name])
	}
	return strings.Join(parts, ",")
}
