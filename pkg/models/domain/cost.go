package domain

import "time"

const CostMeasurement = "cost"

// Tag and field names of a cost point.
const (
	TagService = "service"
	TagRegion  = "region"

	FieldAmortizedCost = "amortized_cost"
	FieldBlendedCost   = "blended_cost"
	FieldUnblendedCost = "unblended_cost"
	FieldUsageQuantity = "usage_quantity"
)

// CostRecord is one row of a daily cost-usage export.
type CostRecord struct {
	Date          time.Time // day granularity, UTC
	Service       string    // Amazon EC2
	Region        string    // us-east-1
	AmortizedCost float64
	BlendedCost   float64
	UnblendedCost float64
	UsageQuantity float64
}

type MetricPoint struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]float64
	Timestamp   time.Time
}
