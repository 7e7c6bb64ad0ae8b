package timeseries

import (
	"context"
	"time"

	"github.com/de-tools/cost-watcher/pkg/models/domain"
)

// Store is the time-series capability. Writing a point with the same
// measurement, tag set and timestamp as an existing one overwrites it.
type Store interface {
	Write(ctx context.Context, point domain.MetricPoint) error
	Delete(ctx context.Context, req DeleteRequest) error
}

// DeleteRequest removes every point of Measurement with Start <= ts < Stop.
// Backends with an inclusive stop bound must adjust it.
type DeleteRequest struct {
	Measurement string
	Start       time.Time
	Stop        time.Time
}
