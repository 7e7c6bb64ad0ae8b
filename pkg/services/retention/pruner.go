package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/de-tools/cost-watcher/pkg/models/domain"
	"github.com/de-tools/cost-watcher/pkg/store/timeseries"
	"github.com/rs/zerolog"
)

// Epoch is the lower bound of every prune range.
var Epoch = time.Unix(0, 0).UTC()

// Pruner deletes cost points older than a retention horizon with a single range delete.
type Pruner struct {
	points      timeseries.Store
	measurement string
	now         func() time.Time
}

type Option func(*Pruner)

func WithClock(now func() time.Time) Option {
	return func(p *Pruner) {
		p.now = now
	}
}

func NewPruner(points timeseries.Store, opts ...Option) (*Pruner, error) {
	if points == nil {
		return nil, fmt.Errorf("time-series store is nil")
	}
	p := &Pruner{
		points:      points,
		measurement: domain.CostMeasurement,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Cutoff is now minus horizonDays whole days.
func (p *Pruner) Cutoff(horizonDays int) time.Time {
	return p.now().UTC().AddDate(0, 0, -horizonDays)
}

// Prune deletes points in [Epoch, cutoff). A non-positive horizon disables pruning
// and returns the zero time.
func (p *Pruner) Prune(ctx context.Context, horizonDays int) (time.Time, error) {
	logger := zerolog.Ctx(ctx)

	if horizonDays <= 0 {
		logger.Debug().Msg("retention disabled, skipping prune")
		return time.Time{}, nil
	}

	cutoff := p.Cutoff(horizonDays)
	logger.Info().
		Int("retention_days", horizonDays).
		Time("cutoff", cutoff).
		Msg("deleting points older than retention horizon")

	err := p.points.Delete(ctx, timeseries.DeleteRequest{
		Measurement: p.measurement,
		Start:       Epoch,
		Stop:        cutoff,
	})
	if err != nil {
		return cutoff, fmt.Errorf("prune before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	logger.Info().Time("cutoff", cutoff).Msg("old points deleted")
	return cutoff, nil
}
