package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/cost-watcher/pkg/adapters"
	"github.com/de-tools/cost-watcher/pkg/costcsv"
	"github.com/de-tools/cost-watcher/pkg/metrics"
	"github.com/de-tools/cost-watcher/pkg/services/ledger"
	"github.com/de-tools/cost-watcher/pkg/services/retention"
	"github.com/de-tools/cost-watcher/pkg/store/objectstore"
	"github.com/de-tools/cost-watcher/pkg/store/timeseries"
	"github.com/rs/zerolog"
)

type Settings struct {
	Prefix        string
	RetentionDays int
}

// Result summarises one pass over the bucket.
type Result struct {
	StartedAt     time.Time
	Cutoff        time.Time
	PruneErr      error
	Listed        int
	Skipped       int
	Ingested      []string
	Empty         []string
	Failed        map[string]error
	PointsWritten int
}

// Cycle runs one ingestion pass. The processed set is reloaded from the ledger
// at the start of every pass and kept in step with every save.
// A Cycle is not safe for concurrent use.
type Cycle struct {
	objects  objectstore.Store
	points   timeseries.Store
	ledger   *ledger.Ledger
	pruner   *retention.Pruner
	metrics  *metrics.WatcherMetrics
	settings Settings
	now      func() time.Time

	processed ledger.Set
}

type Option func(*Cycle)

func WithMetrics(m *metrics.WatcherMetrics) Option {
	return func(c *Cycle) {
		c.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cycle) {
		c.now = now
	}
}

func NewCycle(
	objects objectstore.Store,
	points timeseries.Store,
	ldg *ledger.Ledger,
	pruner *retention.Pruner,
	settings Settings,
	opts ...Option,
) (*Cycle, error) {
	if objects == nil || points == nil {
		return nil, fmt.Errorf("object store and time-series store are required")
	}
	if ldg == nil || pruner == nil {
		return nil, fmt.Errorf("ledger and pruner are required")
	}

	c := &Cycle{
		objects:  objects,
		points:   points,
		ledger:   ldg,
		pruner:   pruner,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.Discard()
	}
	return c, nil
}

// Load reads the ledger snapshot into memory. Run calls it once per pass.
func (c *Cycle) Load(ctx context.Context) error {
	set, err := c.ledger.Load(ctx)
	if err != nil {
		return err
	}
	c.processed = set
	c.metrics.LedgerKeys.Set(float64(len(set)))
	return nil
}

// Run prunes old points, reloads the ledger, then ingests every listed key that is neither the
// ledger snapshot nor already processed. Files that fail to parse are recorded
// in Result.Failed and left for the next cycle; any dependency failure aborts
// the cycle and is returned.
func (c *Cycle) Run(ctx context.Context) (*Result, error) {
	logger := zerolog.Ctx(ctx)
	result := &Result{
		StartedAt: c.now(),
		Failed:    make(map[string]error),
	}

	result.Cutoff, result.PruneErr = c.pruner.Prune(ctx, c.settings.RetentionDays)
	switch {
	case result.PruneErr != nil:
		logger.Error().Err(result.PruneErr).Msg("failed to delete old points")
		c.metrics.PrunesTotal.WithLabelValues(metrics.ResultFailure).Inc()
	case result.Cutoff.IsZero():
		c.metrics.PrunesTotal.WithLabelValues(metrics.ResultSkipped).Inc()
	default:
		c.metrics.PrunesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	}

	// The snapshot is re-read every cycle so edits made by `ledger forget` are seen.
	if err := c.Load(ctx); err != nil {
		return result, err
	}

	keys, err := c.objects.List(ctx, c.settings.Prefix)
	if err != nil {
		return result, fmt.Errorf("list candidates: %w", err)
	}
	result.Listed = len(keys)

	for _, key := range keys {
		if key == c.ledger.Key() || c.processed.Has(key) {
			result.Skipped++
			continue
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		written, err := c.processFile(ctx, key)
		result.PointsWritten += written

		var parseErr *costcsv.ParseError
		switch {
		case errors.As(err, &parseErr):
			logger.Warn().Err(err).Str("key", key).Msg("file is malformed, will retry next cycle")
			c.metrics.FilesTotal.WithLabelValues(metrics.FileParseError).Inc()
			result.Failed[key] = err
			continue
		case errors.Is(err, objectstore.ErrNotFound):
			logger.Warn().Str("key", key).Msg("object disappeared after listing")
			continue
		case err != nil:
			return result, err
		}

		if written == 0 {
			result.Empty = append(result.Empty, key)
			c.metrics.FilesTotal.WithLabelValues(metrics.FileEmpty).Inc()
		} else {
			result.Ingested = append(result.Ingested, key)
			c.metrics.FilesTotal.WithLabelValues(metrics.FileIngested).Inc()
		}
	}

	return result, nil
}

// processFile ingests one object and records it in the ledger. It returns the
// number of points written; the key is marked processed only after every
// point was written and the ledger was saved.
func (c *Cycle) processFile(ctx context.Context, key string) (int, error) {
	logger := zerolog.Ctx(ctx).With().Str("key", key).Logger()
	logger.Info().Msg("processing file")

	body, err := c.objects.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", key, err)
	}

	records, err := costcsv.Decode(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}

	if len(records) == 0 {
		logger.Warn().Msg("file has no data rows, marking processed")
		return 0, c.markProcessed(ctx, key)
	}

	written := 0
	for _, record := range records {
		point := adapters.MapCostRecordToMetricPoint(record)
		if err := c.points.Write(ctx, point); err != nil {
			return written, fmt.Errorf("write points of %s (%d of %d written): %w", key, written, len(records), err)
		}
		written++
		c.metrics.PointsWritten.Inc()
	}

	if err := c.markProcessed(ctx, key); err != nil {
		return written, err
	}
	logger.Info().Int("points", written).Msg("file ingested")
	return written, nil
}

func (c *Cycle) markProcessed(ctx context.Context, key string) error {
	c.processed.Add(key)
	if err := c.ledger.Save(ctx, c.processed); err != nil {
		c.processed.Remove(key)
		return fmt.Errorf("record %s as processed: %w", key, err)
	}
	c.metrics.LedgerKeys.Set(float64(len(c.processed)))
	return nil
}
