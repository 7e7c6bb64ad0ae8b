package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/de-tools/cost-watcher/pkg/handlers/costs"
	"github.com/de-tools/cost-watcher/pkg/metrics"
	"github.com/de-tools/cost-watcher/pkg/runtime/terminal/export"
	"github.com/de-tools/cost-watcher/pkg/server"
	"github.com/de-tools/cost-watcher/pkg/services/config"
	"github.com/de-tools/cost-watcher/pkg/services/ingestion"
	"github.com/de-tools/cost-watcher/pkg/services/retention"
	"github.com/de-tools/cost-watcher/pkg/services/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

type WatchCmd struct {
	loader   *Loader
	reporter *export.Reporter
	once     bool
}

func NewWatchCmd(loader *Loader, reporter *export.Reporter) *cobra.Command {
	wc := &WatchCmd{loader: loader, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the bucket and ingest new cost files",
		Long: "Lists cost CSV files under the configured prefix, writes every unseen file " +
			"to the time-series store, records it in the ledger and prunes points older " +
			"than the retention horizon. Runs until interrupted.",
		RunE: wc.run,
	}

	cmd.Flags().BoolVar(&wc.once, "once", false, "Run a single cycle and exit")
	cmd.Flags().Int("poll-interval", 3600, "Seconds to wait after a successful cycle")
	cmd.Flags().Int("error-backoff", 60, "Seconds to wait after a failed cycle")
	cmd.Flags().Int("retention-days", 180, "Delete points older than this many days (0 disables pruning)")
	cmd.Flags().String("status-addr", ":9100", "Address of the status server (empty disables it)")
	cmd.Flags().String("tsdb-driver", config.DriverInfluxDB, "Time-series backend: influxdb or duckdb")

	bindFlags(loader, cmd, map[string]string{
		"poll_interval":  "poll-interval",
		"error_backoff":  "error-backoff",
		"retention_days": "retention-days",
		"status_addr":    "status-addr",
		"tsdb_driver":    "tsdb-driver",
	})

	return cmd
}

func (wc *WatchCmd) run(cmd *cobra.Command, _ []string) error {
	app, err := wc.loader.Bootstrap(cmd.Context(), (*config.Config).Validate)
	if err != nil {
		return err
	}
	cfg := app.Config
	logger := app.Logger
	ctx := logger.WithContext(cmd.Context())

	points, closer, err := OpenPointStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close time-series store")
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	watcherMetrics := metrics.NewWatcherMetrics(registry)

	pruner, err := retention.NewPruner(points)
	if err != nil {
		return fmt.Errorf("failed to create pruner: %w", err)
	}

	cycle, err := ingestion.NewCycle(app.Objects, points, app.Ledger, pruner, ingestion.Settings{
		Prefix:        cfg.Prefix,
		RetentionDays: cfg.RetentionDays,
	}, ingestion.WithMetrics(watcherMetrics))
	if err != nil {
		return fmt.Errorf("failed to create ingestion cycle: %w", err)
	}

	runner, err := workflow.NewRunner(cycle, workflow.RunnerConfig{
		PollInterval: cfg.PollInterval(),
		ErrorBackoff: cfg.ErrorBackoff(),
	}, workflow.WithMetrics(watcherMetrics))
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	logger.Info().
		Str("bucket", cfg.Bucket).
		Str("prefix", cfg.Prefix).
		Str("ledger", cfg.LedgerKey).
		Str("tsdb_driver", cfg.TSDBDriver).
		Int("retention_days", cfg.RetentionDays).
		Msg("configuration loaded")

	if wc.once {
		result, err := runner.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("ingestion cycle failed: %w", err)
		}
		return wc.reporter.Cycle(result)
	}

	if cfg.StatusAddr != "" {
		deps := server.Dependencies{
			Status:   runner,
			Ledger:   app.Ledger,
			Gatherer: registry,
		}
		if reader, ok := points.(costs.Reader); ok {
			deps.Points = reader
		}
		api := server.NewWebAPI(logger, server.Config{Addr: cfg.StatusAddr, Dependencies: deps})
		go func() {
			if err := api.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("status server stopped")
			}
		}()
	}

	err = runner.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
