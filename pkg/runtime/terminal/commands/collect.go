package commands

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/de-tools/cost-watcher/pkg/costcsv"
	"github.com/de-tools/cost-watcher/pkg/runtime/terminal/export"
	"github.com/de-tools/cost-watcher/pkg/services/config"
	"github.com/de-tools/cost-watcher/pkg/services/cost/aws_ce"
	"github.com/spf13/cobra"
)

type CollectCmd struct {
	loader   *Loader
	reporter *export.Reporter
	date     string
	days     int
	now      func() time.Time
}

func NewCollectCmd(loader *Loader, reporter *export.Reporter) *cobra.Command {
	cc := &CollectCmd{loader: loader, reporter: reporter, now: time.Now}
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Export daily AWS costs from Cost Explorer into the bucket",
		RunE:  cc.run,
	}

	cmd.Flags().StringVar(&cc.date, "date", "", "Last day to export as YYYY-MM-DD (default yesterday, UTC)")
	cmd.Flags().IntVar(&cc.days, "days", 1, "Number of consecutive days to export, ending at --date")

	return cmd
}

// Days resolves the flags into the UTC days to export, oldest first.
func (cc *CollectCmd) Days() ([]time.Time, error) {
	if cc.days < 1 {
		return nil, fmt.Errorf("--days must be at least 1, got %d", cc.days)
	}

	now := cc.now().UTC()
	last := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	if cc.date != "" {
		parsed, err := time.Parse(costcsv.DateLayout, cc.date)
		if err != nil {
			return nil, fmt.Errorf("invalid --date %q: %w", cc.date, err)
		}
		last = parsed
	}

	days := make([]time.Time, 0, cc.days)
	for i := cc.days - 1; i >= 0; i-- {
		days = append(days, last.AddDate(0, 0, -i))
	}
	return days, nil
}

func (cc *CollectCmd) run(cmd *cobra.Command, _ []string) error {
	days, err := cc.Days()
	if err != nil {
		return err
	}

	app, err := cc.loader.Bootstrap(cmd.Context(), (*config.Config).ValidateBucket)
	if err != nil {
		return err
	}
	ctx := app.Logger.WithContext(cmd.Context())

	exporter, err := aws_ce.NewExporter(costexplorer.NewFromConfig(*app.AWS), app.Objects, app.Config.Prefix)
	if err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}

	results := make([]*aws_ce.ExportResult, 0, len(days))
	for _, day := range days {
		result, err := exporter.Export(ctx, day)
		if err != nil {
			return fmt.Errorf("failed to export costs: %w", err)
		}
		results = append(results, result)
	}

	return cc.reporter.Exports(results)
}
