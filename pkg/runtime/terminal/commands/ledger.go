package commands

import (
	"context"
	"fmt"

	"github.com/de-tools/cost-watcher/pkg/runtime/terminal/export"
	"github.com/de-tools/cost-watcher/pkg/services/config"
	"github.com/de-tools/cost-watcher/pkg/services/ledger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// LedgerStore is the part of *ledger.Ledger the ledger commands use.
type LedgerStore interface {
	Key() string
	Load(ctx context.Context) (ledger.Set, error)
	Save(ctx context.Context, set ledger.Set) error
}

func NewLedgerCmd(loader *Loader, reporter *export.Reporter) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or edit the processed-file ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the keys recorded as processed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loader.Bootstrap(cmd.Context(), (*config.Config).ValidateBucket)
			if err != nil {
				return err
			}
			return ListLedger(app.Logger.WithContext(cmd.Context()), app.Ledger, reporter)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <key>...",
		Short: "Remove keys from the ledger so the next cycle ingests them again",
		Long: "Removes keys from the persisted ledger. A running watcher re-reads the ledger " +
			"at the start of every cycle, so the files are ingested again on its next cycle.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loader.Bootstrap(cmd.Context(), (*config.Config).ValidateBucket)
			if err != nil {
				return err
			}
			_, err = ForgetKeys(app.Logger.WithContext(cmd.Context()), app.Ledger, args, reporter)
			return err
		},
	})

	return cmd
}

func ListLedger(ctx context.Context, ldg LedgerStore, reporter *export.Reporter) error {
	set, err := ldg.Load(ctx)
	if err != nil {
		return err
	}
	return reporter.Ledger(ldg.Key(), set.Keys())
}

// ForgetKeys removes keys from the snapshot and returns how many were present.
// The snapshot is left untouched when none were.
func ForgetKeys(ctx context.Context, ldg LedgerStore, keys []string, reporter *export.Reporter) (int, error) {
	logger := zerolog.Ctx(ctx)

	set, err := ldg.Load(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		if !set.Has(key) {
			logger.Warn().Str("key", key).Msg("key not in ledger")
			continue
		}
		set.Remove(key)
		removed++
	}
	if removed == 0 {
		return 0, nil
	}

	if err := ldg.Save(ctx, set); err != nil {
		return 0, fmt.Errorf("failed to update ledger: %w", err)
	}
	logger.Info().Int("removed", removed).Msg("ledger updated")
	return removed, reporter.Ledger(ldg.Key(), set.Keys())
}
