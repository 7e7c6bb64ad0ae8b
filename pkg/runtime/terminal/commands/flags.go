package commands

import (
	"github.com/spf13/cobra"
)

// bindFlags maps viper keys onto command flags so an explicit flag overrides
// the environment and config file.
func bindFlags(loader *Loader, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		_ = loader.Viper.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}
