package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/de-tools/cost-watcher/pkg/runtime/terminal/commands"
	"github.com/de-tools/cost-watcher/pkg/runtime/terminal/export"
	"github.com/de-tools/cost-watcher/pkg/services/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CLI represents the command-line interface
type CLI struct {
	loader   *commands.Loader
	reporter *export.Reporter
	envFiles []string
	rootCmd  *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	Output    io.Writer
	LogOutput io.Writer
	Viper     *viper.Viper
	// EnvFiles are loaded before configuration is read. Missing files are ignored.
	EnvFiles []string
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	if opts.Viper == nil {
		opts.Viper = config.NewViper()
	}
	if opts.EnvFiles == nil {
		opts.EnvFiles = []string{".env"}
	}

	cli := &CLI{
		loader: &commands.Loader{
			Viper:     opts.Viper,
			LogOutput: opts.LogOutput,
		},
		reporter: export.NewReporter(opts.Output),
		envFiles: opts.EnvFiles,
	}

	cli.rootCmd = cli.newRootCmd()
	cli.rootCmd.SetOut(opts.Output)
	return cli
}

func (cli *CLI) Execute() error {
	return cli.ExecuteContext(context.Background())
}

func (cli *CLI) ExecuteContext(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(ctx)
}

// SetArgs overrides os.Args[1:]; used by tests.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cost-watcher",
		Short:         "Ingest daily cost CSV exports from S3 into a time-series store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.loadEnvFiles()
		},
	}

	cmd.PersistentFlags().StringVarP(&cli.loader.ConfigPath, "config", "c", "",
		"Path to a config file (yaml, json or toml); environment variables take precedence")
	cmd.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "json", "Log format: json or console")
	_ = cli.loader.Viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = cli.loader.Viper.BindPFlag("log_format", cmd.PersistentFlags().Lookup("log-format"))

	cmd.AddCommand(commands.NewWatchCmd(cli.loader, cli.reporter))
	cmd.AddCommand(commands.NewCollectCmd(cli.loader, cli.reporter))
	cmd.AddCommand(commands.NewLedgerCmd(cli.loader, cli.reporter))

	return cmd
}

func (cli *CLI) loadEnvFiles() error {
	for _, file := range cli.envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}
