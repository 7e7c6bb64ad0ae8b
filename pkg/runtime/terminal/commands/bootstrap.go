package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/de-tools/cost-watcher/pkg/services/config"
	"github.com/de-tools/cost-watcher/pkg/services/ledger"
	"github.com/de-tools/cost-watcher/pkg/store/client"
	"github.com/de-tools/cost-watcher/pkg/store/duckdb"
	"github.com/de-tools/cost-watcher/pkg/store/duckdb/points"
	"github.com/de-tools/cost-watcher/pkg/store/objectstore"
	"github.com/de-tools/cost-watcher/pkg/store/timeseries"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Loader resolves configuration and builds the shared clients for every command.
type Loader struct {
	Viper      *viper.Viper
	ConfigPath string
	LogOutput  io.Writer
}

// App holds what a command needs once configuration and AWS access are resolved.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	AWS     *awssdk.Config
	Objects *objectstore.S3Store
	Ledger  *ledger.Ledger
}

func (l *Loader) LoadConfig() (*config.Config, error) {
	return config.Load(l.Viper, l.ConfigPath)
}

// Bootstrap loads configuration, builds the logger and connects to the bucket.
// validate decides how much of the configuration must be present.
func (l *Loader) Bootstrap(ctx context.Context, validate func(*config.Config) error) (*App, error) {
	cfg, err := l.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	out := l.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat, out)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContext(ctx)

	awsCfg, err := client.LoadAWSConfig(ctx, cfg.AWSProfile, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}

	objects, err := objectstore.NewS3Store(s3.NewFromConfig(*awsCfg), cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	ldg, err := ledger.New(objects, cfg.LedgerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	logger.Debug().
		Str("bucket", cfg.Bucket).
		Str("region", awsCfg.Region).
		Str("ledger", cfg.LedgerKey).
		Msg("bootstrap complete")

	return &App{
		Config:  cfg,
		Logger:  logger,
		AWS:     awsCfg,
		Objects: objects,
		Ledger:  ldg,
	}, nil
}

// NewLogger builds the process logger. format "console" gives human-readable
// output, anything else JSON lines.
func NewLogger(level, format string, out io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// OpenPointStore connects to the configured time-series backend. The returned
// closer releases it.
func OpenPointStore(cfg *config.Config) (timeseries.Store, io.Closer, error) {
	switch cfg.TSDBDriver {
	case config.DriverInfluxDB:
		store, err := timeseries.NewInfluxStore(timeseries.InfluxSettings{
			URL:     cfg.InfluxURL,
			Token:   cfg.InfluxToken,
			Org:     cfg.InfluxOrg,
			Bucket:  cfg.InfluxBucket,
			Timeout: cfg.InfluxTimeout(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create InfluxDB store: %w", err)
		}
		return store, store, nil
	case config.DriverDuckDB:
		db, err := duckdb.NewDB(duckdb.Settings{DbPath: cfg.DuckDBPath})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create DuckDB instance: %w", err)
		}
		store, err := points.NewStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to create point store: %w", err)
		}
		return store, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown TSDB_DRIVER %q", cfg.TSDBDriver)
	}
}
