package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverInfluxDB = "influxdb"
	DriverDuckDB   = "duckdb"
)

// Config is the watcher's configuration. Keys map one-to-one onto upper-case
// environment variables (s3_bucket -> S3_BUCKET).
type Config struct {
	Bucket              string `mapstructure:"s3_bucket"`
	Prefix              string `mapstructure:"s3_prefix"`
	LedgerKey           string `mapstructure:"processed_file_key"`
	PollIntervalSeconds int    `mapstructure:"poll_interval"`
	ErrorBackoffSeconds int    `mapstructure:"error_backoff"`
	RetentionDays       int    `mapstructure:"retention_days"`

	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`

	TSDBDriver           string `mapstructure:"tsdb_driver"`
	InfluxURL            string `mapstructure:"influx_url"`
	InfluxToken          string `mapstructure:"influx_token"`
	InfluxOrg            string `mapstructure:"influx_org"`
	InfluxBucket         string `mapstructure:"influx_bucket"`
	InfluxTimeoutSeconds int    `mapstructure:"influx_timeout"`
	DuckDBPath           string `mapstructure:"duckdb_path"`

	StatusAddr string `mapstructure:"status_addr"`
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"s3_bucket":          "cost-history-metrics",
	"s3_prefix":          "costs/",
	"processed_file_key": "process_keys/processed_files.json",
	"poll_interval":      3600,
	"error_backoff":      60,
	"retention_days":     180,
	"aws_region":         "",
	"aws_profile":        "",
	"tsdb_driver":        DriverInfluxDB,
	"influx_url":         "http://localhost:8086",
	"influx_token":       "",
	"influx_org":         "my_org",
	"influx_bucket":      "cost_data",
	"influx_timeout":     30,
	"duckdb_path":        "cost-watcher.db",
	"status_addr":        ":9100",
	"log_level":          "info",
	"log_format":         "json",
}

// NewViper returns a viper instance with every key defaulted and bound to the environment.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

// Load reads an optional config file on top of defaults and environment and
// unmarshals the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.TSDBDriver = strings.ToLower(strings.TrimSpace(cfg.TSDBDriver))
	return &cfg, nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.ErrorBackoffSeconds) * time.Second
}

func (c *Config) InfluxTimeout() time.Duration {
	return time.Duration(c.InfluxTimeoutSeconds) * time.Second
}

// ValidateBucket checks only what is needed to reach the bucket and the ledger.
func (c *Config) ValidateBucket() error {
	var errs []error

	if c.Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET is required"))
	}
	if c.LedgerKey == "" {
		errs = append(errs, errors.New("PROCESSED_FILE_KEY is required"))
	}

	return errors.Join(errs...)
}

// Validate checks what the watcher needs before it enters its loop.
func (c *Config) Validate() error {
	errs := []error{c.ValidateBucket()}

	if c.PollIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive, got %d", c.PollIntervalSeconds))
	}
	if c.ErrorBackoffSeconds <= 0 {
		errs = append(errs, fmt.Errorf("ERROR_BACKOFF must be positive, got %d", c.ErrorBackoffSeconds))
	}
	if c.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("RETENTION_DAYS must not be negative, got %d", c.RetentionDays))
	}

	switch c.TSDBDriver {
	case DriverInfluxDB:
		if c.InfluxURL == "" {
			errs = append(errs, errors.New("INFLUX_URL is required"))
		}
		if c.InfluxToken == "" {
			errs = append(errs, errors.New("INFLUX_TOKEN is required"))
		}
		if c.InfluxOrg == "" || c.InfluxBucket == "" {
			errs = append(errs, errors.New("INFLUX_ORG and INFLUX_BUCKET are required"))
		}
	case DriverDuckDB:
	default:
		errs = append(errs, fmt.Errorf("unknown TSDB_DRIVER %q", c.TSDBDriver))
	}

	return errors.Join(errs...)
}
