package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/de-tools/cost-watcher/pkg/services/config"
	"github.com/de-tools/cost-watcher/pkg/store/duckdb/points"
	"github.com/de-tools/cost-watcher/pkg/store/timeseries"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger("warn", "json", &buf)
		require.NoError(t, err)

		logger.Info().Msg("hidden")
		logger.Warn().Str("key", "costs/a.csv").Msg("visible")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "visible", entry["message"])
		assert.Equal(t, "costs/a.csv", entry["key"])
	})

	t.Run("console", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger("INFO", "console", &buf)
		require.NoError(t, err)

		logger.Info().Msg("hello")
		assert.Contains(t, buf.String(), "hello")
		assert.NotContains(t, buf.String(), `"message"`)
	})

	t.Run("empty level defaults to info", func(t *testing.T) {
		logger, err := NewLogger("", "json", &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := NewLogger("loud", "json", &bytes.Buffer{})
		assert.ErrorContains(t, err, "LOG_LEVEL")
	})
}

func TestOpenPointStore(t *testing.T) {
	t.Run("duckdb", func(t *testing.T) {
		store, closer, err := OpenPointStore(&config.Config{TSDBDriver: config.DriverDuckDB})
		require.NoError(t, err)
		defer closer.Close()

		_, ok := store.(points.Store)
		assert.True(t, ok)
	})

	t.Run("influxdb", func(t *testing.T) {
		store, closer, err := OpenPointStore(&config.Config{
			TSDBDriver:   config.DriverInfluxDB,
			InfluxURL:    "http://localhost:8086",
			InfluxToken:  "token",
			InfluxOrg:    "org",
			InfluxBucket: "bucket",
		})
		require.NoError(t, err)
		defer closer.Close()

		_, ok := store.(*timeseries.InfluxStore)
		assert.True(t, ok)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, _, err := OpenPointStore(&config.Config{TSDBDriver: "graphite"})
		assert.ErrorContains(t, err, "graphite")
	})
}
