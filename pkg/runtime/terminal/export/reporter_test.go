package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/de-tools/cost-watcher/pkg/services/cost/aws_ce"
	"github.com/de-tools/cost-watcher/pkg/services/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporter_Ledger(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)

	require.NoError(t, r.Ledger("process_keys/processed_files.json", []string{"costs/a.csv", "costs/b.csv"}))

	out := buf.String()
	assert.Contains(t, out, "process_keys/processed_files.json: 2 processed file(s)")
	assert.Contains(t, out, "  costs/a.csv\n")
	assert.Contains(t, out, "  costs/b.csv\n")
}

func TestReporter_Exports(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)

	err := r.Exports([]*aws_ce.ExportResult{
		{Key: "costs/2024-01-01.csv", Date: "2024-01-01", Rows: 12},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "costs/2024-01-01.csv")
	assert.Contains(t, out, "12 row(s)")
}

func TestReporter_Cycle(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)

	result := &ingestion.Result{
		StartedAt:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Cutoff:        time.Date(2023, 12, 4, 12, 0, 0, 0, time.UTC),
		Listed:        4,
		Skipped:       1,
		Ingested:      []string{"costs/a.csv"},
		Empty:         []string{"costs/empty.csv"},
		Failed:        map[string]error{"costs/bad.csv": errors.New("row 2: invalid Amortized Cost")},
		PointsWritten: 3,
	}
	require.NoError(t, r.Cycle(result))

	out := buf.String()
	assert.Contains(t, out, "Listed: 4  Skipped: 1  Points written: 3")
	assert.Contains(t, out, "Pruned points before 2023-12-04")
	for _, line := range []string{"costs/a.csv", "costs/empty.csv", "costs/bad.csv"} {
		assert.Contains(t, out, line)
	}
	assert.True(t, strings.Index(out, "costs/a.csv") < strings.Index(out, "costs/bad.csv"))
}

func TestReporter_CycleNil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewReporter(&buf).Cycle(nil))
	assert.Empty(t, buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
