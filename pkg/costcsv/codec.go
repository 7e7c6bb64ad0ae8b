package costcsv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/de-tools/cost-watcher/pkg/models/domain"
)

const DateLayout = "2006-01-02"

const (
	ColumnDate          = "date"
	ColumnService       = "service"
	ColumnRegion        = "region"
	ColumnAmortizedCost = "amortized_cost"
	ColumnBlendedCost   = "blended_cost"
	ColumnUnblendedCost = "unblended_cost"
	ColumnUsageQuantity = "usage_quantity"
)

// Header is the fixed column contract of a daily export. Names are case-sensitive.
var Header = []string{
	ColumnDate,
	ColumnService,
	ColumnRegion,
	ColumnAmortizedCost,
	ColumnBlendedCost,
	ColumnUnblendedCost,
	ColumnUsageQuantity,
}

// ParseError reports why a file could not be converted. Row is 1-based and
// counts the header, so it matches the line in the file for simple CSVs.
type ParseError struct {
	Row    int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.Row == 0:
		return fmt.Sprintf("parse cost csv: %v", e.Err)
	case e.Column == "":
		return fmt.Sprintf("parse cost csv: row %d: %v", e.Row, e.Err)
	default:
		return fmt.Sprintf("parse cost csv: row %d, column %q: %v", e.Row, e.Column, e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Decode reads a whole export. A body with no data rows (including a
// zero-byte body) yields an empty slice and no error.
func Decode(r io.Reader) ([]domain.CostRecord, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []domain.CostRecord{}, nil
	}
	if err != nil {
		return nil, &ParseError{Row: 1, Err: err}
	}

	columns, err := indexHeader(header)
	if err != nil {
		return nil, &ParseError{Row: 1, Err: err}
	}

	records := make([]domain.CostRecord, 0)
	row := 1
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, &ParseError{Row: row, Err: err}
		}

		record, err := decodeRow(fields, columns, row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// Encode renders records with the fixed header.
func Encode(records []domain.CostRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for _, r := range records {
		err := writer.Write([]string{
			r.Date.UTC().Format(DateLayout),
			r.Service,
			r.Region,
			formatFloat(r.AmortizedCost),
			formatFloat(r.BlendedCost),
			formatFloat(r.UnblendedCost),
			formatFloat(r.UsageQuantity),
		})
		if err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func indexHeader(header []string) (map[string]int, error) {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}

	var missing []string
	for _, name := range Header {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func decodeRow(fields []string, columns map[string]int, row int) (domain.CostRecord, error) {
	value := func(column string) (string, error) {
		v := strings.TrimSpace(fields[columns[column]])
		if v == "" {
			return "", &ParseError{Row: row, Column: column, Err: errors.New("missing value")}
		}
		return v, nil
	}

	number := func(column string) (float64, error) {
		v, err := value(column)
		if err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, &ParseError{Row: row, Column: column, Err: err}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, &ParseError{Row: row, Column: column, Err: fmt.Errorf("non-finite value %q", v)}
		}
		return f, nil
	}

	var (
		record domain.CostRecord
		err    error
	)

	rawDate, err := value(ColumnDate)
	if err != nil {
		return record, err
	}
	if record.Date, err = parseDate(rawDate); err != nil {
		return record, &ParseError{Row: row, Column: ColumnDate, Err: err}
	}
	if record.Service, err = value(ColumnService); err != nil {
		return record, err
	}
	if record.Region, err = value(ColumnRegion); err != nil {
		return record, err
	}
	if record.AmortizedCost, err = number(ColumnAmortizedCost); err != nil {
		return record, err
	}
	if record.BlendedCost, err = number(ColumnBlendedCost); err != nil {
		return record, err
	}
	if record.UnblendedCost, err = number(ColumnUnblendedCost); err != nil {
		return record, err
	}
	if record.UsageQuantity, err = number(ColumnUsageQuantity); err != nil {
		return record, err
	}
	return record, nil
}

// parseDate accepts plain dates and full RFC 3339 timestamps.
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", v)
	}
	return t.UTC(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
