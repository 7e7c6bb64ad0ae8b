package aws_ce

import (
	"context"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/de-tools/cost-watcher/pkg/costcsv"
	"github.com/de-tools/cost-watcher/pkg/models/domain"
	"github.com/de-tools/cost-watcher/pkg/store/objectstore"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const unknown = "Unknown"

var exportedMetrics = []string{
	"AmortizedCost",
	"BlendedCost",
	"UnblendedCost",
	"UsageQuantity",
}

var serviceNames = map[string]string{
	"Amazon Elastic Compute Cloud - Compute": "Amazon EC2",
	"Amazon Simple Storage Service":          "Amazon S3",
	"Amazon Elastic Block Store":             "Amazon EBS",
	"Amazon RDS Service":                     "Amazon RDS",
	"Amazon DynamoDB":                        "Amazon DynamoDB",
	"Amazon CloudWatch":                      "Amazon CloudWatch",
}

// CostAndUsageAPI is the subset of *costexplorer.Client used by the exporter.
type CostAndUsageAPI interface {
	GetCostAndUsage(
		ctx context.Context,
		params *costexplorer.GetCostAndUsageInput,
		optFns ...func(*costexplorer.Options),
	) (*costexplorer.GetCostAndUsageOutput, error)
}

type ExportResult struct {
	Key  string
	Date string
	Rows int
}

// Exporter writes one CSV per day of Cost Explorer data, grouped by service
// and region, under <prefix>/<YYYY-MM-DD>.csv.
type Exporter struct {
	client  CostAndUsageAPI
	objects objectstore.Store
	prefix  string
}

func NewExporter(client CostAndUsageAPI, objects objectstore.Store, prefix string) (*Exporter, error) {
	if client == nil {
		return nil, fmt.Errorf("cost explorer client is nil")
	}
	if objects == nil {
		return nil, fmt.Errorf("object store is nil")
	}
	return &Exporter{
		client:  client,
		objects: objects,
		prefix:  prefix,
	}, nil
}

// KeyFor is the object key of the export for day.
func (e *Exporter) KeyFor(day time.Time) string {
	return path.Join(strings.TrimSuffix(e.prefix, "/"), day.UTC().Format(costcsv.DateLayout)+".csv")
}

func (e *Exporter) Export(ctx context.Context, day time.Time) (*ExportResult, error) {
	logger := zerolog.Ctx(ctx)
	date := day.UTC().Format(costcsv.DateLayout)

	logger.Info().Str("date", date).Msg("fetching AWS costs")
	records, err := e.FetchRecords(ctx, day)
	if err != nil {
		return nil, err
	}

	body, err := costcsv.Encode(records)
	if err != nil {
		return nil, fmt.Errorf("encode export for %s: %w", date, err)
	}

	key := e.KeyFor(day)
	if err := e.objects.Put(ctx, key, body); err != nil {
		return nil, fmt.Errorf("store export for %s: %w", date, err)
	}

	logger.Info().Str("key", key).Int("rows", len(records)).Msg("stored AWS cost data")
	return &ExportResult{Key: key, Date: date, Rows: len(records)}, nil
}

// FetchRecords returns the normalised, non-zero cost rows for one day.
func (e *Exporter) FetchRecords(ctx context.Context, day time.Time) ([]domain.CostRecord, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(start.Format(costcsv.DateLayout)),
			End:   aws.String(end.Format(costcsv.DateLayout)),
		},
		Granularity: types.GranularityDaily,
		Metrics:     exportedMetrics,
		GroupBy: []types.GroupDefinition{
			{
				Type: types.GroupDefinitionTypeDimension,
				Key:  aws.String("SERVICE"),
			},
			{
				Type: types.GroupDefinitionTypeDimension,
				Key:  aws.String("REGION"),
			},
		},
	}

	var records []domain.CostRecord
	for {
		result, err := e.client.GetCostAndUsage(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to get cost and usage: %w", err)
		}

		page, err := transformCostAndUsageResult(result)
		if err != nil {
			return nil, err
		}
		records = append(records, page...)

		if aws.ToString(result.NextPageToken) == "" {
			break
		}
		input.NextPageToken = result.NextPageToken
	}

	// Zero-cost, zero-usage groups carry no information.
	return lo.Filter(records, func(r domain.CostRecord, _ int) bool {
		return r.AmortizedCost != 0 || r.UsageQuantity != 0
	}), nil
}

func transformCostAndUsageResult(result *costexplorer.GetCostAndUsageOutput) ([]domain.CostRecord, error) {
	var records []domain.CostRecord

	for _, resultByTime := range result.ResultsByTime {
		date, err := time.Parse(costcsv.DateLayout, aws.ToString(resultByTime.TimePeriod.Start))
		if err != nil {
			return nil, fmt.Errorf("failed to parse start time: %w", err)
		}

		for _, group := range resultByTime.Groups {
			record := domain.CostRecord{
				Date:    date,
				Service: unknown,
				Region:  unknown,
			}
			if len(group.Keys) > 0 {
				record.Service = FormatServiceName(group.Keys[0])
			}
			if len(group.Keys) > 1 {
				record.Region = group.Keys[1]
			}

			if record.AmortizedCost, err = metricAmount(group.Metrics, "AmortizedCost"); err != nil {
				return nil, err
			}
			if record.BlendedCost, err = metricAmount(group.Metrics, "BlendedCost"); err != nil {
				return nil, err
			}
			if record.UnblendedCost, err = metricAmount(group.Metrics, "UnblendedCost"); err != nil {
				return nil, err
			}
			if record.UsageQuantity, err = metricAmount(group.Metrics, "UsageQuantity"); err != nil {
				return nil, err
			}
			records = append(records, record)
		}
	}

	return records, nil
}

// FormatServiceName shortens well-known Cost Explorer service names.
func FormatServiceName(service string) string {
	if short, ok := serviceNames[service]; ok {
		return short
	}
	return service
}

// metricAmount parses a metric amount rounded to 5 decimals; a missing metric is zero.
func metricAmount(metrics map[string]types.MetricValue, name string) (float64, error) {
	value, ok := metrics[name]
	if !ok || value.Amount == nil {
		return 0, nil
	}
	amount, err := strconv.ParseFloat(*value.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s amount %q: %w", name, *value.Amount, err)
	}
	return math.Round(amount*1e5) / 1e5, nil
}
