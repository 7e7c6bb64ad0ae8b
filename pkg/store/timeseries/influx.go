package timeseries

import (
	"context"
	"fmt"
	"time"

	"github.com/de-tools/cost-watcher/pkg/models/domain"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

type InfluxSettings struct {
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
}

type InfluxStore struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	org    string
	bucket string
}

func NewInfluxStore(settings InfluxSettings) (*InfluxStore, error) {
	if settings.URL == "" {
		return nil, fmt.Errorf("influx url is required")
	}
	if settings.Org == "" || settings.Bucket == "" {
		return nil, fmt.Errorf("influx org and bucket are required")
	}

	opts := influxdb2.DefaultOptions().SetPrecision(time.Nanosecond)
	if settings.Timeout > 0 {
		opts = opts.SetHTTPRequestTimeout(uint(settings.Timeout / time.Second))
	}

	client := influxdb2.NewClientWithOptions(settings.URL, settings.Token, opts)
	return &InfluxStore{
		client: client,
		writer: client.WriteAPIBlocking(settings.Org, settings.Bucket),
		org:    settings.Org,
		bucket: settings.Bucket,
	}, nil
}

func (s *InfluxStore) Write(ctx context.Context, point domain.MetricPoint) error {
	fields := make(map[string]interface{}, len(point.Fields))
	for name, value := range point.Fields {
		fields[name] = value
	}

	p := influxdb2.NewPoint(point.Measurement, point.Tags, fields, point.Timestamp)
	if err := s.writer.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("write point to %s: %w", s.bucket, err)
	}
	return nil
}

func (s *InfluxStore) Delete(ctx context.Context, req DeleteRequest) error {
	predicate := fmt.Sprintf(`_measurement="%s"`, req.Measurement)
	// The InfluxDB delete API includes stop; step back one nanosecond to keep it exclusive.
	stop := req.Stop.Add(-time.Nanosecond)
	err := s.client.DeleteAPI().DeleteWithName(ctx, s.org, s.bucket, req.Start, stop, predicate)
	if err != nil {
		return fmt.Errorf("delete %s from %s: %w", predicate, s.bucket, err)
	}
	return nil
}

func (s *InfluxStore) Close() error {
	s.client.Close()
	return nil
}
