package timeseries

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/de-tools/cost-watcher/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	path  string
	query map[string]string
	body  string
}

type fakeInflux struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	query := map[string]string{}
	for k := range r.URL.Query() {
		query[k] = r.URL.Query().Get(k)
	}

	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{path: r.URL.Path, query: query, body: string(body)})
	status := f.status
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusNoContent
	}
	if status >= 400 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"code":"internal error","message":"boom"}`))
		return
	}
	w.WriteHeader(status)
}

func (f *fakeInflux) last(t *testing.T, path string) capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].path == path {
			return f.requests[i]
		}
	}
	t.Fatalf("no request to %s", path)
	return capturedRequest{}
}

func newInfluxFixture(t *testing.T) (*fakeInflux, *InfluxStore) {
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewInfluxStore(InfluxSettings{
		URL:     srv.URL,
		Token:   "token",
		Org:     "my_org",
		Bucket:  "cost_data",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return fake, store
}

func TestNewInfluxStore_Validation(t *testing.T) {
	_, err := NewInfluxStore(InfluxSettings{Org: "o", Bucket: "b"})
	assert.Error(t, err)

	_, err = NewInfluxStore(InfluxSettings{URL: "http://localhost:8086", Bucket: "b"})
	assert.Error(t, err)
}

func TestInfluxStore_Write(t *testing.T) {
	fake, store := newInfluxFixture(t)

	err := store.Write(context.Background(), domain.MetricPoint{
		Measurement: "cost",
		Tags:        map[string]string{"service": "EC2", "region": "us-east-1"},
		Fields:      map[string]float64{"amortized_cost": 1.5},
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	req := fake.last(t, "/api/v2/write")
	assert.Equal(t, "my_org", req.query["org"])
	assert.Equal(t, "cost_data", req.query["bucket"])
	assert.Equal(t, "ns", req.query["precision"])
	assert.Contains(t, req.body, "cost,region=us-east-1,service=EC2 amortized_cost=1.5 1704067200000000000")
}

func TestInfluxStore_WriteError(t *testing.T) {
	fake, store := newInfluxFixture(t)
	fake.status = http.StatusInternalServerError

	err := store.Write(context.Background(), domain.MetricPoint{
		Measurement: "cost",
		Tags:        map[string]string{"service": "EC2", "region": "us-east-1"},
		Fields:      map[string]float64{"amortized_cost": 1.5},
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)
}

func TestInfluxStore_Delete(t *testing.T) {
	fake, store := newInfluxFixture(t)

	stop := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	err := store.Delete(context.Background(), DeleteRequest{
		Measurement: "cost",
		Start:       time.Unix(0, 0).UTC(),
		Stop:        stop,
	})
	require.NoError(t, err)

	req := fake.last(t, "/api/v2/delete")
	assert.Equal(t, "my_org", req.query["org"])
	assert.Equal(t, "cost_data", req.query["bucket"])

	var payload struct {
		Start     time.Time `json:"start"`
		Stop      time.Time `json:"stop"`
		Predicate string    `json:"predicate"`
	}
	require.NoError(t, json.Unmarshal([]byte(req.body), &payload))
	assert.Equal(t, `_measurement="cost"`, payload.Predicate)
	assert.True(t, payload.Stop.Equal(stop.Add(-time.Nanosecond)), "a point exactly at stop is kept")
	assert.True(t, payload.Stop.Before(stop))
	assert.True(t, payload.Start.Equal(time.Unix(0, 0)))
}
