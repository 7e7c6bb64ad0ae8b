package costs

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/de-tools/cost-watcher/pkg/models/api"
	"github.com/de-tools/cost-watcher/pkg/models/domain"
	"github.com/rs/zerolog"
)

const (
	defaultInterval = 7 // 7 days ~ 1 week
	maxInterval     = 366
)

type Reader interface {
	Query(ctx context.Context, measurement string, start, stop time.Time) ([]domain.MetricPoint, error)
}

type Handler struct {
	reader Reader
	now    func() time.Time
}

func NewHandler(reader Reader, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{reader: reader, now: now}
}

// GetCosts returns the stored cost points of the last `interval` days.
func (h *Handler) GetCosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	w.Header().Set("Content-Type", "application/json")

	interval := defaultInterval
	if raw := r.URL.Query().Get("interval"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxInterval {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "interval must be between 1 and 366 days"})
			return
		}
		interval = n
	}

	end := h.now().UTC()
	start := end.AddDate(0, 0, -interval)

	points, err := h.reader.Query(ctx, domain.CostMeasurement, start, end)
	if err != nil {
		logger.Error().Err(err).Int("interval", interval).Msg("failed to query cost points")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "failed to query cost points"})
		return
	}

	report := api.CostReport{
		Period: api.TimePeriod{Start: start, End: end, Duration: interval},
		Points: make([]api.CostPoint, 0, len(points)),
	}
	for _, p := range points {
		cp := api.CostPoint{
			Date:          p.Timestamp.UTC(),
			Service:       p.Tags[domain.TagService],
			Region:        p.Tags[domain.TagRegion],
			AmortizedCost: p.Fields[domain.FieldAmortizedCost],
			BlendedCost:   p.Fields[domain.FieldBlendedCost],
			UnblendedCost: p.Fields[domain.FieldUnblendedCost],
			UsageQuantity: p.Fields[domain.FieldUsageQuantity],
		}
		report.TotalAmount += cp.AmortizedCost
		report.Points = append(report.Points, cp)
	}

	err = json.NewEncoder(w).Encode(report)
	if err != nil {
		logger.Error().
			Err(err).
			Int("interval", interval).
			Msg("failed to encode cost report")
	}
}
