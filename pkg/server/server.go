package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/de-tools/cost-watcher/pkg/handlers/costs"
	"github.com/de-tools/cost-watcher/pkg/handlers/ledger"
	"github.com/de-tools/cost-watcher/pkg/services/workflow"

	watchermiddleware "github.com/de-tools/cost-watcher/pkg/server/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// DegradedAfter is the number of consecutive failed cycles after which
// /healthz reports 503.
const DegradedAfter = 5

type StatusProvider interface {
	Status() workflow.Status
}

type WebAPI struct {
	router *chi.Mux
	logger *zerolog.Logger
	server *http.Server
	config Config
}

type Dependencies struct {
	Status   StatusProvider
	Ledger   ledger.Reader
	Points   costs.Reader // optional, only the DuckDB store can be queried
	Gatherer prometheus.Gatherer
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

type healthResponse struct {
	Status string           `json:"status"`
	Loop   *workflow.Status `json:"loop,omitempty"`
}

func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	if config.Dependencies.Gatherer == nil {
		config.Dependencies.Gatherer = prometheus.DefaultGatherer
	}

	w := &WebAPI{
		logger: &logger,
		config: config,
	}

	router := chi.NewRouter()
	router.Use(watchermiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)

	deps := config.Dependencies
	router.Get("/healthz", w.health)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	router.Route("/api/v1", func(r chi.Router) {
		if deps.Ledger != nil {
			r.Get("/ledger", ledger.NewHandler(deps.Ledger).ListKeys)
		}
		if deps.Points != nil {
			r.Get("/costs", costs.NewHandler(deps.Points, nil).GetCosts)
		}
	})

	w.router = router
	w.server = &http.Server{
		Addr:              config.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return w
}

func (w *WebAPI) Handler() http.Handler {
	return w.router
}

// Start serves until ctx is done, then shuts down gracefully.
func (w *WebAPI) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting status server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.config.ShutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(shutdownCtx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (w *WebAPI) health(rw http.ResponseWriter, req *http.Request) {
	resp := healthResponse{Status: "ok"}
	code := http.StatusOK

	if w.config.Dependencies.Status != nil {
		status := w.config.Dependencies.Status.Status()
		resp.Loop = &status
		if status.ConsecutiveFailures >= DegradedAfter {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(rw, code, resp)
}

func writeJSON(rw http.ResponseWriter, code int, body any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(body)
}
