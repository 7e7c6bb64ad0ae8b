package ledger

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/de-tools/cost-watcher/pkg/models/api"
	"github.com/de-tools/cost-watcher/pkg/services/ledger"
	"github.com/rs/zerolog"
)

type Reader interface {
	Load(ctx context.Context) (ledger.Set, error)
}

type Handler struct {
	reader Reader
}

func NewHandler(reader Reader) *Handler {
	return &Handler{reader: reader}
}

// ListKeys returns the processed keys as read from the bucket, not from the
// watcher's in-memory copy.
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	w.Header().Set("Content-Type", "application/json")

	set, err := h.reader.Load(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load ledger")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: err.Error()})
		return
	}

	keys := set.Keys()
	err = json.NewEncoder(w).Encode(api.LedgerKeys{Count: len(keys), Keys: keys})
	if err != nil {
		logger.Error().
			Err(err).
			Msg("failed to encode ledger keys")
	}
}
