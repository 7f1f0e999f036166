package pricing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/grooming-booking/pkg/logging"
)

// Handler serves the price catalog.
type Handler struct {
	table  *Table
	logger *logging.Logger
}

// NewHandler creates a catalog handler. A nil table falls back to DefaultTable.
func NewHandler(table *Table, logger *logging.Logger) *Handler {
	if table == nil {
		table = DefaultTable()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{table: table, logger: logger}
}

// GetPrices handles GET /api/grooming/prices?species=dog
func (h *Handler) GetPrices(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.table.Catalog(r.URL.Query().Get("species"))
	if err != nil {
		if errors.Is(err, ErrUnknownSpecies) {
			http.Error(w, "species must be dog or cat", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to build price catalog", "error", err)
		http.Error(w, "failed to load prices", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(catalog)
}
