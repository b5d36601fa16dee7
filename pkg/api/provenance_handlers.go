package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/observability"
	"github.com/platinummonkey/bazaar/pkg/provenance"
)

// ProvenanceHandlers exposes chain reports and verification.
type ProvenanceHandlers struct {
	tracker *provenance.Tracker
	store   catalog.Store
	logger  *observability.Logger
}

// NewProvenanceHandlers creates provenance HTTP handlers.
func NewProvenanceHandlers(tracker *provenance.Tracker, store catalog.Store, logger *observability.Logger) *ProvenanceHandlers {
	return &ProvenanceHandlers{tracker: tracker, store: store, logger: logger}
}

// RegisterRoutes registers provenance routes on the router.
func (h *ProvenanceHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/versions/{id}/provenance", h.Report).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/versions/{id}/provenance/verify", h.Verify).Methods(http.MethodPost)
}

func (h *ProvenanceHandlers) Report(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.store.GetVersion(r.Context(), id); err != nil {
		status, code := catalog.StatusForError(err)
		catalog.WriteError(w, status, code, err.Error())
		return
	}
	chain, err := h.tracker.Report(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).Errorf("failed to load provenance chain")
		catalog.WriteError(w, http.StatusInternalServerError, "internal", "failed to load provenance chain")
		return
	}
	if chain == nil {
		chain = []*provenance.Record{}
	}
	catalog.WriteJSON(w, http.StatusOK, map[string]any{"chain": chain})
}

func (h *ProvenanceHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.store.GetVersion(r.Context(), id); err != nil {
		status, code := catalog.StatusForError(err)
		catalog.WriteError(w, status, code, err.Error())
		return
	}
	result, err := h.tracker.Verify(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).Errorf("failed to verify provenance chain")
		catalog.WriteError(w, http.StatusInternalServerError, "internal", "failed to verify provenance chain")
		return
	}
	catalog.WriteJSON(w, http.StatusOK, result)
}
