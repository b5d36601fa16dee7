package review

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/observability"
)

// Handlers exposes the review queue over HTTP.
type Handlers struct {
	service *Service
	logger  *observability.Logger
}

// NewHandlers creates review HTTP handlers.
func NewHandlers(service *Service, logger *observability.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes registers review routes on the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/reviews", h.ListPending).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/reviews/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/reviews/{id}/decision", h.Decide).Methods(http.MethodPost)
}

func (h *Handlers) ListPending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			catalog.WriteError(w, http.StatusBadRequest, "bad_request", "invalid limit")
			return
		}
		limit = n
	}
	records, err := h.service.ListPending(r.Context(), q.Get("tenant_id"), limit)
	if err != nil {
		h.logger.WithError(err).Errorf("failed to list pending reviews")
		status, code := catalog.StatusForError(err)
		catalog.WriteError(w, status, code, "failed to list pending reviews")
		return
	}
	if records == nil {
		records = []*assets.ReviewRecord{}
	}
	catalog.WriteJSON(w, http.StatusOK, map[string]any{"reviews": records})
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "invalid review id")
		return
	}
	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		status, code := catalog.StatusForError(err)
		catalog.WriteError(w, status, code, err.Error())
		return
	}
	catalog.WriteJSON(w, http.StatusOK, record)
}

func (h *Handlers) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "invalid review id")
		return
	}
	var body struct {
		Decision  assets.ReviewDecision `json:"decision"`
		Rationale string                `json:"rationale"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	record, err := h.service.Decide(r.Context(), id, observability.GetActor(r.Context()), body.Decision, body.Rationale)
	if err != nil {
		if errors.Is(err, ErrRationaleRequired) {
			catalog.WriteError(w, http.StatusBadRequest, "rationale_required", err.Error())
			return
		}
		status, code := catalog.StatusForError(err)
		catalog.WriteError(w, status, code, err.Error())
		return
	}
	catalog.WriteJSON(w, http.StatusOK, record)
}
