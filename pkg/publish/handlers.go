package publish

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/gates"
	"github.com/platinummonkey/bazaar/pkg/observability"
)

// maxRequestBody bounds publish submissions (snapshots are JSON-encoded).
const maxRequestBody = 32 << 20 // 32MiB

// Handlers exposes the publish pipeline over HTTP.
type Handlers struct {
	service *Service
	logger  *observability.Logger
}

// NewHandlers creates publish HTTP handlers.
func NewHandlers(service *Service, logger *observability.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes registers publish routes on the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/publish", h.Publish).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/versions/{id}/rescan", h.Rescan).Methods(http.MethodPost)
}

func (h *Handlers) Publish(w http.ResponseWriter, r *http.Request) {
	var req Request
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Publisher == "" {
		req.Publisher = observability.GetActor(r.Context())
	}
	if req.TenantID == "" || req.Publisher == "" {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "tenant_id and publisher are required")
		return
	}

	result, err := h.service.Publish(r.Context(), &req)
	if err != nil {
		h.writeFailure(w, result, err)
		return
	}
	catalog.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handlers) Rescan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Tier      assets.Tier `json:"tier"`
		Signature []byte      `json:"signature"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			catalog.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}
	}

	result, err := h.service.Rescan(r.Context(), id, observability.GetActor(r.Context()), body.Tier, body.Signature)
	if err != nil {
		h.writeFailure(w, result, err)
		return
	}
	catalog.WriteJSON(w, http.StatusOK, result)
}

// writeFailure maps pipeline errors onto the error envelope. Gate failures are
// reported with the full report so callers can show per-gate findings.
func (h *Handlers) writeFailure(w http.ResponseWriter, result *Result, err error) {
	var vErr *assets.ValidationError
	if errors.As(err, &vErr) {
		catalog.WriteError(w, http.StatusBadRequest, "validation_failed", vErr.Error())
		return
	}
	var gErr *gates.GateFailureError
	if errors.As(err, &gErr) {
		catalog.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  map[string]string{"code": "gates_failed", "message": gErr.Error()},
			"result": result,
		})
		return
	}
	h.logger.WithError(err).Errorf("publish pipeline failed")
	status, code := catalog.StatusForError(err)
	catalog.WriteError(w, status, code, err.Error())
}
