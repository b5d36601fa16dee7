package federation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/compatibility"
	"github.com/platinummonkey/bazaar/pkg/observability"
)

// Handlers exposes sync operations and the central-side item endpoints. A
// central deployment serves the item endpoints; a tenant deployment serves the
// sync operations. Both register the full set.
type Handlers struct {
	engine  *Engine
	central CentralClient
	logger  *observability.Logger
}

// NewHandlers creates federation HTTP handlers. central handles inbound pushes
// and item listings on the central side; a LocalClient over the local stores
// serves both roles.
func NewHandlers(engine *Engine, central CentralClient, logger *observability.Logger) *Handlers {
	return &Handlers{engine: engine, central: central, logger: logger}
}

// RegisterRoutes registers federation routes on the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/federation/status", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/federation/promote", h.Promote).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/federation/pull", h.Pull).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/federation/ack", h.Ack).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/federation/items", h.ReceiveItem).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/federation/items", h.ListItems).Methods(http.MethodGet)
}

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "tenant_id is required")
		return
	}
	status, err := h.engine.Status(r.Context(), tenantID)
	if err != nil {
		h.logger.WithError(err).Errorf("failed to load sync status")
		code, name := catalog.StatusForError(err)
		catalog.WriteError(w, code, name, "failed to load sync status")
		return
	}
	catalog.WriteJSON(w, http.StatusOK, status)
}

func (h *Handlers) Promote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TenantID == "" {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "tenant_id is required")
		return
	}
	report, err := h.engine.Promote(r.Context(), body.TenantID)
	h.writeReport(w, report, err)
}

func (h *Handlers) Pull(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TenantID string                    `json:"tenant_id"`
		Level    compatibility.ImpactLevel `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TenantID == "" {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "tenant_id is required")
		return
	}
	if !body.Level.IsValid() {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "a valid impact level is required")
		return
	}
	report, err := h.engine.Pull(r.Context(), body.TenantID, body.Level)
	h.writeReport(w, report, err)
}

func (h *Handlers) Ack(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TenantID string `json:"tenant_id"`
		Seq      int64  `json:"seq"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TenantID == "" {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "tenant_id is required")
		return
	}
	if err := h.engine.Ack(r.Context(), body.TenantID, body.Seq); err != nil {
		status, code := catalog.StatusForError(err)
		catalog.WriteError(w, status, code, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReceiveItem is the central-side endpoint accepting a pushed item.
func (h *Handlers) ReceiveItem(w http.ResponseWriter, r *http.Request) {
	var item Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "invalid federation item")
		return
	}
	if err := h.central.PushItem(r.Context(), &item); err != nil {
		h.logger.WithError(err).Errorf("failed to accept federation item")
		status, code := catalog.StatusForError(err)
		catalog.WriteError(w, status, code, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ListItems is the central-side endpoint serving items past a sequence.
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after := int64(0)
	if v := q.Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			catalog.WriteError(w, http.StatusBadRequest, "bad_request", "invalid after sequence")
			return
		}
		after = n
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			catalog.WriteError(w, http.StatusBadRequest, "bad_request", "invalid limit")
			return
		}
		limit = n
	}
	items, err := h.central.FetchSince(r.Context(), after, limit)
	if err != nil {
		h.logger.WithError(err).Errorf("failed to list federation items")
		status, code := catalog.StatusForError(err)
		catalog.WriteError(w, status, code, "failed to list federation items")
		return
	}
	if items == nil {
		items = []*Item{}
	}
	catalog.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) writeReport(w http.ResponseWriter, report *Report, err error) {
	if err != nil {
		var partial *PartialFailureError
		if errors.As(err, &partial) {
			catalog.WriteJSON(w, http.StatusConflict, map[string]any{
				"error":  map[string]string{"code": "sync_partial_failure", "message": partial.Error()},
				"report": report,
			})
			return
		}
		h.logger.WithError(err).Errorf("sync cycle failed")
		status, code := catalog.StatusForError(err)
		catalog.WriteError(w, status, code, err.Error())
		return
	}
	catalog.WriteJSON(w, http.StatusOK, report)
}
