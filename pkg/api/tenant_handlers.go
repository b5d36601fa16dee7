package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/observability"
	"github.com/platinummonkey/bazaar/pkg/tenants"
)

// TenantHandlers exposes tenant and project management.
type TenantHandlers struct {
	service tenants.Service
	logger  *observability.Logger
}

// NewTenantHandlers creates tenant HTTP handlers.
func NewTenantHandlers(service tenants.Service, logger *observability.Logger) *TenantHandlers {
	return &TenantHandlers{service: service, logger: logger}
}

// RegisterRoutes registers tenant routes on the router.
func (h *TenantHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/tenants", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/tenants", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/tenants/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/tenants/{id}/projects", h.CreateProject).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/tenants/{id}/projects", h.ListProjects).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/projects/{id}", h.GetProject).Methods(http.MethodGet)
}

func (h *TenantHandlers) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tenants.ErrTenantNotFound), errors.Is(err, tenants.ErrProjectNotFound):
		catalog.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, tenants.ErrDuplicate):
		catalog.WriteError(w, http.StatusConflict, "duplicate", err.Error())
	default:
		h.logger.WithError(err).Errorf("tenant operation failed")
		catalog.WriteError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (h *TenantHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var t tenants.Tenant
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if err := h.service.CreateTenant(r.Context(), &t); err != nil {
		h.writeErr(w, err)
		return
	}
	catalog.WriteJSON(w, http.StatusCreated, t)
}

func (h *TenantHandlers) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListTenants(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if out == nil {
		out = []*tenants.Tenant{}
	}
	catalog.WriteJSON(w, http.StatusOK, map[string]any{"tenants": out})
}

func (h *TenantHandlers) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetTenant(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeErr(w, err)
		return
	}
	catalog.WriteJSON(w, http.StatusOK, t)
}

func (h *TenantHandlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var p tenants.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	p.TenantID = mux.Vars(r)["id"]
	if _, err := h.service.GetTenant(r.Context(), p.TenantID); err != nil {
		h.writeErr(w, err)
		return
	}
	if err := h.service.CreateProject(r.Context(), &p); err != nil {
		h.writeErr(w, err)
		return
	}
	catalog.WriteJSON(w, http.StatusCreated, p)
}

func (h *TenantHandlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListProjects(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if out == nil {
		out = []*tenants.Project{}
	}
	catalog.WriteJSON(w, http.StatusOK, map[string]any{"projects": out})
}

func (h *TenantHandlers) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeErr(w, err)
		return
	}
	catalog.WriteJSON(w, http.StatusOK, p)
}
