package install

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/compatibility"
	"github.com/platinummonkey/bazaar/pkg/observability"
	"github.com/platinummonkey/bazaar/pkg/provenance"
	"github.com/platinummonkey/bazaar/pkg/tenants"
)

// Handlers exposes installs over HTTP. The response carries the snapshot so
// the client materializes it locally.
type Handlers struct {
	manager *Manager
	logger  *observability.Logger
}

// NewHandlers creates install HTTP handlers.
func NewHandlers(manager *Manager, logger *observability.Logger) *Handlers {
	return &Handlers{manager: manager, logger: logger}
}

// RegisterRoutes registers install routes on the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/installations", h.Install).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/projects/{id}/installations", h.List).Methods(http.MethodGet)
}

func (h *Handlers) Install(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.InstalledBy == "" {
		req.InstalledBy = observability.GetActor(r.Context())
	}
	if req.ProjectID == "" || req.VersionID == "" {
		catalog.WriteError(w, http.StatusBadRequest, "bad_request", "project_id and version_id are required")
		return
	}

	result, err := h.manager.Install(r.Context(), &req)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyInstalled {
		status = http.StatusOK
	}
	catalog.WriteJSON(w, status, result)
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	installs, err := h.manager.List(r.Context(), id)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if installs == nil {
		installs = []*assets.Installation{}
	}
	catalog.WriteJSON(w, http.StatusOK, map[string]any{"installations": installs})
}

func (h *Handlers) writeFailure(w http.ResponseWriter, err error) {
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		code := "install_blocked"
		switch blocked.Kind {
		case BlockNotApproved:
			code = "asset_not_approved"
		case BlockTierVisibility:
			code = "tier_not_visible"
		}
		catalog.WriteError(w, http.StatusForbidden, code, blocked.Error())
		return
	}
	var compat *compatibility.IncompatibleImpactLevelError
	if errors.As(err, &compat) {
		catalog.WriteError(w, http.StatusForbidden, "incompatible_impact_level", compat.Error())
		return
	}
	var prov *provenance.ProvenanceInvalidError
	if errors.As(err, &prov) {
		catalog.WriteError(w, http.StatusConflict, "provenance_invalid", prov.Error())
		return
	}
	if errors.Is(err, tenants.ErrProjectNotFound) {
		catalog.WriteError(w, http.StatusNotFound, "project_not_found", err.Error())
		return
	}
	h.logger.WithError(err).Errorf("install failed")
	status, code := catalog.StatusForError(err)
	catalog.WriteError(w, status, code, err.Error())
}
