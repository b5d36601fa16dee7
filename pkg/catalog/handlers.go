package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/audit"
	"github.com/platinummonkey/bazaar/pkg/observability"
)

// Handlers exposes catalog browsing and lifecycle endpoints.
type Handlers struct {
	store  Store
	auditL audit.Logger
	logger *observability.Logger
}

// NewHandlers creates catalog HTTP handlers.
func NewHandlers(store Store, auditL audit.Logger, logger *observability.Logger) *Handlers {
	return &Handlers{store: store, auditL: auditL, logger: logger}
}

// RegisterRoutes registers catalog routes on the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/assets", h.ListAssets).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/assets/{id}", h.GetAsset).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/assets/{id}/versions", h.ListVersions).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/versions/{id}", h.GetVersion).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/versions/{id}/scans", h.ScanResults).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/versions/{id}/deprecate", h.Deprecate).Methods(http.MethodPost)
}

// WriteJSON writes a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

// StatusForError maps store sentinel errors onto HTTP statuses.
func StatusForError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, ErrStaleStatus):
		return http.StatusConflict, "stale_status"
	case errors.Is(err, ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, ErrReviewConflict):
		return http.StatusConflict, "review_conflict"
	case errors.Is(err, ErrPendingReviewExists):
		return http.StatusConflict, "pending_review_exists"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *Handlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		TenantID: q.Get("tenant_id"),
		Type:     assets.Type(q.Get("type")),
		Tier:     assets.Tier(q.Get("tier")),
		Status:   assets.Status(q.Get("status")),
		Search:   q.Get("q"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, "bad_request", "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, "bad_request", "invalid offset")
			return
		}
		filter.Offset = n
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		WriteError(w, http.StatusBadRequest, "bad_request", "invalid asset type")
		return
	}

	out, err := h.store.ListAssets(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Errorf("failed to list assets")
		status, code := StatusForError(err)
		WriteError(w, status, code, "failed to list assets")
		return
	}
	if out == nil {
		out = []*assets.Asset{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"assets": out})
}

func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := h.store.GetAsset(r.Context(), id)
	if err != nil {
		status, code := StatusForError(err)
		WriteError(w, status, code, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, a)
}

func (h *Handlers) ListVersions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.store.GetAsset(r.Context(), id); err != nil {
		status, code := StatusForError(err)
		WriteError(w, status, code, err.Error())
		return
	}
	versions, err := h.store.ListVersions(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("asset_id", id).Errorf("failed to list versions")
		status, code := StatusForError(err)
		WriteError(w, status, code, "failed to list versions")
		return
	}
	if versions == nil {
		versions = []*assets.Version{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, err := h.store.GetVersion(r.Context(), id)
	if err != nil {
		status, code := StatusForError(err)
		WriteError(w, status, code, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

func (h *Handlers) ScanResults(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.store.GetVersion(r.Context(), id); err != nil {
		status, code := StatusForError(err)
		WriteError(w, status, code, err.Error())
		return
	}
	results, err := h.store.ScanResults(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("version_id", id).Errorf("failed to load scan results")
		status, code := StatusForError(err)
		WriteError(w, status, code, "failed to load scan results")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Deprecate retires an approved version. Deprecated versions stay resolvable
// for audit purposes but are excluded from installs and promotion.
func (h *Handlers) Deprecate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	actor := observability.GetActor(r.Context())

	err := h.store.TransitionStatus(r.Context(), id, assets.StatusApproved, assets.StatusDeprecated, "")
	if err != nil {
		status, code := StatusForError(err)
		WriteError(w, status, code, err.Error())
		return
	}
	audit.Record(r.Context(), h.auditL, &audit.Event{
		Action:  audit.ActionCatalogDeprecated,
		Actor:   actor,
		Subject: id,
		Outcome: audit.OutcomeSuccess,
	})
	v, err := h.store.GetVersion(r.Context(), id)
	if err != nil {
		status, code := StatusForError(err)
		WriteError(w, status, code, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, v)
}
