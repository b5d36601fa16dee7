package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/config"
	"github.com/platinummonkey/bazaar/pkg/observability"
	"github.com/platinummonkey/bazaar/pkg/provenance"
	"github.com/platinummonkey/bazaar/pkg/tenants"
)

type apiFixture struct {
	server  *Server
	store   *catalog.MemoryStore
	tracker *provenance.Tracker
	tenants *tenants.MemoryService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := catalog.NewMemoryStore()
	signer, err := provenance.NewEd25519Signer()
	require.NoError(t, err)
	tracker := provenance.NewTracker(provenance.NewMemoryStore(), signer)
	tenantService := tenants.NewMemoryService()

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	registrars := []RouteRegistrar{
		catalog.NewHandlers(store, nil, logger),
		NewTenantHandlers(tenantService, logger),
		NewProvenanceHandlers(tracker, store, logger),
	}
	server := NewServer(config.ServerConfig{Port: "0", HealthPort: "0"}, logger, nil, nil, registrars)
	return &apiFixture{server: server, store: store, tracker: tracker, tenants: tenantService}
}

func (f *apiFixture) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Bazaar-Actor", "alice")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func (f *apiFixture) seedApprovedVersion(t *testing.T) *assets.Version {
	t.Helper()
	ctx := context.Background()

	a := &assets.Asset{TenantID: "tenant-a", Slug: "incident-triage", Type: assets.TypeGoal}
	require.NoError(t, f.store.CreateAsset(ctx, a))
	v := &assets.Version{
		AssetID: a.ID, Status: assets.StatusDraft, Tier: assets.TierTenantLocal,
		ImpactMin: "IL2", ImpactMax: "IL5", ContentDigest: "digest", CreatedBy: "alice",
	}
	require.NoError(t, f.store.CreateVersion(ctx, v))

	_, err := f.tracker.Append(ctx, v.ID, provenance.Attestation{
		Kind: provenance.KindSource, Payload: map[string]interface{}{"publisher": "alice"},
	})
	require.NoError(t, err)
	_, err = f.tracker.Seal(ctx, v.ID)
	require.NoError(t, err)

	require.NoError(t, f.store.TransitionStatus(ctx, v.ID, assets.StatusDraft, assets.StatusScanning, ""))
	require.NoError(t, f.store.TransitionStatus(ctx, v.ID, assets.StatusScanning, assets.StatusApproved, ""))
	return v
}

func TestServerAssignsRequestID(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.request(t, http.MethodGet, "/api/v1/assets", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestTenantEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodPost, "/api/v1/tenants",
		map[string]string{"slug": "acme", "name": "Acme Corp"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created tenants.Tenant
	decodeBody(t, rec, &created)
	assert.NotEmpty(t, created.ID)

	rec = f.request(t, http.MethodGet, "/api/v1/tenants/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/v1/tenants/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeBody(t, rec, &envelope)
	assert.Equal(t, "not_found", envelope.Error.Code)

	// Duplicate slug surfaces as a conflict.
	rec = f.request(t, http.MethodPost, "/api/v1/tenants",
		map[string]string{"slug": "acme", "name": "Other"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCatalogBrowseAndDeprecate(t *testing.T) {
	f := newAPIFixture(t)
	v := f.seedApprovedVersion(t)

	rec := f.request(t, http.MethodGet, "/api/v1/assets?tenant_id=tenant-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Assets []*assets.Asset `json:"assets"`
	}
	decodeBody(t, rec, &listing)
	require.Len(t, listing.Assets, 1)
	assert.Equal(t, "incident-triage", listing.Assets[0].Slug)

	rec = f.request(t, http.MethodGet, "/api/v1/versions/"+v.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got assets.Version
	decodeBody(t, rec, &got)
	assert.Equal(t, assets.StatusApproved, got.Status)

	rec = f.request(t, http.MethodPost, "/api/v1/versions/"+v.ID+"/deprecate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &got)
	assert.Equal(t, assets.StatusDeprecated, got.Status)

	// Deprecating again is a conflict: the version is no longer approved.
	rec = f.request(t, http.MethodPost, "/api/v1/versions/"+v.ID+"/deprecate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVersionNotFoundEnvelope(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodGet, "/api/v1/versions/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, rec, &envelope)
	assert.Equal(t, "not_found", envelope.Error.Code)
}

func TestProvenanceEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	v := f.seedApprovedVersion(t)

	rec := f.request(t, http.MethodGet, "/api/v1/versions/"+v.ID+"/provenance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report struct {
		Chain []*provenance.Record `json:"chain"`
	}
	decodeBody(t, rec, &report)
	require.Len(t, report.Chain, 2)
	assert.Equal(t, provenance.KindSignature, report.Chain[1].Kind)

	rec = f.request(t, http.MethodPost, "/api/v1/versions/"+v.ID+"/provenance/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var verify provenance.VerifyResult
	decodeBody(t, rec, &verify)
	assert.True(t, verify.Valid)
}
