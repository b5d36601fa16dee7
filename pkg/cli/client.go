package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/federation"
	"github.com/platinummonkey/bazaar/pkg/install"
	"github.com/platinummonkey/bazaar/pkg/provenance"
	"github.com/platinummonkey/bazaar/pkg/publish"
	"github.com/platinummonkey/bazaar/pkg/storage"
)

// Client talks to a registry's HTTP API.
type Client struct {
	baseURL string
	actor   string
	http    *http.Client
}

// NewClient creates a registry client. actor is sent as the caller identity
// header on every request.
func NewClient(baseURL, actor string) *Client {
	return &Client{
		baseURL: baseURL,
		actor:   actor,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// apiError is the server's error envelope.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.actor != "" {
		req.Header.Set("X-Bazaar-Actor", c.actor)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var envelope apiError
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
			return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("registry returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Publish submits a snapshot for publication. On gate failure the server
// returns the result alongside the error, so the report can still be printed.
func (c *Client) Publish(ctx context.Context, req *publish.Request) (*publish.Result, error) {
	return c.pipelineCall(ctx, "/api/v1/publish", req)
}

// Rescan reruns the gates for a scan_failed version.
func (c *Client) Rescan(ctx context.Context, versionID string, tier assets.Tier, signature []byte) (*publish.Result, error) {
	body := map[string]any{"tier": tier, "signature": signature}
	return c.pipelineCall(ctx, "/api/v1/versions/"+versionID+"/rescan", body)
}

// pipelineCall posts to a publish-pipeline endpoint and decodes either a plain
// result or the gate-failure envelope that wraps one.
func (c *Client) pipelineCall(ctx context.Context, path string, reqBody any) (*publish.Result, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.actor != "" {
		httpReq.Header.Set("X-Bazaar-Actor", c.actor)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
			Result *publish.Result `json:"result"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
			return envelope.Result, fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return nil, fmt.Errorf("registry returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result publish.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// SearchAssets lists catalog assets with optional filters.
func (c *Client) SearchAssets(ctx context.Context, params url.Values) ([]*assets.Asset, error) {
	var out struct {
		Assets []*assets.Asset `json:"assets"`
	}
	path := "/api/v1/assets"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Assets, nil
}

// GetVersion fetches a single version by ID.
func (c *Client) GetVersion(ctx context.Context, versionID string) (*assets.Version, error) {
	var out assets.Version
	if err := c.do(ctx, http.MethodGet, "/api/v1/versions/"+versionID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListVersions lists an asset's versions.
func (c *Client) ListVersions(ctx context.Context, assetID string) ([]*assets.Version, error) {
	var out struct {
		Versions []*assets.Version `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/assets/"+assetID+"/versions", nil, &out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

// ScanResults fetches a version's gate results.
func (c *Client) ScanResults(ctx context.Context, versionID string) ([]*gatesResult, error) {
	var out struct {
		Results []*gatesResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/versions/"+versionID+"/scans", nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// gatesResult mirrors the scan result wire shape for display.
type gatesResult struct {
	Gate    string `json:"gate"`
	Verdict string `json:"verdict"`
	Error   string `json:"error,omitempty"`
}

// Install requests an install; the returned result carries the snapshot for
// local materialization.
func (c *Client) Install(ctx context.Context, projectID, versionID string) (*install.Result, error) {
	body := map[string]string{"project_id": projectID, "version_id": versionID}
	var out install.Result
	if err := c.do(ctx, http.MethodPost, "/api/v1/installations", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPendingReviews lists the review queue.
func (c *Client) ListPendingReviews(ctx context.Context, tenantID string) ([]*assets.ReviewRecord, error) {
	var out struct {
		Reviews []*assets.ReviewRecord `json:"reviews"`
	}
	path := "/api/v1/reviews"
	if tenantID != "" {
		path += "?tenant_id=" + url.QueryEscape(tenantID)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Reviews, nil
}

// Decide records a review decision.
func (c *Client) Decide(ctx context.Context, reviewID int64, decision assets.ReviewDecision, rationale string) (*assets.ReviewRecord, error) {
	body := map[string]any{"decision": decision, "rationale": rationale}
	var out assets.ReviewRecord
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/reviews/%d/decision", reviewID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncStatus fetches a tenant's watermarks and backlogs.
func (c *Client) SyncStatus(ctx context.Context, tenantID string) (*federation.SyncStatus, error) {
	var out federation.SyncStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/federation/status?tenant_id="+url.QueryEscape(tenantID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Promote triggers a promote cycle.
func (c *Client) Promote(ctx context.Context, tenantID string) (*federation.Report, error) {
	var out federation.Report
	err := c.do(ctx, http.MethodPost, "/api/v1/federation/promote", map[string]string{"tenant_id": tenantID}, &out)
	return &out, err
}

// Pull triggers a pull cycle at the given impact level.
func (c *Client) Pull(ctx context.Context, tenantID, level string) (*federation.Report, error) {
	var out federation.Report
	err := c.do(ctx, http.MethodPost, "/api/v1/federation/pull",
		map[string]string{"tenant_id": tenantID, "level": level}, &out)
	return &out, err
}

// Ack advances the pull watermark.
func (c *Client) Ack(ctx context.Context, tenantID string, seq int64) error {
	return c.do(ctx, http.MethodPost, "/api/v1/federation/ack",
		map[string]any{"tenant_id": tenantID, "seq": seq}, nil)
}

// ProvenanceReport fetches a version's chain.
func (c *Client) ProvenanceReport(ctx context.Context, versionID string) ([]*provenance.Record, error) {
	var out struct {
		Chain []*provenance.Record `json:"chain"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/versions/"+versionID+"/provenance", nil, &out); err != nil {
		return nil, err
	}
	return out.Chain, nil
}

// ProvenanceVerify verifies a version's chain server-side.
func (c *Client) ProvenanceVerify(ctx context.Context, versionID string) (*provenance.VerifyResult, error) {
	var out provenance.VerifyResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/versions/"+versionID+"/provenance/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Deprecate retires an approved version.
func (c *Client) Deprecate(ctx context.Context, versionID string) (*assets.Version, error) {
	var out assets.Version
	if err := c.do(ctx, http.MethodPost, "/api/v1/versions/"+versionID+"/deprecate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CaptureSnapshot captures a local directory for publication.
func CaptureSnapshot(dir string) (*storage.Snapshot, error) {
	return storage.CaptureDir(dir)
}
