package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/provenance"
	"github.com/platinummonkey/bazaar/pkg/storage"
)

// CentralClient is the tenant registry's view of the central registry.
type CentralClient interface {
	// PushItem transfers one promoted version to the central registry. Pushing
	// an item the central side already holds must succeed (idempotent).
	PushItem(ctx context.Context, item *Item) error

	// FetchSince returns central-tier versions past the given central promote
	// sequence, oldest-first.
	FetchSince(ctx context.Context, afterSeq int64, limit int) ([]*Item, error)
}

// LocalClient serves the central side in-process. The central deployment of
// the registry uses it directly; tests use it as a realistic central stand-in.
type LocalClient struct {
	store   catalog.Store
	content storage.ContentStore
	prov    provenance.Store
}

// NewLocalClient creates a client that reads and writes the given stores.
func NewLocalClient(store catalog.Store, content storage.ContentStore, prov provenance.Store) *LocalClient {
	return &LocalClient{store: store, content: content, prov: prov}
}

// PushItem accepts a promoted version into the central catalog.
func (c *LocalClient) PushItem(ctx context.Context, item *Item) error {
	if item.Asset == nil || item.Version == nil || item.Snapshot == nil {
		return errors.New("incomplete federation item")
	}

	if err := c.store.CreateAsset(ctx, item.Asset); err != nil && !errors.Is(err, catalog.ErrDuplicate) {
		return fmt.Errorf("failed to register asset: %w", err)
	}
	if _, err := c.content.Put(ctx, item.Snapshot); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	for _, rec := range item.Chain {
		if err := c.prov.AppendRecord(ctx, rec); err != nil {
			// Replays of an already-accepted item hit the (version, seq)
			// uniqueness; that is the idempotent path.
			continue
		}
	}

	version := *item.Version
	if err := c.store.ImportVersion(ctx, &version); err != nil {
		return fmt.Errorf("failed to import version: %w", err)
	}
	return nil
}

// FetchSince serves the central catalog's approved versions.
func (c *LocalClient) FetchSince(ctx context.Context, afterSeq int64, limit int) ([]*Item, error) {
	versions, err := c.store.ListCentralSince(ctx, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	items := make([]*Item, 0, len(versions))
	for _, v := range versions {
		asset, err := c.store.GetAsset(ctx, v.AssetID)
		if err != nil {
			return nil, err
		}
		snap, err := c.content.Get(ctx, v.ContentDigest)
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot for version %s: %w", v.ID, err)
		}
		chain, err := c.prov.ChainFor(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, &Item{
			Asset:     asset,
			Version:   v,
			Snapshot:  snap,
			Chain:     chain,
			RemoteSeq: v.PromoteSeq,
		})
	}
	return items, nil
}

// HTTPClient talks to a remote central registry's federation endpoints.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	token   string
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient overrides the underlying http client.
func WithHTTPClient(c *http.Client) HTTPClientOption {
	return func(h *HTTPClient) { h.client = c }
}

// WithToken sets the bearer token for registry-to-registry calls.
func WithToken(token string) HTTPClientOption {
	return func(h *HTTPClient) { h.token = token }
}

// NewHTTPClient creates a federation client for the central registry at
// baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
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
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to central registry failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("central registry returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// PushItem posts the item to the central registry.
func (c *HTTPClient) PushItem(ctx context.Context, item *Item) error {
	return c.do(ctx, http.MethodPost, "/api/v1/federation/items", item, nil)
}

// FetchSince fetches central items past the given sequence.
func (c *HTTPClient) FetchSince(ctx context.Context, afterSeq int64, limit int) ([]*Item, error) {
	q := url.Values{}
	q.Set("after", strconv.FormatInt(afterSeq, 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Items []*Item `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/federation/items?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}
