// Package client is a thin HTTP client for the agknow API, for Go services
// that consume agricultural knowledge search without speaking MCP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agknow: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// Client talks to an agknow server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search queries the knowledge base.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	var resp SearchResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/search", req, &resp)
	return resp, err
}

// PesticideInfo looks up the pre-harvest interval for a chemical,
// optionally narrowed to a crop.
func (c *Client) PesticideInfo(ctx context.Context, chemical, crop string) (PesticideResponse, error) {
	var resp PesticideResponse
	body := map[string]string{"chemical": chemical}
	if crop != "" {
		body["crop"] = crop
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/search/pesticide", body, &resp)
	return resp, err
}

// CropProtection recommends protection measures for a crop.
func (c *Client) CropProtection(ctx context.Context, crop, problem string) (ProtectionResponse, error) {
	var resp ProtectionResponse
	body := map[string]string{"crop": crop}
	if problem != "" {
		body["problem"] = problem
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/search/protection", body, &resp)
	return resp, err
}

// HierarchyQuery runs a tiered context query.
func (c *Client) HierarchyQuery(ctx context.Context, req HierarchyRequest) (HierarchyResponse, error) {
	var resp HierarchyResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/hierarchy/query", req, &resp)
	return resp, err
}

// AddDocument stores one document and returns it as indexed.
func (c *Client) AddDocument(ctx context.Context, doc Document) (Document, error) {
	var resp Document
	err := c.do(ctx, http.MethodPost, "/api/v1/documents", doc, &resp)
	return resp, err
}

// BulkIndex stores many documents in one call. Per-document failures are
// reported in the response, not as an error.
func (c *Client) BulkIndex(ctx context.Context, docs []Document) (BulkResponse, error) {
	var resp BulkResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/documents/bulk", map[string]any{"documents": docs}, &resp)
	return resp, err
}

// GetDocument fetches one document by ID.
func (c *Client) GetDocument(ctx context.Context, id string) (Document, error) {
	var resp Document
	err := c.do(ctx, http.MethodGet, "/api/v1/documents/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// DeleteDocument removes one document by ID.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/documents/"+url.PathEscape(id), nil, nil)
}

// ListDocuments fetches one page of documents. An empty cursor starts from
// the beginning; limit 0 uses the server default.
func (c *Client) ListDocuments(ctx context.Context, cursor string, limit int) (DocumentList, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/documents"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp DocumentList
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Usage fetches the embedding usage report. Period is "day" or "month";
// empty defaults to day.
func (c *Client) Usage(ctx context.Context, period string) (UsageReport, error) {
	path := "/api/v1/usage"
	if period != "" {
		path += "?period=" + url.QueryEscape(period)
	}

	var resp UsageReport
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Health fetches the service health summary. A degraded service answers
// with 503 but still carries the report, so that is not an error here.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	var report HealthReport

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return report, fmt.Errorf("agknow: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return report, fmt.Errorf("agknow: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return report, parseAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return report, fmt.Errorf("agknow: decode response: %w", err)
	}
	return report, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("agknow: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("agknow: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("agknow: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("agknow: decode response: %w", err)
	}
	return nil
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var wire struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err == nil && wire.Code != "" {
		apiErr.Code = wire.Code
		apiErr.Message = wire.Message
	} else {
		apiErr.Code = "unknown"
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
