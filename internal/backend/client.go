// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

// Package backend is the HTTP client for the upstream recommendation
// backend. Both endpoint families live behind one base URL: the ML family
// (/ml/*, /personalize/*) and the SQL analytics family (/analytics/*).
// The ML family is guarded by a circuit breaker; the SQL family is the
// fallback of last resort and stays unguarded.
package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/davech88/reclens/internal/config"
	"github.com/davech88/reclens/internal/metrics"
	"github.com/davech88/reclens/internal/orchestrate"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics. Prevents unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024 // 64KB

type tokenContextKey struct{}

// ContextWithToken attaches a per-request bearer token. It takes
// precedence over the statically configured service token, so dashboard
// sessions reach the backend with their own credentials.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the per-request bearer token, if any.
func TokenFromContext(ctx context.Context) string {
	if token, ok := ctx.Value(tokenContextKey{}).(string); ok {
		return token
	}
	return ""
}

// Client handles communication with the upstream backend HTTP API.
//
// Thread safety: safe for concurrent use. Each request creates its own
// HTTP request.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  zerolog.Logger
}

// NewClient creates an upstream backend client from configuration.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewClient(cfg config.BackendConfig, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger.With().Str("component", "backend").Logger(),
	}
}

// readBodyForError reads up to maxErrorBodySize of a response body for
// error reporting.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// makeRequest performs one upstream request and decodes the JSON response
// into result. family and operation label the request metrics; raw error
// strings never reach a metric label.
func (c *Client) makeRequest(ctx context.Context, method, family, operation, path string, params url.Values, result interface{}) error {
	start := time.Now()
	err := c.doRequest(ctx, method, path, params, result)
	metrics.RecordUpstreamRequest(family, operation, time.Since(start), err)

	if err != nil {
		c.logger.Warn().
			Str("family", family).
			Str("operation", operation).
			Err(err).
			Msg("upstream request failed")
		return &orchestrate.FetchError{Family: orchestrate.Source(family), Operation: operation, Err: err}
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, result interface{}) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if token := c.bearerToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// bearerToken resolves the effective bearer token for a request.
func (c *Client) bearerToken(ctx context.Context) string {
	if token := TokenFromContext(ctx); token != "" {
		return token
	}
	return c.token
}

// timeFilterParams builds the shared time_filter query parameter set.
func timeFilterParams(timeFilter string) url.Values {
	params := url.Values{}
	if timeFilter != "" {
		params.Set("time_filter", timeFilter)
	}
	return params
}

// EngineStatus fetches GET /ml/status.
func (c *Client) EngineStatus(ctx context.Context) (orchestrate.EngineStatus, error) {
	var resp EngineStatusResponse
	if err := c.makeRequest(ctx, http.MethodGet, "ml", "status", "/ml/status", nil, &resp); err != nil {
		return orchestrate.EngineStatus{}, err
	}
	return resp.ToStatus(time.Now()), nil
}

// Train triggers POST /ml/train.
func (c *Client) Train(ctx context.Context, timeFilter string, forceRetrain bool) (*TrainResponse, error) {
	params := timeFilterParams(timeFilter)
	params.Set("force_retrain", strconv.FormatBool(forceRetrain))

	var resp TrainResponse
	if err := c.makeRequest(ctx, http.MethodPost, "ml", "train", "/ml/train", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MLCollaborativeProducts fetches GET /ml/collaborative-products.
func (c *Client) MLCollaborativeProducts(ctx context.Context, timeFilter, category string, limit int) (*ProductsResponse, error) {
	params := timeFilterParams(timeFilter)
	params.Set("use_ml", "true")
	if category != "" {
		params.Set("category", category)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp ProductsResponse
	if err := c.makeRequest(ctx, http.MethodGet, "ml", "collaborative_products", "/ml/collaborative-products", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SQLCollaborativeProducts fetches GET /analytics/collaborative-products,
// the deterministic counterpart of the ML product list.
func (c *Client) SQLCollaborativeProducts(ctx context.Context, timeFilter, category string, limit int) (*ProductsResponse, error) {
	params := timeFilterParams(timeFilter)
	if category != "" {
		params.Set("category", category)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp ProductsResponse
	if err := c.makeRequest(ctx, http.MethodGet, "sql", "collaborative_products", "/analytics/collaborative-products", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PersonalizeRecommendations fetches
// GET /personalize/recommendations/{customer_id}, the per-entity fan-out
// unit.
func (c *Client) PersonalizeRecommendations(ctx context.Context, customerID string, numResults int) (*PersonalizeResponse, error) {
	params := url.Values{}
	if numResults > 0 {
		params.Set("num_results", strconv.Itoa(numResults))
	}

	path := "/personalize/recommendations/" + url.PathEscape(customerID)
	var resp PersonalizeResponse
	if err := c.makeRequest(ctx, http.MethodGet, "ml", "personalize", path, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MLCustomerSimilarity fetches GET /ml/customer-similarity.
func (c *Client) MLCustomerSimilarity(ctx context.Context, timeFilter string, limit int) (*SimilarityResponse, error) {
	params := timeFilterParams(timeFilter)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp SimilarityResponse
	if err := c.makeRequest(ctx, http.MethodGet, "ml", "customer_similarity", "/ml/customer-similarity", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SQLCustomerSimilarity fetches GET /analytics/customer-similarity, the
// co-purchase heuristic counterpart.
func (c *Client) SQLCustomerSimilarity(ctx context.Context, timeFilter string, limit int) (*SimilarityResponse, error) {
	params := timeFilterParams(timeFilter)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp SimilarityResponse
	if err := c.makeRequest(ctx, http.MethodGet, "sql", "customer_similarity", "/analytics/customer-similarity", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RFMSegments fetches GET /ml/rfm-segments.
func (c *Client) RFMSegments(ctx context.Context, timeFilter string) (*RFMSegmentsResponse, error) {
	var resp RFMSegmentsResponse
	if err := c.makeRequest(ctx, http.MethodGet, "ml", "rfm_segments", "/ml/rfm-segments", timeFilterParams(timeFilter), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Customers fetches GET /analytics/customers, the customer group behind a
// region or segment fan-out. scope is "city", "province" or "segment".
func (c *Client) Customers(ctx context.Context, scope, name, timeFilter string) ([]orchestrate.Entity, error) {
	params := timeFilterParams(timeFilter)
	params.Set("scope", scope)
	params.Set("name", name)

	var resp CustomersResponse
	if err := c.makeRequest(ctx, http.MethodGet, "sql", "customers", "/analytics/customers", params, &resp); err != nil {
		return nil, err
	}
	return toEntities(resp.Customers), nil
}

// Dashboard fetches GET /analytics/dashboard as an opaque payload for the
// dashboard pass-through endpoint.
func (c *Client) Dashboard(ctx context.Context, timeFilter string) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.makeRequest(ctx, http.MethodGet, "sql", "dashboard", "/analytics/dashboard", timeFilterParams(timeFilter), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CollaborativeMetrics fetches GET /analytics/collaborative-metrics as an
// opaque payload.
func (c *Client) CollaborativeMetrics(ctx context.Context, timeFilter string) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.makeRequest(ctx, http.MethodGet, "sql", "collaborative_metrics", "/analytics/collaborative-metrics", timeFilterParams(timeFilter), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
