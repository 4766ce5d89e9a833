// Package parcelapi is an HTTP client for the zoning REST API. It implements
// service.ParcelDataService so a map session can run against a remote server.
package parcelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/resilience"
	"github.com/sells-group/zoning-cli/internal/service"
	"github.com/sells-group/zoning-cli/internal/store"
)

// Sentinel errors matched by APIError.Is.
var (
	ErrNotFound = eris.New("parcelapi: parcels not found")
	ErrInvalid  = eris.New("parcelapi: invalid request")
	ErrConflict = eris.New("parcelapi: update rejected")
)

// APIError is a non-2xx response from the zoning API.
type APIError struct {
	StatusCode int    `json:"status"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("parcelapi: http %d", e.StatusCode)
	}
	return fmt.Sprintf("parcelapi: http %d: %s", e.StatusCode, e.Message)
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusNotFound:
		return target == ErrNotFound
	case http.StatusBadRequest:
		return target == ErrInvalid
	case http.StatusConflict:
		return target == ErrConflict
	}
	return false
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit throttles outgoing requests. Zero disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg resilience.BreakerConfig) Option {
	return func(c *Client) {
		c.breaker = resilience.NewBreaker(cfg)
	}
}

// Client talks to the zoning REST API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

var _ service.ParcelDataService = (*Client)(nil)

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(20, 20),
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAllParcels fetches every parcel with its effective zoning.
func (c *Client) GetAllParcels(ctx context.Context) ([]model.Parcel, error) {
	var parcels []model.Parcel
	if err := c.call(ctx, "get parcels", http.MethodGet, "/api/parcels", nil, &parcels); err != nil {
		return nil, err
	}
	return parcels, nil
}

// GetZoningVocabulary fetches the ordered zoning types.
func (c *Client) GetZoningVocabulary(ctx context.Context) ([]string, error) {
	var types []string
	if err := c.call(ctx, "get zoning types", http.MethodGet, "/api/zoning-types", nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// UpdateZoning re-zones ids.
func (c *Client) UpdateZoning(ctx context.Context, ids []model.ParcelID, zoningType string) error {
	body := model.ZoningUpdateRequest{ParcelIDs: ids, ZoningType: zoningType}
	return c.call(ctx, "update zoning", http.MethodPut, "/api/parcels/zoning", body, nil)
}

// GetStats summarizes ids. Empty input is answered locally.
func (c *Client) GetStats(ctx context.Context, ids []model.ParcelID) (model.StatsSummary, error) {
	if len(ids) == 0 {
		return model.EmptyStats(), nil
	}
	out := model.EmptyStats()
	if err := c.call(ctx, "get stats", http.MethodPost, "/api/stats", ids, &out); err != nil {
		return model.StatsSummary{}, err
	}
	return out, nil
}

// SimulateZoningUpdate summarizes all parcels as if ids were re-zoned.
func (c *Client) SimulateZoningUpdate(ctx context.Context, ids []model.ParcelID, zoningType string) (model.StatsSummary, error) {
	if len(ids) == 0 || zoningType == "" {
		return model.EmptyStats(), nil
	}
	body := model.ZoningUpdateRequest{ParcelIDs: ids, ZoningType: zoningType}
	out := model.EmptyStats()
	if err := c.call(ctx, "simulate zoning", http.MethodPost, "/api/stats/simulate", body, &out); err != nil {
		return model.StatsSummary{}, err
	}
	return out, nil
}

// AuditLog fetches the newest zoning audit entries.
func (c *Client) AuditLog(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	path := "/api/audit"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var entries []store.AuditEntry
	if err := c.call(ctx, "get audit log", http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Ping checks the API health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "health", http.MethodGet, "/health", nil, nil)
}

// call runs one API request through the breaker and the retry policy.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return eris.Wrapf(err, "parcelapi: %s: encode body", op)
		}
	}

	retry := c.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(op)
	}

	data, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
			return c.do(ctx, method, path, payload)
		})
	})
	if err != nil {
		return eris.Wrapf(err, "parcelapi: %s", op)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrapf(err, "parcelapi: %s: decode response", op)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limit")
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read body"), resp.StatusCode)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	apiErr.StatusCode = resp.StatusCode

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
	}
	return nil, apiErr
}
