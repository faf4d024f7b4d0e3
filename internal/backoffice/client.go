package backoffice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stationdesk/internal/core"
	"stationdesk/internal/ports"
)

const maxErrorBody = 64 << 10

// Config holds connection settings for the back-office REST API.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the back-office REST API.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

// Ensure interface conformance
var (
	_ ports.PendingItemReader = (*Client)(nil)
	_ ports.BankAccountReader = (*Client)(nil)
	_ ports.Resolver          = (*Client)(nil)
	_ ports.HistoryReader     = (*Client)(nil)
	_ ports.ReportReader      = (*Client)(nil)
)

// New creates a REST client. BaseURL is required.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("missing backend base URL")
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend URL must be http or https, got %q", u.Scheme)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: u,
		token:   strings.TrimSpace(cfg.Token),
		http:    newHTTPClient(timeout),
	}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type historyMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	LastPage    int `json:"last_page"`
	Total       int `json:"total"`
}

type historyResponse struct {
	Data []core.SafedropResolution `json:"data"`
	Meta *historyMeta              `json:"meta,omitempty"`
}

type errorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
	// Some endpoints nest the payload the same way as successful ones.
	Data *struct {
		Message string `json:"message"`
	} `json:"data"`
}

func (c *Client) ListPendingItems(ctx context.Context) ([]core.PendingItem, error) {
	var out envelope[[]core.PendingItem]
	if err := c.do(ctx, http.MethodGet, "/safedrops/pending", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list pending items: %w", err)
	}
	return out.Data, nil
}

func (c *Client) ListBankAccounts(ctx context.Context, activeOnly bool) ([]core.BankAccount, error) {
	q := url.Values{}
	if activeOnly {
		q.Set("is_active", "1")
	}
	var out envelope[[]core.BankAccount]
	if err := c.do(ctx, http.MethodGet, "/bank-accounts", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list bank accounts: %w", err)
	}
	if activeOnly {
		// The filter is a hint on some deployments; enforce it here too.
		return core.ActiveAccounts(out.Data), nil
	}
	return out.Data, nil
}

// Resolve posts the allocations. A 2xx answer with success=false is
// reported as an APIError so callers handle a single failure path.
func (c *Client) Resolve(ctx context.Context, req core.ResolveRequest) (core.ResolveResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return core.ResolveResult{}, fmt.Errorf("encode resolve request: %w", err)
	}
	var res core.ResolveResult
	if err := c.do(ctx, http.MethodPost, "/safedrops/resolve", nil, body, &res); err != nil {
		return core.ResolveResult{}, fmt.Errorf("resolve daily sale %d: %w", req.DailySaleID, err)
	}
	if !res.Success {
		return res, fmt.Errorf("resolve daily sale %d: %w", req.DailySaleID,
			&APIError{Status: http.StatusOK, Message: res.Message})
	}
	return res, nil
}

func (c *Client) ListResolutionHistory(ctx context.Context, page, perPage int) (core.HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	var out historyResponse
	if err := c.do(ctx, http.MethodGet, "/safedrops/resolutions", q, nil, &out); err != nil {
		return core.HistoryPage{}, fmt.Errorf("list resolution history: %w", err)
	}
	hp := core.HistoryPage{Items: out.Data, Page: page, PerPage: perPage}
	if m := out.Meta; m != nil {
		if m.CurrentPage > 0 {
			hp.Page = m.CurrentPage
		}
		if m.PerPage > 0 {
			hp.PerPage = m.PerPage
		}
		hp.LastPage = m.LastPage
		hp.Total = m.Total
	}
	return hp, nil
}

func (c *Client) ListDailySales(ctx context.Context, from, to core.Date) ([]core.DailySale, error) {
	var out envelope[[]core.DailySale]
	if err := c.do(ctx, http.MethodGet, "/daily-sales", rangeQuery(from, to), nil, &out); err != nil {
		return nil, fmt.Errorf("list daily sales: %w", err)
	}
	return out.Data, nil
}

func (c *Client) ListFuelVolumes(ctx context.Context, from, to core.Date) ([]core.FuelVolume, error) {
	var out envelope[[]core.FuelVolume]
	if err := c.do(ctx, http.MethodGet, "/fuel-volumes", rangeQuery(from, to), nil, &out); err != nil {
		return nil, fmt.Errorf("list fuel volumes: %w", err)
	}
	return out.Data, nil
}

func (c *Client) ListSettlementEntries(ctx context.Context, from, to core.Date) ([]core.SettlementEntry, error) {
	var out envelope[[]core.SettlementEntry]
	if err := c.do(ctx, http.MethodGet, "/reports/settlement", rangeQuery(from, to), nil, &out); err != nil {
		return nil, fmt.Errorf("list settlement entries: %w", err)
	}
	return out.Data, nil
}

func rangeQuery(from, to core.Date) url.Values {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("from", from.String())
	}
	if !to.IsZero() {
		q.Set("to", to.String())
	}
	return q
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "Backend request failed", "method", method, "path", path, "error", err)
		return err
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload errorResponse
	if len(raw) > 0 && json.Unmarshal(raw, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" && payload.Data != nil {
			apiErr.Message = payload.Data.Message
		}
		apiErr.Errors = payload.Errors
	}
	return apiErr
}
