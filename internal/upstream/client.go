// Package upstream is the HTTP client for the remote Alpha-Boost service.
// It forwards calls, re-adding the caller identity header, and maps
// transport and protocol problems to backend.Failure values.
package upstream

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
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alphaboost/console/internal/backend"
	"github.com/alphaboost/console/internal/metrics"
	"github.com/alphaboost/console/internal/model"
	"github.com/alphaboost/console/internal/portfolio"
)

// DefaultBaseURL is the hosted Alpha-Boost service.
const DefaultBaseURL = "https://alpha-boost-service-tbmfdv7fhq-uc.a.run.app"

// detailsLimit caps how much of an unparseable body is echoed back.
const detailsLimit = 100

// ErrNoTicker is returned when GetPrediction is called with an empty ticker.
var ErrNoTicker = errors.New("upstream: ticker is required")

// Client talks to one Alpha-Boost compatible HTTP API. It never retries.
type Client struct {
	baseURL        string
	http           *http.Client
	limiter        *rate.Limiter
	identityHeader string
	headers        http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit throttles outbound calls to rps with the given burst.
// rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithIdentityHeader sets the header that carries the app name. The
// remote service reads User-Agent; the console gateway reads X-App-Name.
func WithIdentityHeader(name string) Option {
	return func(c *Client) { c.identityHeader = name }
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{Timeout: 10 * time.Second},
		identityHeader: "User-Agent",
		headers:        make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ backend.Backend = (*Client)(nil)

// Do sends one request and decodes a successful JSON response into out.
// body, when non-nil, is sent as JSON. out may be nil.
func (c *Client) Do(ctx context.Context, method, path, app string, body, out any) error {
	start := time.Now()
	status, err := c.do(ctx, method, path, app, body, out)
	metrics.UpstreamLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if f, ok := backend.AsFailure(err); ok {
		outcome = string(f.Kind)
		status = f.Status
	}
	metrics.UpstreamRequests.WithLabelValues(method, outcome, strconv.Itoa(status)).Inc()
	return err
}

func (c *Client) do(ctx context.Context, method, path, app string, body, out any) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, unavailable(err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("upstream: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("upstream: build request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if app == "" {
		app = "unknown"
	}
	req.Header.Set(c.identityHeader, app)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, unavailable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, unavailable(err)
	}

	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, &backend.Failure{
			Kind:   backend.KindEmptyResponse,
			Status: http.StatusBadGateway,
		}
	}
	if !json.Valid(raw) {
		return resp.StatusCode, invalidJSON(raw)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, &backend.Failure{
			Kind:    backend.KindUpstream,
			Message: errorMessage(raw),
			Status:  resp.StatusCode,
			Body:    raw,
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, invalidJSON(raw)
		}
	}
	return resp.StatusCode, nil
}

func unavailable(err error) *backend.Failure {
	return &backend.Failure{
		Kind:    backend.KindUnavailable,
		Message: err.Error(),
		Status:  http.StatusServiceUnavailable,
	}
}

func invalidJSON(raw []byte) *backend.Failure {
	return &backend.Failure{
		Kind:    backend.KindInvalidJSON,
		Message: truncate(string(raw), detailsLimit),
		Status:  http.StatusBadGateway,
	}
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// errorMessage pulls the "error" field out of an upstream error body.
func errorMessage(raw []byte) string {
	var body backend.ErrorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.Error
}

func (c *Client) RegisterApp(ctx context.Context, app string) (*model.AppRegistration, error) {
	var out model.AppRegistration
	if err := c.Do(ctx, http.MethodPost, "/apps", app, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteApp(ctx context.Context, app string) (*model.AppDeletion, error) {
	var out model.AppDeletion
	if err := c.Do(ctx, http.MethodDelete, "/apps", app, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, app string, req model.TransactionRequest) (*model.TransactionCreated, error) {
	var out model.TransactionCreated
	if err := c.Do(ctx, http.MethodPost, "/apps/transactions", app, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTransactions(ctx context.Context, app string) (*model.TransactionList, error) {
	var out model.TransactionList
	if err := c.Do(ctx, http.MethodGet, "/apps/transactions", app, nil, &out); err != nil {
		return nil, err
	}
	if out.Transactions == nil {
		out.Transactions = []model.Transaction{}
	}
	return &out, nil
}

func (c *Client) GetPrediction(ctx context.Context, app, ticker string) (*model.Prediction, error) {
	if ticker == "" {
		return nil, ErrNoTicker
	}
	var out model.Prediction
	if err := c.Do(ctx, http.MethodGet, "/predictions/"+url.PathEscape(ticker), app, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MostTradedSymbol has no remote endpoint; it is derived from the
// transaction list.
func (c *Client) MostTradedSymbol(ctx context.Context, app string) (*model.Popularity, error) {
	list, err := c.ListTransactions(ctx, app)
	if err != nil {
		return nil, err
	}
	return portfolio.MostTraded(list.Transactions), nil
}
