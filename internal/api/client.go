// Package api fetches raw company research payloads from the upstream REST API.
//
// Payloads are returned undecoded into Go types: JSON objects become
// map[string]any and numbers stay json.Number, so the reconciler sees exactly
// what the backend sent.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"frc-research/internal/errors"
	"frc-research/internal/logging"
	"frc-research/internal/resilience"
	"frc-research/pkg/utils"
)

const (
	// DefaultTimeout bounds each upstream request.
	DefaultTimeout = 15 * time.Second

	// DefaultRateLimit is the default request rate (requests per second).
	DefaultRateLimit = 5

	// maxErrorBody caps how much of an error response is kept for logs.
	maxErrorBody = 512
)

// Endpoint kinds.
const (
	KindCompany  = "company"
	KindChart    = "chart"
	KindMetrics  = "metrics"
	KindAnalysis = "analysis"
)

// DefaultEndpoints maps each kind to its path template. {ticker} is replaced with
// the escaped ticker.
func DefaultEndpoints() map[string]string {
	return map[string]string{
		KindCompany:  "/companies/{ticker}",
		KindChart:    "/companies/{ticker}/chart",
		KindMetrics:  "/companies/{ticker}/metrics",
		KindAnalysis: "/companies/{ticker}/analysis",
	}
}

// Client is a research API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	tokens     oauth2.TokenSource
	limiter    *rate.Limiter
	endpoints  map[string]string
	retry      utils.RetryConfig
	breakers   *resilience.Registry
	logger     zerolog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTokenSource attaches a bearer token from ts to every request.
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithStaticToken is WithTokenSource for a fixed token. An empty token is ignored.
func WithStaticToken(token string) ClientOption {
	return func(c *Client) {
		if token != "" {
			c.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		}
	}
}

// WithRateLimit sets a custom rate limit. Zero or less disables pacing.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithEndpoint overrides the path template of one endpoint kind.
func WithEndpoint(kind, template string) ClientOption {
	return func(c *Client) {
		if template != "" {
			c.endpoints[kind] = template
		}
	}
}

// WithRetry sets the retry policy. Only transport failures are retried.
func WithRetry(cfg utils.RetryConfig) ClientOption {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithCircuitBreaker sets the breaker configuration used per endpoint kind.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) ClientOption {
	return func(c *Client) {
		c.breakers = resilience.NewRegistry(cfg)
	}
}

// WithLogger sets a logger.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new research API client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.NewValidationError("api.base_url", baseURL, "must be an absolute URL")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		endpoints:  DefaultEndpoints(),
		retry:      utils.DefaultRetryConfig(),
		breakers:   resilience.NewRegistry(resilience.DefaultCircuitBreakerConfig()),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.Retryable = retryable

	return c, nil
}

// FetchCompany returns the raw company payload. A 404 returns errors.ErrNotFound.
func (c *Client) FetchCompany(ctx context.Context, ticker string) (any, error) {
	return c.fetch(ctx, KindCompany, ticker)
}

// FetchChart returns the raw chart payload.
func (c *Client) FetchChart(ctx context.Context, ticker string) (any, error) {
	return c.fetch(ctx, KindChart, ticker)
}

// FetchMetrics returns the raw metrics payload.
func (c *Client) FetchMetrics(ctx context.Context, ticker string) (any, error) {
	return c.fetch(ctx, KindMetrics, ticker)
}

// FetchAnalysis returns the raw analysis payload.
func (c *Client) FetchAnalysis(ctx context.Context, ticker string) (any, error) {
	return c.fetch(ctx, KindAnalysis, ticker)
}

// BreakerStats reports the state of each endpoint's circuit breaker.
func (c *Client) BreakerStats() []resilience.CircuitBreakerStats {
	return c.breakers.AllStats()
}

// Healthy reports whether every endpoint's circuit is closed or half open.
func (c *Client) Healthy() bool {
	return c.breakers.Healthy()
}

func (c *Client) fetch(ctx context.Context, kind, ticker string) (any, error) {
	endpoint, err := c.endpoint(kind, ticker)
	if err != nil {
		return nil, err
	}

	cb := c.breakers.Get(kind)
	v, err := utils.RetryWithResult(ctx, c.retry, func() (any, error) {
		return resilience.ExecuteWithResult(cb, ctx, func() (any, error) {
			return c.get(ctx, kind, ticker, endpoint)
		})
	})
	if err != nil && !errors.IsNotFound(err) && !errors.IsTransport(err) {
		// Open circuits and cancelled contexts still mean the data did not arrive.
		return nil, errors.NewTransportError(kind, ticker, endpoint, 0, err)
	}
	return v, err
}

// retryable limits retries to transport failures the breaker has not rejected.
func retryable(err error) bool {
	return errors.IsTransport(err) && !errors.Is(err, errors.ErrCircuitOpen)
}

func (c *Client) endpoint(kind, ticker string) (string, error) {
	tmpl, ok := c.endpoints[kind]
	if !ok {
		return "", errors.NewTransportError(kind, ticker, "", 0, fmt.Errorf("no endpoint configured"))
	}
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return "", errors.NewValidationError("ticker", ticker, "must not be empty")
	}
	return strings.ReplaceAll(tmpl, "{ticker}", url.PathEscape(ticker)), nil
}

// get performs a GET request and decodes the JSON body.
func (c *Client) get(ctx context.Context, kind, ticker, endpoint string) (result any, err error) {
	start := time.Now()
	status := 0
	defer func() {
		logging.LogAPICall(c.logger, http.MethodGet, endpoint, status, time.Since(start), err)
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.NewTransportError(kind, ticker, endpoint, 0, errors.Wrap(errors.ErrRateLimited, err.Error()))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, errors.NewTransportError(kind, ticker, endpoint, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, errors.NewTransportError(kind, ticker, endpoint, 0, errors.Wrap(err, "obtain credentials"))
		}
		tok.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(kind, ticker, endpoint, 0, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(errors.ErrNotFound, "%s %s", kind, ticker)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		cause := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests {
			cause = errors.Wrap(errors.ErrRateLimited, cause.Error())
		}
		return nil, errors.NewTransportError(kind, ticker, endpoint, resp.StatusCode, cause)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.NewTransportError(kind, ticker, endpoint, resp.StatusCode, errors.Wrap(err, "decode response"))
	}
	return result, nil
}
