// Package backend is the HTTP client for the processing engine's configuration backend.
//
// The backend owns config files and validation; this package only transports
// documents and decodes its replies.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/pipeconf/pipeconf/internal/conf"
	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/logger"
)

const (
	// DefaultTimeout is the default timeout for backend requests if not specified.
	DefaultTimeout = 10 * time.Second

	defaultMaxIdleConns          = 20
	defaultMaxIdleConnsPerHost   = 10
	defaultIdleConnTimeout       = 90 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultDialTimeout           = 5 * time.Second
	defaultDialKeepAlive         = 30 * time.Second

	defaultUserAgent = "pipeconf"

	// maxErrorBody bounds how much of a failed response is kept in a StatusError.
	maxErrorBody = 4096
)

// Observer is told about every completed backend call. statusCode is zero when the
// request failed before a response arrived.
type Observer func(path string, statusCode int, elapsed time.Duration)

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL        *url.URL
	client         *http.Client
	defaultTimeout time.Duration
	userAgent      string
	limiter        *rate.Limiter
	observer       Observer
	reads          singleflight.Group

	hookMu        sync.RWMutex
	beforeRequest func(*http.Request)
	afterResponse func(*http.Request, *http.Response, error)
}

// Config holds configuration for creating a backend client.
type Config struct {
	// BaseURL is the backend root, e.g. http://localhost:5005
	BaseURL string

	// DefaultTimeout is the timeout applied if request context has no deadline
	DefaultTimeout time.Duration

	// UserAgent is added to all requests
	UserAgent string

	// RateLimit caps requests per second; zero disables limiting
	RateLimit float64

	// Burst is the limiter bucket size (default: 1)
	Burst int

	// MaxIdleConnsPerHost controls the connection pool (default: 10)
	MaxIdleConnsPerHost int

	// Observer receives per-request outcomes, e.g. for metrics
	Observer Observer
}

// DefaultConfig returns a Config pointing at a local backend.
func DefaultConfig() Config {
	return Config{
		BaseURL:             "http://127.0.0.1:5005",
		DefaultTimeout:      DefaultTimeout,
		UserAgent:           defaultUserAgent,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
	}
}

// New creates a backend client. Zero values in cfg take their defaults.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf("invalid backend URL %q", cfg.BaseURL).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: defaultDialKeepAlive,
		}).DialContext,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
	}

	c := &Client{
		baseURL:        base,
		client:         &http.Client{Transport: transport},
		defaultTimeout: cfg.DefaultTimeout,
		userAgent:      cfg.UserAgent,
		observer:       cfg.Observer,
	}
	if cfg.RateLimit > 0 {
		burst := max(cfg.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// ConfigFromSettings maps the backend section of the application settings.
func ConfigFromSettings(settings *conf.Settings, observer Observer) Config {
	cfg := DefaultConfig()
	if settings.Backend.URL != "" {
		cfg.BaseURL = settings.Backend.URL
	}
	if settings.Backend.Timeout > 0 {
		cfg.DefaultTimeout = settings.Backend.Timeout
	}
	if settings.Backend.UserAgent != "" {
		cfg.UserAgent = settings.Backend.UserAgent
	}
	cfg.RateLimit = settings.Backend.RateLimit
	cfg.Burst = settings.Backend.Burst
	cfg.Observer = observer
	return cfg
}

// HTTPClient exposes the underlying client for transport mocking in tests.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// do executes req with the default timeout, rate limit and hooks applied.
// The response body must be closed by the caller if err is nil.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryNetwork).
				Context("operation", "rate_limit_wait").
				Build()
		}
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.hookMu.RLock()
	beforeHook := c.beforeRequest
	c.hookMu.RUnlock()
	if beforeHook != nil {
		beforeHook(req)
	}

	resp, err := c.client.Do(req)

	c.hookMu.RLock()
	afterHook := c.afterResponse
	c.hookMu.RUnlock()
	if afterHook != nil {
		afterHook(req, resp, err)
	}

	return resp, err
}

// request sends method to path with an optional body and returns the response body for
// any status in accepted. Other statuses become a *StatusError.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body any, accepted ...int) (int, []byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
		defer cancel()
	}

	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var bodyReader io.Reader = http.NoBody
	contentType := ""
	switch v := body.(type) {
	case nil:
	case []byte:
		bodyReader = bytes.NewReader(v)
		contentType = "text/plain; charset=utf-8"
	case string:
		bodyReader = strings.NewReader(v)
		contentType = "text/plain; charset=utf-8"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.do(ctx, req)
	if c.observer != nil {
		status := 0
		if err == nil {
			status = resp.StatusCode
		}
		c.observer(path, status, time.Since(start))
	}
	if err != nil {
		GetLogger().Warn("backend request failed",
			logger.String("method", method),
			logger.String("path", path),
			logger.Error(err))
		return 0, nil, errors.NetworkError(err, endpoint.String(), c.defaultTimeout)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errors.New(err).
			Category(errors.CategoryNetwork).
			Context("operation", "read_body").
			Build()
	}

	GetLogger().Debug("backend request",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("duration", time.Since(start)))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && len(accepted) == 0 {
		return resp.StatusCode, data, nil
	}
	for _, code := range accepted {
		if resp.StatusCode == code {
			return resp.StatusCode, data, nil
		}
	}
	return resp.StatusCode, data, newStatusError(method, path, resp.StatusCode, data)
}

// get coalesces concurrent identical GET requests into a single backend call. Callers
// joining an in-flight request share its result and the first caller's context.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	key := path + "?" + query.Encode()
	v, err, shared := c.reads.Do(key, func() (any, error) {
		_, data, err := c.request(ctx, http.MethodGet, path, query, nil)
		return data, err
	})
	if shared {
		GetLogger().Trace("backend read shared", logger.String("path", path))
	}
	data, _ := v.([]byte)
	return data, err
}

// SetBeforeRequestHook sets a function to be called before each request.
func (c *Client) SetBeforeRequestHook(fn func(*http.Request)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.beforeRequest = fn
}

// SetAfterResponseHook sets a function to be called after each request.
func (c *Client) SetAfterResponseHook(fn func(*http.Request, *http.Response, error)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.afterResponse = fn
}

// Close closes idle connections in the connection pool.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
