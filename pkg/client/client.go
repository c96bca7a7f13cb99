// Package client provides the HTTP client for the City of Chicago open-data
// portal (Socrata SODA API) with throttle awareness, optional retries and
// Prometheus instrumentation.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dsworkflows/chidata/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for upstream requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chidata_requests_total",
		Help: "Total upstream requests by resource and status",
	}, []string{"resource", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chidata_request_duration_seconds",
		Help:    "Upstream request duration in seconds by resource",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"resource"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chidata_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the SODA resource root of the Chicago data portal.
const DefaultBaseURL = "https://data.cityofchicago.org/resource/"

// maxErrorBody bounds how much of an error response is kept in TransportError.
const maxErrorBody = 4 << 10

// Config holds the client configuration.
type Config struct {
	// BaseURL is the absolute resource root; request paths resolve against it.
	BaseURL string

	// AppToken is sent as X-App-Token when set. Unauthenticated requests
	// are throttled more aggressively by the portal.
	AppToken string

	// UserAgent header (required).
	UserAgent string

	// Timeout per HTTP request. Zero means no client-side timeout.
	Timeout time.Duration

	// Retry. MaxRetries 0 disables retries.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Redis shares throttle state across processes. Optional.
	Redis *redis.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		UserAgent:      userAgent,
		Timeout:        30 * time.Second,
		MaxRetries:     0,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Client produces sessions scoped to a fixed base endpoint and default headers.
type Client struct {
	base      *url.URL
	throttle  *ratelimit.Tracker
	config    Config
	logger    zerolog.Logger
	transport http.RoundTripper
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	logger := log.With().Str("component", "open-data-client").Logger()

	return &Client{
		base:     base,
		throttle: ratelimit.NewTracker(cfg.Redis, logger),
		config:   cfg,
		logger:   logger,
	}, nil
}

// SetTransport sets the round tripper used by sessions opened afterwards.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.transport = rt
}

// Throttle returns the tracker gating requests during upstream cooldowns.
func (c *Client) Throttle() *ratelimit.Tracker {
	return c.throttle
}

// Open starts a session. The session must be closed by the caller.
func (c *Client) Open(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	transport := c.transport
	var owned *http.Transport
	if transport == nil {
		owned = http.DefaultTransport.(*http.Transport).Clone()
		transport = owned
	}

	c.logger.Debug().Str("base_url", c.base.String()).Msg("Session opened")

	return &Session{
		client: c,
		http: &http.Client{
			Transport: transport,
			Timeout:   c.config.Timeout,
		},
		owned: owned,
	}, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return nil
}

// Session is an open connection scope against the base endpoint.
type Session struct {
	client *Client
	http   *http.Client
	owned  *http.Transport
	closed bool
}

// Close releases idle connections. Calling Close twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.owned != nil {
		s.owned.CloseIdleConnections()
	}
	s.client.logger.Debug().Msg("Session closed")
	return nil
}

// Get performs a GET on path (relative to the base URL) and returns the body
// of a 2xx response. Any other outcome is a *TransportError.
func (s *Session) Get(ctx context.Context, path string, headers http.Header, params url.Values) ([]byte, error) {
	if s.closed {
		return nil, fmt.Errorf("session is closed")
	}

	c := s.client
	resource := strings.TrimPrefix(path, "/")

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(resource).Observe(time.Since(startTime).Seconds())
	}()

	allowed, err := c.throttle.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Throttle check failed")
		return nil, fmt.Errorf("throttle check: %w", err)
	}
	if !allowed {
		requestsTotal.WithLabelValues(resource, "throttled").Inc()
		return nil, &TransportError{
			ErrorClass: ErrorClassThrottled,
			Resource:   resource,
			Message:    "request blocked",
			Err:        ErrThrottled,
		}
	}

	target, err := c.resolve(resource, params)
	if err != nil {
		return nil, err
	}

	retryCfg := DefaultRetryConfig()
	retryCfg.MaxAttempts = c.config.MaxRetries + 1
	if c.config.InitialBackoff > 0 {
		retryCfg.InitialBackoff = c.config.InitialBackoff
	}
	if c.config.MaxBackoff > 0 {
		retryCfg.MaxBackoff = c.config.MaxBackoff
	}

	var body []byte
	err = retryWithBackoff(ctx, retryCfg, c.logger, func() (ErrorClass, error) {
		var attemptErr *TransportError
		body, attemptErr = s.do(ctx, resource, target, headers)
		if attemptErr != nil {
			errorsTotal.WithLabelValues(string(attemptErr.ErrorClass)).Inc()
			return attemptErr.ErrorClass, attemptErr
		}
		return "", nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// do performs one HTTP attempt.
func (s *Session) do(ctx context.Context, resource, target string, headers http.Header) ([]byte, *TransportError) {
	c := s.client

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &TransportError{ErrorClass: ErrorClassClient, Resource: resource, Message: "create request", Err: err}
	}

	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	if c.config.AppToken != "" {
		req.Header.Set("X-App-Token", c.config.AppToken)
	}

	c.logger.Debug().
		Str("resource", resource).
		Str("url", target).
		Msg("Executing upstream request")

	resp, err := s.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("resource", resource).Msg("HTTP request failed")
		requestsTotal.WithLabelValues(resource, "network_error").Inc()
		return nil, &TransportError{ErrorClass: ErrorClassNetwork, Resource: resource, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(resource, strconv.Itoa(resp.StatusCode)).Inc()

	if errClass := classifyStatus(resp.StatusCode); errClass != "" {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		if errClass == ErrorClassThrottled {
			if err := c.throttle.RecordThrottle(ctx, resp.Header); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to record throttle state")
			}
		}

		c.logger.Warn().
			Str("resource", resource).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Upstream request error")

		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Resource:   resource,
			Message:    errorMessage(resp.Status, snippet),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Resource:   resource,
			Message:    "read response body",
			Err:        err,
		}
	}

	return body, nil
}

// resolve builds the absolute request URL for a resource path and params.
func (c *Client) resolve(resource string, params url.Values) (string, error) {
	ref, err := url.Parse(resource)
	if err != nil {
		return "", fmt.Errorf("parse resource path %q: %w", resource, err)
	}
	u := c.base.ResolveReference(ref)

	if len(params) > 0 {
		q := u.Query()
		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func errorMessage(status string, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return status
	}
	return status + ": " + text
}

// IsTransportError reports whether err carries a *TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}
