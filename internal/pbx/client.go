// Package pbx talks to the telephony vendor's reporting API.
package pbx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/charlesng35/veloigp/internal/models"
	"github.com/charlesng35/veloigp/pkg/logger"
)

const (
	defaultTimeout         = 15 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
	maxBodyBytes           = 8 << 20
	reportPathFormat       = "/%s/%s/all_queues/all_numbers/all_agent/report_01"
)

var (
	// ErrNotConfigured indicates the API token or base URL is missing.
	ErrNotConfigured = errors.New("pbx: api token not configured")
	// ErrTimeout indicates the request was aborted after the configured timeout.
	ErrTimeout = errors.New("pbx: request timed out")
	// ErrInvalidPayload indicates the vendor answered with something that is not JSON.
	ErrInvalidPayload = errors.New("pbx: response is not valid json")

	errCallerDone = errors.New("pbx: request abandoned by caller")
)

// HTTPError captures unexpected status codes and response bodies.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("pbx: unexpected status code %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// Config describes how to reach the reporting endpoint.
type Config struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration
	UserAgent       string
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client fetches PBX reports with bearer authentication, a per-request timeout
// and a circuit breaker that short-circuits calls while the vendor is failing.
type Client struct {
	cfg     Config
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     *zap.Logger
}

// Option customises a Client.
type Option func(*clientOptions)

type clientOptions struct {
	transport http.RoundTripper
}

// WithTransport sets the underlying round tripper, e.g. an httptest server's.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) {
		o.transport = rt
	}
}

// NewClient validates cfg and builds a client. A missing token is not an error;
// the client then reports Configured() == false and FetchReport returns ErrNotConfigured.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	options := clientOptions{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&options)
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaultBreakerCooldown
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "veloigp/1.0"
	}

	var base *url.URL
	if cfg.BaseURL != "" {
		parsed, err := url.Parse(cfg.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("pbx: invalid base url %q", cfg.BaseURL)
		}
		base = parsed
	}

	log := logger.WithModule("pbx")
	client := &Client{
		cfg:  cfg,
		base: base,
		log:  log,
		http: &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
				Base:   options.transport,
			},
		},
	}

	failures := cfg.BreakerFailures
	client.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "pbx-report",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, errCallerDone) {
				return true
			}
			// Client errors are our fault, not a vendor outage.
			var httpErr *HTTPError
			if errors.As(err, &httpErr) {
				return httpErr.StatusCode < http.StatusInternalServerError
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return client, nil
}

// Configured reports whether both base URL and token are present.
func (c *Client) Configured() bool {
	return c != nil && c.base != nil && c.cfg.Token != ""
}

// BreakerState exposes the circuit breaker state for health reporting.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// ReportURL renders the report endpoint for the given date range.
func (c *Client) ReportURL(start, end time.Time) string {
	if c == nil || c.base == nil {
		return ""
	}
	return c.cfg.BaseURL + fmt.Sprintf(reportPathFormat, start.Format(time.DateOnly), end.Format(time.DateOnly))
}

// FetchReport retrieves the raw report for [start, end].
func (c *Client) FetchReport(ctx context.Context, start, end time.Time) (models.Report, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.get(ctx, c.ReportURL(start, end))
	})
	if err != nil {
		return nil, err
	}
	return models.Report(body), nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("pbx: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerDone, ctx.Err())
		}
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.cfg.Timeout)
		}
		return nil, fmt.Errorf("pbx: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerDone, ctx.Err())
		}
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w while reading body", ErrTimeout)
		}
		return nil, fmt.Errorf("pbx: read body: %w", err)
	}

	c.log.Debug("report fetched",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	if !json.Valid(body) {
		return nil, ErrInvalidPayload
	}
	return body, nil
}
