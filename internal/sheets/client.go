// Package sheets holds the spreadsheet credentials and a read-only probe of
// the configured range.
package sheets

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
)

const (
	DefaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"
	defaultTimeout = 10 * time.Second
)

// ErrNotConfigured indicates the spreadsheet id or api key is missing.
var ErrNotConfigured = errors.New("sheets: credentials not configured")

// Config carries the spreadsheet credentials.
type Config struct {
	BaseURL       string
	SpreadsheetID string
	Range         string
	APIKey        string
	Timeout       time.Duration
}

// Configured reports whether the probe can run.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.SpreadsheetID) != "" && strings.TrimSpace(c.APIKey) != ""
}

// ProbeResult summarises the configured range.
type ProbeResult struct {
	SpreadsheetID  string    `json:"spreadsheet_id"`
	Range          string    `json:"range"`
	MajorDimension string    `json:"major_dimension,omitempty"`
	Rows           int       `json:"rows"`
	Columns        int       `json:"columns"`
	CheckedAt      time.Time `json:"checked_at"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sheets: status %d: %s", e.StatusCode, e.Message)
}

type valuesResponse struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]any    `json:"values"`
	Error          *apiStatus `json:"error,omitempty"`
}

type apiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client probes the values endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

// NewClient builds a probe client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Range == "" {
		cfg.Range = "A1:Z1000"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient, now: time.Now}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.Configured()
}

func (c *Client) valuesURL() string {
	return fmt.Sprintf("%s/%s/values/%s?key=%s",
		c.cfg.BaseURL,
		url.PathEscape(c.cfg.SpreadsheetID),
		url.PathEscape(c.cfg.Range),
		url.QueryEscape(c.cfg.APIKey),
	)
}

// Probe fetches the configured range and reports its dimensions.
func (c *Client) Probe(ctx context.Context) (ProbeResult, error) {
	if !c.Configured() {
		return ProbeResult{}, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.valuesURL(), nil)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("sheets: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("sheets: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return ProbeResult{}, fmt.Errorf("sheets: read body: %w", err)
	}

	var payload valuesResponse
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && payload.Error != nil && payload.Error.Message != "" {
			msg = payload.Error.Message
		}
		return ProbeResult{}, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return ProbeResult{}, fmt.Errorf("sheets: decode response: %w", decodeErr)
	}

	result := ProbeResult{
		SpreadsheetID:  c.cfg.SpreadsheetID,
		Range:          payload.Range,
		MajorDimension: payload.MajorDimension,
		Rows:           len(payload.Values),
		CheckedAt:      c.now().UTC(),
	}
	if result.Range == "" {
		result.Range = c.cfg.Range
	}
	for _, row := range payload.Values {
		if len(row) > result.Columns {
			result.Columns = len(row)
		}
	}
	return result, nil
}
