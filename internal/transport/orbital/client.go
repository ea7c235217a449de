// Package orbital is the HTTP client for the external billing API.
package orbital

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orbital-cloud/usagemeter/internal/domain"
	"github.com/orbital-cloud/usagemeter/internal/metrics"
)

// Endpoint labels for upstream metrics.
const (
	endpointMessages = "messages"
	endpointReport   = "report"
)

// Config holds the billing API client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client talks to the billing API over HTTP. Both endpoints surface
// non-2xx responses and decode failures as domain.ErrUpstream.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewClient creates a billing API client.
func NewClient(cfg *Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:     logger,
	}
}

// messagesResponse is the wire format of GET /messages/current-period.
type messagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

// GetMessages fetches all messages for the current billing period.
func (c *Client) GetMessages(ctx context.Context) ([]domain.Message, error) {
	var resp messagesResponse
	if err := c.getJSON(ctx, c.baseURL+"/messages/current-period", endpointMessages, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug("Fetched current-period messages", zap.Int("count", len(resp.Messages)))
	return resp.Messages, nil
}

// GetReport fetches a single report by ID.
func (c *Client) GetReport(ctx context.Context, id int64) (domain.Report, error) {
	var report domain.Report
	url := fmt.Sprintf("%s/reports/%d", c.baseURL, id)
	if err := c.getJSON(ctx, url, endpointReport, &report); err != nil {
		return domain.Report{}, err
	}
	return report, nil
}

// getJSON performs a GET request and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, url, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", url, domain.ErrUpstream)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()

	resp, err := c.httpClient.Do(req)

	duration := time.Since(start)

	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%s request failed: %v: %w", endpoint, err, domain.ErrUpstream)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s: %w",
			endpoint, resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrUpstream)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%s response decode: %v: %w", endpoint, err, domain.ErrUpstream)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "success").Inc()
	metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())

	return nil
}
