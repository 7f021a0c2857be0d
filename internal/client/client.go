// Package client is the typed HTTP client used by kiosks and dashboard
// watchers to reach the check-in server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"church-checkin/internal/auth"
	"church-checkin/internal/models"
)

// StatusError is returned for a non-2xx response
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("server returned HTTP %d: %s", e.Status, e.Message)
}

// Client talks to the check-in server
type Client struct {
	baseURL    string
	token      string
	station    string
	httpClient *http.Client
	reads      *retryablehttp.Client
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithStation names the scanning station reported with each check-in
func WithStation(station string) Option {
	return func(c *Client) {
		c.station = station
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
		c.reads.HTTPClient.Timeout = timeout
	}
}

// WithReadRetries sets how often idempotent reads are retried
func WithReadRetries(retries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.reads.RetryMax = retries
		c.reads.RetryWaitMin = waitMin
		c.reads.RetryWaitMax = waitMax
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.reads.Logger = logger.With("component", "client")
	}
}

func New(baseURL string, opts ...Option) *Client {
	reads := retryablehttp.NewClient()
	reads.Logger = nil
	reads.RetryMax = 2
	// Hand the final response back so its status is reported as a StatusError
	reads.ErrorHandler = retryablehttp.PassthroughErrorHandler
	reads.HTTPClient.Timeout = 10 * time.Second

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		reads:      reads,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token, e.g. after Login
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login exchanges a role secret for a session token and keeps it for later calls
func (c *Client) Login(ctx context.Context, role auth.Role, secret string) (time.Time, error) {
	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	body := map[string]string{"role": string(role), "secret": secret}
	if err := c.post(ctx, "/api/auth/login", body, &resp); err != nil {
		return time.Time{}, err
	}
	c.token = resp.Token
	return resp.ExpiresAt, nil
}

// CheckIn submits a scanned code. Not found and already recorded come back as
// results; transport failures and non-2xx statuses as errors. Check-ins are
// never retried.
func (c *Client) CheckIn(ctx context.Context, code string) (*models.CheckInResult, error) {
	var result models.CheckInResult
	req := models.CheckInRequest{Code: code, Station: c.station}
	if err := c.post(ctx, "/api/checkin", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Dashboard fetches the aggregate view of a service day. An empty date means
// today on the server.
func (c *Client) Dashboard(ctx context.Context, page int, date string) (*models.DashboardStats, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if date != "" {
		query.Set("date", date)
	}
	path := "/api/dashboard"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req.Header)

	resp, err := c.reads.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dashboard: %w", err)
	}
	defer resp.Body.Close()

	var stats models.DashboardStats
	if err := decode(resp, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}

func decode(resp *http.Response, out any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &errBody)
		return &StatusError{Status: resp.StatusCode, Message: errBody.Error}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
