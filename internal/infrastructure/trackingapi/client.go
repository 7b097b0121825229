// Package trackingapi is the HTTP client of the remote tracking backend.
package trackingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
)

// maxErrorBody bounds how much of an error response is kept for the message.
const maxErrorBody = 512

// Config holds the endpoint settings.
type Config struct {
	BaseURL string
	// Token is sent as a bearer token when non-empty.
	Token string
	// Timeout bounds each request.
	Timeout time.Duration
}

// Client implements ports.TrackingAPI over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient returns a client for cfg.BaseURL.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ ports.TrackingAPI = (*Client)(nil)

type locationBody struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Speed     *float64  `json:"speed"`
	Heading   *float64  `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
}

type trackingBody struct {
	Status      domain.DeliveryStatus `json:"status"`
	Message     string                `json:"message"`
	Location    locationBody          `json:"location"`
	IsAutomatic bool                  `json:"isAutomatic"`
}

type deliveryResponse struct {
	Delivery struct {
		Status domain.DeliveryStatus `json:"status"`
	} `json:"delivery"`
}

// SendTracking posts one tracking update. Any transport error or non-2xx
// response wraps domain.ErrTransmissionFailed.
func (c *Client) SendTracking(ctx context.Context, u ports.TrackingUpdate) error {
	body, err := json.Marshal(trackingBody{
		Status:  u.Status,
		Message: u.Message,
		Location: locationBody{
			Latitude:  u.Location.Latitude,
			Longitude: u.Location.Longitude,
			Accuracy:  u.Location.Accuracy,
			Speed:     u.Location.Speed,
			Heading:   u.Location.Heading,
			Timestamp: u.Location.Timestamp,
		},
		IsAutomatic: u.IsAutomatic,
	})
	if err != nil {
		return fmt.Errorf("encode tracking update: %w", err)
	}

	path := "/deliveries/" + url.PathEscape(u.DeliveryID) + "/tracking"
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransmissionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("POST %s: %w: %s", path, domain.ErrTransmissionFailed, responseError(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// DeliveryStatus fetches the current status of a delivery.
func (c *Client) DeliveryStatus(ctx context.Context, deliveryID string) (domain.DeliveryStatus, error) {
	path := "/deliveries/" + url.PathEscape(deliveryID)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("GET %s: %w", path, domain.ErrDeliveryNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("GET %s: %s", path, responseError(resp))
	}

	var out deliveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("GET %s: decode: %w", path, err)
	}
	if !out.Delivery.Status.Known() {
		return "", fmt.Errorf("GET %s: unknown delivery status %q", path, out.Delivery.Status)
	}
	return out.Delivery.Status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// responseError summarizes a failed response, preferring the {"error": ...}
// envelope of the ingest endpoint.
func responseError(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var env struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil && env.Error != "" {
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, env.Error)
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
