// Package usage talks to the telephony provider's usage endpoint, which
// reports account-wide call metering per date window.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Statistics is the provider's usage payload. Call times are seconds.
type Statistics struct {
	TotalCalls       int64   `json:"totalCalls"`
	OutboundCalls    int64   `json:"outboundCalls"`
	InboundCalls     int64   `json:"inboundCalls"`
	TotalCallTime    float64 `json:"totalCallTime"`
	OutboundCallTime float64 `json:"outboundCallTime"`
	InboundCallTime  float64 `json:"inboundCallTime"`
}

type envelope struct {
	Statistics Statistics `json:"statistics"`
}

// Client fetches usage statistics over HTTP.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a usage client. client may be nil for a default with timeout.
func New(baseURL, token string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, token: token, client: client}
}

// statusError marks a non-2xx provider response, which is never retried.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("usage status %d: %s", e.code, e.body)
}

// Fetch returns usage statistics for [start, end] calendar dates. One retry
// is attempted on transport failure; HTTP error statuses are not retried.
func (c *Client) Fetch(ctx context.Context, start, end time.Time) (Statistics, error) {
	stats, err := c.fetchOnce(ctx, start, end)
	if err == nil {
		return stats, nil
	}
	var se *statusError
	if errors.As(err, &se) || ctx.Err() != nil {
		return Statistics{}, err
	}
	return c.fetchOnce(ctx, start, end)
}

func (c *Client) fetchOnce(ctx context.Context, start, end time.Time) (Statistics, error) {
	params := url.Values{}
	params.Set("startDate", start.Format("2006-01-02"))
	params.Set("endDate", end.Format("2006-01-02"))
	endpoint := c.baseURL + "/usage?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Statistics{}, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Statistics{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Statistics{}, &statusError{code: resp.StatusCode, body: string(b)}
	}
	var parsed envelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Statistics{}, err
	}
	return parsed.Statistics, nil
}
