package scanclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"timeintern/internal/attendance"
)

// Client posts attendance toggles to the API from a scanning device.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the given API base URL. token is the bearer
// token of the scanning device's authenticated user.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type toggleRequest struct {
	UserID     string `json:"user_id"`
	OccurredAt int64  `json:"occurred_at"`
}

type toggleResponse struct {
	Action string            `json:"action"`
	Record attendance.Record `json:"record"`
	Error  string            `json:"error"`
}

// Toggle submits one validated scan. It is not retried on failure; the
// next rotated code produces the next attempt.
func (c *Client) Toggle(ctx context.Context, userID string, occurredAt time.Time) (string, attendance.Record, error) {
	body, err := json.Marshal(toggleRequest{UserID: userID, OccurredAt: occurredAt.UnixMilli()})
	if err != nil {
		return "", attendance.Record{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/attendance/toggle", bytes.NewReader(body))
	if err != nil {
		return "", attendance.Record{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", attendance.Record{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", attendance.Record{}, err
	}
	var parsed toggleResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", attendance.Record{}, fmt.Errorf("toggle response not parseable: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != "" {
			return "", attendance.Record{}, fmt.Errorf("toggle failed: %s", parsed.Error)
		}
		return "", attendance.Record{}, fmt.Errorf("toggle failed: status %d", resp.StatusCode)
	}
	return parsed.Action, parsed.Record, nil
}
