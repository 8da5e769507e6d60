package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "carrental/pkg/errors"
)

const (
	defaultRequestTimeout = 10 * time.Second
	healthPollInterval    = 500 * time.Millisecond

	headerUserID         = "X-User-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// HttpClient talks JSON to a running coordinator. UserID, when set, is sent
// as X-User-ID so per-user rate limiting applies to the caller.
type HttpClient struct {
	BaseURL    string
	UserID     string
	HTTPClient *http.Client
}

func NewHttpClient(baseURL string) *HttpClient {
	return &HttpClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

// Response keeps the fully read body so callers can decode it more than once.
type Response struct {
	*http.Response
	Body []byte
}

func (r *Response) DecodeJSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

// AppError decodes the service error envelope. ok is false for 2xx answers
// or bodies that are not an error envelope.
func (r *Response) AppError() (apperrors.ErrorResponse, bool) {
	var body apperrors.ErrorResponse
	if r.StatusCode < http.StatusBadRequest {
		return body, false
	}
	if err := r.DecodeJSON(&body); err != nil || body.Code == "" {
		return body, false
	}
	return body, true
}

func (c *HttpClient) GET(path string) (*Response, error) {
	return c.Do(context.Background(), http.MethodGet, path, nil, nil)
}

func (c *HttpClient) POST(path string, body any) (*Response, error) {
	return c.Do(context.Background(), http.MethodPost, path, body, nil)
}

func (c *HttpClient) POSTWithHeaders(path string, body any, headers map[string]string) (*Response, error) {
	return c.Do(context.Background(), http.MethodPost, path, body, headers)
}

// Do sends one request. A nil body sends no payload and no Content-Type.
func (c *HttpClient) Do(ctx context.Context, method, path string, body any, headers map[string]string) (*Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserID != "" {
		req.Header.Set(headerUserID, c.UserID)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{Response: resp, Body: respBody}, nil
}

// WaitForHealthy polls /health until it answers 200 or maxWait elapses.
func (c *HttpClient) WaitForHealthy(maxWait time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maxWait)
	defer cancel()

	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	for {
		resp, err := c.Do(ctx, http.MethodGet, "/health", nil, nil)
		if err == nil && resp.StatusCode == http.StatusOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("service did not become healthy within %v", maxWait)
		case <-ticker.C:
		}
	}
}

// GetErrorMessage renders an error response for test failure output.
func GetErrorMessage(resp *Response) string {
	body, ok := resp.AppError()
	if !ok {
		return string(resp.Body)
	}
	if field, ok := body.Details["field"]; ok {
		return fmt.Sprintf("%s: %s (field %v)", body.Code, body.Message, field)
	}
	return fmt.Sprintf("%s: %s", body.Code, body.Message)
}
