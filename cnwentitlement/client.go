package cnwentitlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20 // 1 MB
)

// CloudClient fetches license tokens from the license cloud HTTP API.
type CloudClient struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration // applied after all options
	userAgent  string
}

// NewCloudClient creates a new client for the license cloud.
// serverURL is the base URL (e.g. "https://cloud.example.com").
// apiKey is the X-API-Key used for authentication.
func NewCloudClient(serverURL, apiKey string, opts ...ClientOption) *CloudClient {
	c := &CloudClient{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		timeout:   defaultTimeout,
		userAgent: "cnw-entitlement-sdk-go/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	// If no custom HTTP client was provided, create one.
	// Apply timeout after all options so ordering doesn't matter.
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	c.httpClient.Timeout = c.timeout
	return c
}

// NewCloudClientFromConfig creates a client from cfg, or returns nil when no
// cloud URL is configured.
func NewCloudClientFromConfig(cfg CloudConfig, opts ...ClientOption) *CloudClient {
	if cfg.URL == "" {
		return nil
	}
	if cfg.Timeout > 0 {
		opts = append([]ClientOption{WithTimeout(cfg.Timeout)}, opts...)
	}
	return NewCloudClient(cfg.URL, cfg.APIKey, opts...)
}

type fetchLicenseRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

type fetchLicenseResponse struct {
	License string `json:"license"`
}

// FetchLicense returns the current license token of a workspace.
// The server wraps the response in {data: ...}.
func (c *CloudClient) FetchLicense(ctx context.Context, workspaceID string) (string, error) {
	var wrapper struct {
		Data fetchLicenseResponse `json:"data"`
	}
	if err := c.doJSON(ctx, "/v1/license", fetchLicenseRequest{WorkspaceID: workspaceID}, &wrapper); err != nil {
		return "", err
	}
	if wrapper.Data.License == "" {
		return "", ErrLicenseNotFound
	}
	return wrapper.Data.License, nil
}

// doJSON performs a POST request with JSON body and decodes the response into dest.
// On non-2xx responses, it parses the server error format and returns a mapped error.
func (c *CloudClient) doJSON(ctx context.Context, path string, body, dest interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return c.parseError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseError parses the server error response format:
// {"error": {"code": "...", "message": "..."}}
func (c *CloudClient) parseError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return &ServerError{
			StatusCode: statusCode,
			Code:       "UNKNOWN",
			Message:    string(body),
		}
	}
	se := &ServerError{
		StatusCode: statusCode,
		Code:       errResp.Error.Code,
		Message:    errResp.Error.Message,
	}
	return mapServerError(se)
}
