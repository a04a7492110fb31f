package ocrbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// Config holds OCR backend settings
type Config struct {
	BaseURL  string
	AdminKey string
}

// Client talks to the OCR backend: key issuance on the admin surface,
// extraction/history/stats on the keyed surface.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new OCR backend client
func NewClient(cfg Config, log *logger.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log,
	}
}

// WithBaseURL overrides the backend endpoint; used in tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.cfg.BaseURL = url
	return c
}

// IssuedKey is the backend's response to a key issuance request
type IssuedKey struct {
	ID     string `json:"id"`
	APIKey string `json:"api_key"`
	Name   string `json:"name,omitempty"`
}

// IssueKey requests a new API key from the backend's admin surface. The
// name is a human-readable label shown in the backend's key listing.
func (c *Client) IssueKey(ctx context.Context, name string) (IssuedKey, error) {
	if c.cfg.AdminKey == "" || c.cfg.BaseURL == "" {
		return IssuedKey{}, domain.NewExternalServiceError("ocr-backend", "config",
			"admin key or base URL not configured", 0, nil)
	}

	body, err := json.Marshal(map[string]any{
		"name":     name,
		"is_admin": false,
	})
	if err != nil {
		return IssuedKey{}, fmt.Errorf("failed to marshal key request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/admin/keys", bytes.NewReader(body))
	if err != nil {
		return IssuedKey{}, fmt.Errorf("failed to build key request: %w", err)
	}
	req.Header.Set("X-Admin-Key", c.cfg.AdminKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return IssuedKey{}, domain.NewExternalServiceError("ocr-backend", "transport", "key issuance failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return IssuedKey{}, domain.NewExternalServiceError("ocr-backend", "rejected",
			fmt.Sprintf("key issuance returned status %d", resp.StatusCode), resp.StatusCode, nil)
	}

	var key IssuedKey
	if err := json.NewDecoder(resp.Body).Decode(&key); err != nil {
		return IssuedKey{}, domain.NewExternalServiceError("ocr-backend", "decode", "invalid key response", resp.StatusCode, err)
	}
	if key.APIKey == "" {
		return IssuedKey{}, domain.NewExternalServiceError("ocr-backend", "decode", "key response missing api_key", resp.StatusCode, nil)
	}

	return key, nil
}

// ProxyResult carries a backend response verbatim back to the caller
type ProxyResult struct {
	StatusCode int
	Body       json.RawMessage
}

// Extract forwards a multipart upload to the backend's extraction
// endpoint unmodified and returns its JSON response verbatim.
func (c *Client) Extract(ctx context.Context, contentType string, body io.Reader) (ProxyResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/ocr/extract", body)
	if err != nil {
		return ProxyResult{}, fmt.Errorf("failed to build extract request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ProxyResult{}, domain.NewExternalServiceError("ocr-backend", "transport", "extract request failed", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ProxyResult{}, domain.NewExternalServiceError("ocr-backend", "transport", "failed to read extract response", resp.StatusCode, err)
	}

	return ProxyResult{StatusCode: resp.StatusCode, Body: raw}, nil
}

// History fetches the request history for an API key
func (c *Client) History(ctx context.Context, apiKey string) (json.RawMessage, error) {
	return c.keyedGet(ctx, "/api/ocr/history", apiKey)
}

// Stats fetches usage statistics for an API key
func (c *Client) Stats(ctx context.Context, apiKey string) (json.RawMessage, error) {
	return c.keyedGet(ctx, "/api/ocr/stats", apiKey)
}

// keyedGet performs a GET against the keyed surface of the backend
func (c *Client) keyedGet(ctx context.Context, path, apiKey string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewExternalServiceError("ocr-backend", "transport", "request failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewExternalServiceError("ocr-backend", "rejected",
			fmt.Sprintf("backend returned status %d", resp.StatusCode), resp.StatusCode, nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewExternalServiceError("ocr-backend", "transport", "failed to read response", resp.StatusCode, err)
	}

	return raw, nil
}
