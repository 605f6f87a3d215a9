// Package apiclient is the HTTP implementation of panel.Backend against the
// dash-api service.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marketdash/dash-assistant-go/internal/panel"
)

const csrfHeader = "X-CSRF-Token"

// Client talks to the assistant API. It fetches a CSRF token lazily and
// refreshes it when the server rejects one.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu        sync.Mutex
	csrfToken string
}

// New creates a client for the API at baseURL (no trailing slash required).
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type statusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Model   string `json:"model"`
	Host    string `json:"host"`
}

type chatPayload struct {
	Question   string  `json:"question"`
	SnapshotID *string `json:"snapshot_id"`
}

type chatResult struct {
	Success      bool   `json:"success"`
	Answer       string `json:"answer"`
	SnapshotUsed string `json:"snapshot_used"`
	Model        string `json:"model"`
	Error        string `json:"error"`
}

type snapshotPayload struct {
	Image string `json:"image"`
	Title string `json:"title,omitempty"`
}

type snapshotResult struct {
	Status     string `json:"status"`
	SnapshotID string `json:"snapshot_id"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

// Status implements panel.Backend.
func (c *Client) Status(ctx context.Context) (panel.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/vlm/status", nil)
	if err != nil {
		return panel.Status{}, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return panel.Status{}, fmt.Errorf("status probe: %w", err)
	}
	defer resp.Body.Close()

	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return panel.Status{}, fmt.Errorf("decode status response: %w", err)
	}

	return panel.Status{
		Online:  payload.Status == "online",
		Message: payload.Message,
		Model:   payload.Model,
	}, nil
}

// Ask implements panel.Backend. API-reported failures come back as
// *panel.DomainError; transport problems as plain errors.
func (c *Client) Ask(ctx context.Context, question, snapshotID string) (*panel.Answer, error) {
	payload := chatPayload{Question: question}
	if snapshotID != "" {
		payload.SnapshotID = &snapshotID
	}

	var result chatResult
	status, err := c.postJSON(ctx, "/v1/vlm/chat", payload, &result)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK || !result.Success {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("assistant returned status %d", status)
		}
		return nil, &panel.DomainError{Message: msg}
	}

	// A success payload must carry answer text; a blank one is a failed
	// exchange, not something to render.
	if strings.TrimSpace(result.Answer) == "" {
		return nil, &panel.DomainError{Message: "The assistant returned an empty answer. Please try again."}
	}

	return &panel.Answer{
		Text:         result.Answer,
		Model:        result.Model,
		SnapshotUsed: result.SnapshotUsed,
	}, nil
}

// SaveSnapshot uploads a base64 (or data URL) encoded image and returns the
// new snapshot id.
func (c *Client) SaveSnapshot(ctx context.Context, imageData, title string) (string, error) {
	var result snapshotResult
	status, err := c.postJSON(ctx, "/v1/snapshots", snapshotPayload{Image: imageData, Title: title}, &result)
	if err != nil {
		return "", err
	}

	if status != http.StatusOK && status != http.StatusCreated {
		msg := result.Error
		if msg == "" {
			msg = result.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("snapshot save returned status %d", status)
		}
		return "", &panel.DomainError{Message: msg}
	}

	return result.SnapshotID, nil
}

// postJSON sends body to path with a CSRF token, retrying once with a fresh
// token if the server rejects the cached one. The HTTP status is returned so
// callers can interpret API-level failures themselves.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) (int, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.csrf(ctx, attempt > 0)
		if err != nil {
			return 0, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
		if err != nil {
			return 0, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(csrfHeader, token)

		resp, err := c.http.Do(req)
		if err != nil {
			return 0, fmt.Errorf("post %s: %w", path, err)
		}

		if resp.StatusCode == http.StatusForbidden && attempt == 0 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			c.logger.Debug("csrf token rejected, refreshing", zap.String("path", path))
			continue
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, nil
	}

	return 0, fmt.Errorf("post %s: csrf token rejected twice", path)
}

// csrf returns the cached token, fetching a new one when absent or when
// refresh is set.
func (c *Client) csrf(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	cached := c.csrfToken
	c.mu.Unlock()
	if cached != "" && !refresh {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/csrf", nil)
	if err != nil {
		return "", fmt.Errorf("build csrf request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("csrf endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		Token string `json:"csrf_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode csrf response: %w", err)
	}

	c.mu.Lock()
	c.csrfToken = payload.Token
	c.mu.Unlock()
	return payload.Token, nil
}
