// Package manus is a client for the Manus task API and its webhook events.
package manus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// MaxArtifactBytes bounds a downloaded result file. Teams carries it inline
// as a data URI.
const MaxArtifactBytes = 25 << 20

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("manus: api key not configured")
	// ErrArtifactTooLarge is returned when a result file exceeds the download limit.
	ErrArtifactTooLarge = errors.New("manus: artifact too large")
)

type Client struct {
	apiKey    string
	baseURL   string
	projectID string
	maxBytes  int64
	client    *http.Client
	logger    *slog.Logger
}

func NewClient(apiKey, baseURL, projectID string, logger *slog.Logger) *Client {
	return &Client{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		projectID: projectID,
		maxBytes:  MaxArtifactBytes,
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger,
	}
}

type createTaskRequest struct {
	Prompt    string `json:"prompt"`
	ProjectID string `json:"project_id,omitempty"`
	TaskMode  string `json:"task_mode"`
}

// TaskResponse is returned by task creation and lookup.
type TaskResponse struct {
	TaskID    string           `json:"task_id"`
	Status    string           `json:"status"`
	Output    string           `json:"output,omitempty"`
	TaskURL   string           `json:"task_url,omitempty"`
	Artifacts []map[string]any `json:"artifacts,omitempty"`
}

// CreateTask submits a prompt as a new agent task.
func (c *Client) CreateTask(ctx context.Context, prompt string) (*TaskResponse, error) {
	body, err := json.Marshal(createTaskRequest{
		Prompt:    prompt,
		ProjectID: c.projectID,
		TaskMode:  "agent",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var out TaskResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/tasks", body, &out); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	c.logger.Info("manus task created", "manus_task_id", out.TaskID)
	return &out, nil
}

// GetTask fetches the current state of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*TaskResponse, error) {
	var out TaskResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/tasks/"+taskID, nil, &out); err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return &out, nil
}

// DownloadArtifact fetches a result file of at most MaxArtifactBytes.
func (c *Client) DownloadArtifact(ctx context.Context, url string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("API_KEY", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download artifact: status %d", resp.StatusCode)
	}
	if resp.ContentLength > c.maxBytes {
		return nil, fmt.Errorf("download artifact: %d bytes: %w", resp.ContentLength, ErrArtifactTooLarge)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("download artifact: %w", ErrArtifactTooLarge)
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("API_KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
