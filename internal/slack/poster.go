package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// ErrNotConfigured is returned when no bot token is set.
var ErrNotConfigured = errors.New("slack: bot token not configured")

type Poster struct {
	token  string
	client *http.Client
	logger *slog.Logger
	apiURL string
}

func NewPoster(token string, logger *slog.Logger) *Poster {
	return &Poster{
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
		apiURL: defaultPostMessageURL,
		logger: logger,
	}
}

// PostMessage posts text to channel. A non-empty threadTS replies in that
// thread.
func (p *Poster) PostMessage(ctx context.Context, channel, threadTS, text string) error {
	if p.token == "" {
		return ErrNotConfigured
	}

	payload := map[string]any{
		"channel": channel,
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return fmt.Errorf("slack error: %s", slackResp.Error)
	}

	p.logger.Debug("posted to slack", "channel", channel, "ts", slackResp.TS)
	return nil
}
