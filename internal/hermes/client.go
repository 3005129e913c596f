package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Task lifecycle subjects.
const (
	SubjectTaskSubmitted = "salesbot.task.submitted"
	SubjectTaskCompleted = "salesbot.task.completed"
	SubjectTaskFailed    = "salesbot.task.failed"
)

// TaskEvent is published on every task lifecycle subject.
type TaskEvent struct {
	TaskID         string `json:"task_id"`
	ManusTaskID    string `json:"manus_task_id,omitempty"`
	Status         string `json:"status"`
	SourcePlatform string `json:"source_platform"`
	Company        string `json:"company,omitempty"`
	Error          string `json:"error,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// NewTaskEvent stamps an event with the current UTC time.
func NewTaskEvent(taskID, manusTaskID, status, platform string) TaskEvent {
	return TaskEvent{
		TaskID:         taskID,
		ManusTaskID:    manusTaskID,
		Status:         status,
		SourcePlatform: platform,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("salesbot"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Drain unsubscribes and flushes pending messages before closing.
func (c *Client) Drain() error {
	return c.conn.Drain()
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
