package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Status is the lifecycle state of an analysis task.
type Status string

const (
	StatusPending              Status = "pending"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusProcessing           Status = "processing"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
)

// Platform identifies where a briefing came from.
type Platform string

const (
	PlatformHTTP  Platform = "http"
	PlatformSlack Platform = "slack"
	PlatformTeams Platform = "teams"
)

// Task is one submitted competitive-analysis request. Optional text columns
// are read back as "".
type Task struct {
	ID                    uuid.UUID  `json:"id"`
	Company               string     `json:"company"`
	Location              string     `json:"location"`
	Position              string     `json:"position"`
	ExtraContext          string     `json:"extra_context,omitempty"`
	Prompt                string     `json:"prompt"`
	InputMode             string     `json:"input_mode"`
	ManusTaskID           string     `json:"manus_task_id,omitempty"`
	ManusTaskURL          string     `json:"manus_task_url,omitempty"`
	Status                Status     `json:"status"`
	ResultFileURL         string     `json:"result_file_url,omitempty"`
	ResultFileName        string     `json:"result_file_name,omitempty"`
	ErrorMessage          string     `json:"error_message,omitempty"`
	SourcePlatform        Platform   `json:"source_platform"`
	UserID                string     `json:"user_id,omitempty"`
	UserName              string     `json:"user_name,omitempty"`
	ChannelID             string     `json:"channel_id,omitempty"`
	ConversationReference string     `json:"-"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// Completion carries the artifact reported by a finished task.
type Completion struct {
	FileURL  string
	FileName string
	TaskURL  string
}

const taskColumns = `id::text, company, location, position,
	COALESCE(extra_context, ''), COALESCE(prompt, ''), COALESCE(input_mode, ''),
	COALESCE(manus_task_id, ''), COALESCE(manus_task_url, ''), status,
	COALESCE(result_file_url, ''), COALESCE(result_file_name, ''), COALESCE(error_message, ''),
	source_platform, COALESCE(user_id, ''), COALESCE(user_name, ''), COALESCE(channel_id, ''),
	COALESCE(conversation_reference, ''), created_at, updated_at, completed_at`

// CreateTask inserts t, assigning its ID and timestamps. A zero status
// is stored as processing.
func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	t.ID = uuid.New()
	if t.Status == "" {
		t.Status = StatusProcessing
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	_, err := s.db.Exec(ctx, `
		INSERT INTO analysis_tasks (
			id, company, location, position, extra_context, prompt, input_mode, status,
			source_platform, user_id, user_name, channel_id, conversation_reference,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8,
			$9, NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''),
			$14, $14)`,
		t.ID, t.Company, t.Location, t.Position, t.ExtraContext, t.Prompt, t.InputMode, string(t.Status),
		string(t.SourcePlatform), t.UserID, t.UserName, t.ChannelID, t.ConversationReference,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// SetManusTaskID records the remote task id after submission.
func (s *Store) SetManusTaskID(ctx context.Context, id uuid.UUID, manusTaskID string) error {
	return s.update(ctx, "set manus task id", `
		UPDATE analysis_tasks SET manus_task_id = $2, updated_at = now()
		WHERE id = $1`,
		id, manusTaskID,
	)
}

// MarkFailed moves a task to failed with a reason.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.update(ctx, "mark failed", `
		UPDATE analysis_tasks SET status = 'failed', error_message = $2, updated_at = now()
		WHERE id = $1`,
		id, reason,
	)
}

// MarkCompleted moves a task to completed. Empty completion fields keep
// their stored values.
func (s *Store) MarkCompleted(ctx context.Context, id uuid.UUID, c Completion) error {
	return s.update(ctx, "mark completed", `
		UPDATE analysis_tasks SET
			status = 'completed',
			result_file_url = COALESCE(NULLIF($2, ''), result_file_url),
			result_file_name = COALESCE(NULLIF($3, ''), result_file_name),
			manus_task_url = COALESCE(NULLIF($4, ''), manus_task_url),
			completed_at = now(),
			updated_at = now()
		WHERE id = $1`,
		id, c.FileURL, c.FileName, c.TaskURL,
	)
}

// GetTask loads a task by its id.
func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	row := s.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM analysis_tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// GetTaskByManusID loads the most recent task submitted as manusTaskID.
func (s *Store) GetTaskByManusID(ctx context.Context, manusTaskID string) (*Task, error) {
	row := s.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM analysis_tasks
		WHERE manus_task_id = $1 ORDER BY created_at DESC LIMIT 1`, manusTaskID)
	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("get task by manus id %s: %w", manusTaskID, err)
	}
	return t, nil
}

func (s *Store) update(ctx context.Context, op, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var (
		t        Task
		id       string
		status   string
		platform string
	)
	err := row.Scan(
		&id, &t.Company, &t.Location, &t.Position,
		&t.ExtraContext, &t.Prompt, &t.InputMode,
		&t.ManusTaskID, &t.ManusTaskURL, &status,
		&t.ResultFileURL, &t.ResultFileName, &t.ErrorMessage,
		&platform, &t.UserID, &t.UserName, &t.ChannelID,
		&t.ConversationReference, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse task id: %w", err)
	}
	t.ID = parsed
	t.Status = Status(status)
	t.SourcePlatform = Platform(platform)
	return &t, nil
}
