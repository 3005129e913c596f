package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/salesbot/internal/classifier"
	"github.com/MikeSquared-Agency/salesbot/internal/extractor"
	"github.com/MikeSquared-Agency/salesbot/internal/hermes"
	"github.com/MikeSquared-Agency/salesbot/internal/manus"
	"github.com/MikeSquared-Agency/salesbot/internal/prompt"
	"github.com/MikeSquared-Agency/salesbot/internal/session"
	"github.com/MikeSquared-Agency/salesbot/internal/store"
	"github.com/MikeSquared-Agency/salesbot/internal/validator"
)

const (
	msgEmpty        = "Bitte sende ein Briefing mit Unternehmen, Position und Standort."
	msgInternal     = "Ein Fehler ist aufgetreten. Bitte versuche es erneut."
	msgManusFailure = "Fehler bei der Manus-API: %v\nBitte versuche es erneut."
)

// ReplyStatus tells the caller how a briefing turn ended.
type ReplyStatus string

const (
	ReplyNeedsInput ReplyStatus = "needs_input"
	ReplyProcessing ReplyStatus = "processing"
	ReplyFailed     ReplyStatus = "failed"
	ReplyHelp       ReplyStatus = "help"
)

// TaskStore is the persistence the processor needs.
type TaskStore interface {
	CreateTask(ctx context.Context, t *store.Task) error
	SetManusTaskID(ctx context.Context, id uuid.UUID, manusTaskID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, c store.Completion) error
	GetTask(ctx context.Context, id uuid.UUID) (*store.Task, error)
	GetTaskByManusID(ctx context.Context, manusTaskID string) (*store.Task, error)
}

// TaskAPI submits prompts and fetches their artifacts.
type TaskAPI interface {
	CreateTask(ctx context.Context, prompt string) (*manus.TaskResponse, error)
	DownloadArtifact(ctx context.Context, url string) ([]byte, error)
}

type Publisher interface {
	Publish(subject string, data any) error
}

// SlackSender posts a message to a channel, optionally in a thread.
type SlackSender interface {
	PostMessage(ctx context.Context, channel, threadTS, text string) error
}

// TeamsSender sends proactive messages to a stored conversation reference.
type TeamsSender interface {
	SendText(ctx context.Context, reference, text string) error
	SendFile(ctx context.Context, reference, text, fileName, contentType string, data []byte) error
}

// Archiver keeps a copy of delivered artifacts and returns their location.
type Archiver interface {
	Upload(ctx context.Context, taskID, fileName, contentType string, data []byte) (string, error)
}

// Deps are the collaborators of a Processor. Store, Extractor and Manus are
// required; everything else may be nil.
type Deps struct {
	Store     TaskStore
	Extractor *extractor.Extractor
	Manus     TaskAPI
	Prompts   *prompt.Builder
	Sessions  session.Store
	Events    Publisher
	Slack     SlackSender
	Teams     TeamsSender
	Archive   Archiver
}

// Processor runs briefings from every surface through the same pipeline and
// relays finished analyses back to where they came from.
type Processor struct {
	store     TaskStore
	extractor *extractor.Extractor
	manus     TaskAPI
	prompts   *prompt.Builder
	sessions  session.Store
	events    Publisher
	slack     SlackSender
	teams     TeamsSender
	archive   Archiver
	logger    *slog.Logger
}

func New(d Deps, logger *slog.Logger) *Processor {
	prompts := d.Prompts
	if prompts == nil {
		prompts = prompt.NewBuilder(prompt.Template{})
	}
	return &Processor{
		store:     d.Store,
		extractor: d.Extractor,
		manus:     d.Manus,
		prompts:   prompts,
		sessions:  d.Sessions,
		events:    d.Events,
		slack:     d.Slack,
		teams:     d.Teams,
		archive:   d.Archive,
		logger:    logger,
	}
}

// Briefing is one inbound message.
type Briefing struct {
	Platform  store.Platform
	Text      string
	UserID    string
	UserName  string
	ChannelID string
	// ConversationReference is the serialized Teams reference used for
	// proactive delivery. Empty on other platforms.
	ConversationReference string
}

// identified reports whether pending state can be tied to the sender.
// Anonymous briefings never share a session.
func (b Briefing) identified() bool {
	return strings.TrimSpace(b.UserID) != ""
}

func (b Briefing) sessionKey() string {
	return session.Key(string(b.Platform), b.ChannelID, b.UserID)
}

// Reply is what the surface sends back, in order.
type Reply struct {
	Messages    []string
	Status      ReplyStatus
	TaskID      string
	ManusTaskID string
	Prompt      string
	// Error is the stored failure reason when Status is failed.
	Error string
}

// Text joins all messages into one block.
func (r Reply) Text() string {
	return strings.Join(r.Messages, "\n\n")
}

func needsInput(msg string) Reply {
	return Reply{Messages: []string{msg}, Status: ReplyNeedsInput}
}

// HandleBriefing runs one chat turn: help, disambiguation answer, or a new
// briefing. It never returns an error; failures become reply messages.
func (p *Processor) HandleBriefing(ctx context.Context, b Briefing) Reply {
	text := strings.TrimSpace(b.Text)
	if text == "" {
		return needsInput(msgEmpty)
	}
	if isHelp(text) {
		return Reply{Messages: []string{HelpText(b.Platform)}, Status: ReplyHelp}
	}

	log := p.logger.With("platform", b.Platform, "user_id", b.UserID, "channel_id", b.ChannelID)

	if v, ok := p.resumePending(ctx, b, text, log); ok {
		return p.conclude(ctx, b, v, log)
	}

	mode := classifier.Classify(text)
	ext := p.extractor.Extract(ctx, text, mode)
	if ext.Failure != extractor.FailureNone {
		log.Warn("extraction degraded", "mode", mode, "failure", ext.Failure, "errors", ext.Errors)
	}
	log.Info("briefing extracted",
		"mode", mode,
		"company", extractor.Value(ext.Company),
		"location", extractor.Value(ext.Location),
		"position", extractor.Value(ext.Position),
		"used_language_model", ext.UsedLanguageModel,
	)

	return p.conclude(ctx, b, validator.Validate(*ext), log)
}

// resumePending applies an option key to a pending extraction, if any.
func (p *Processor) resumePending(ctx context.Context, b Briefing, text string, log *slog.Logger) (validator.Validation, bool) {
	if p.sessions == nil || !b.identified() || !validator.IsChoice(text) {
		return validator.Validation{}, false
	}
	key := b.sessionKey()
	pending, err := p.sessions.Load(ctx, key)
	if err != nil {
		log.Error("failed to load pending briefing", "error", err)
		return validator.Validation{}, false
	}
	if pending == nil {
		return validator.Validation{}, false
	}
	if err := p.sessions.Clear(ctx, key); err != nil {
		log.Warn("failed to clear pending briefing", "error", err)
	}

	ext := validator.ApplyChoice(pending.Extraction, pending.Field, text)
	log.Info("disambiguation applied", "field", pending.Field, "choice", text, "position", extractor.Value(ext.Position))
	return validator.Validate(ext), true
}

func (p *Processor) conclude(ctx context.Context, b Briefing, v validator.Validation, log *slog.Logger) Reply {
	if !v.Valid {
		p.rememberAmbiguity(ctx, b, v, log)
		return needsInput(v.Reply)
	}
	return p.submit(ctx, b, v, log)
}

func (p *Processor) rememberAmbiguity(ctx context.Context, b Briefing, v validator.Validation, log *slog.Logger) {
	if p.sessions == nil || !b.identified() {
		return
	}
	if _, ok := v.Ambiguous[extractor.FieldPosition]; !ok {
		return
	}
	pending := session.Pending{
		Extraction: v.Extraction,
		Field:      extractor.FieldPosition,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.sessions.Save(ctx, b.sessionKey(), pending); err != nil {
		log.Error("failed to save pending briefing", "error", err)
	}
}

func (p *Processor) submit(ctx context.Context, b Briefing, v validator.Validation, log *slog.Logger) Reply {
	ext := v.Extraction
	task := &store.Task{
		Company:               extractor.Value(ext.Company),
		Location:              extractor.Value(ext.Location),
		Position:              extractor.Value(ext.Position),
		ExtraContext:          extractor.Value(ext.ExtraContext),
		Prompt:                p.prompts.Build(ext),
		InputMode:             string(ext.Mode),
		Status:                store.StatusProcessing,
		SourcePlatform:        b.Platform,
		UserID:                b.UserID,
		UserName:              b.UserName,
		ChannelID:             b.ChannelID,
		ConversationReference: b.ConversationReference,
	}
	if err := p.store.CreateTask(ctx, task); err != nil {
		log.Error("failed to store task", "error", err)
		return Reply{Messages: []string{msgInternal}, Status: ReplyFailed}
	}
	log = log.With("task_id", task.ID)

	reply := Reply{
		Messages: []string{v.Reply},
		Status:   ReplyProcessing,
		TaskID:   task.ID.String(),
		Prompt:   task.Prompt,
	}

	resp, err := p.manus.CreateTask(ctx, task.Prompt)
	if err != nil {
		log.Error("manus submission failed", "error", err)
		reason := fmt.Sprintf("Manus API Fehler: %v", err)
		if mErr := p.store.MarkFailed(ctx, task.ID, reason); mErr != nil {
			log.Error("failed to mark task failed", "error", mErr)
		}
		ev := p.taskEvent(task, "", store.StatusFailed)
		ev.Error = reason
		p.publish(hermes.SubjectTaskFailed, ev)

		reply.Messages = append(reply.Messages, fmt.Sprintf(msgManusFailure, err))
		reply.Status = ReplyFailed
		reply.Error = reason
		return reply
	}

	if err := p.store.SetManusTaskID(ctx, task.ID, resp.TaskID); err != nil {
		log.Error("failed to store manus task id", "manus_task_id", resp.TaskID, "error", err)
	}
	reply.ManusTaskID = resp.TaskID
	p.publish(hermes.SubjectTaskSubmitted, p.taskEvent(task, resp.TaskID, store.StatusProcessing))

	log.Info("task submitted", "manus_task_id", resp.TaskID, "company", task.Company)
	return reply
}

// HandleWebhook applies a Manus webhook event to its task. It returns nil
// without error when the event refers to no known task.
func (p *Processor) HandleWebhook(ctx context.Context, ev manus.WebhookEvent) (*store.Task, error) {
	if ev.TaskID == "" {
		p.logger.Warn("webhook without task id", "event_type", ev.EventType)
		return nil, nil
	}
	task, err := p.store.GetTaskByManusID(ctx, ev.TaskID)
	if errors.Is(err, store.ErrNotFound) {
		p.logger.Warn("webhook for unknown task", "manus_task_id", ev.TaskID, "event_type", ev.EventType)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup task: %w", err)
	}

	log := p.logger.With("task_id", task.ID, "manus_task_id", ev.TaskID)
	out := manus.Reconcile(ev)

	switch out.Kind {
	case manus.OutcomeCompleted:
		c := store.Completion{FileURL: out.FileURL, FileName: out.FileName, TaskURL: out.TaskURL}
		if err := p.store.MarkCompleted(ctx, task.ID, c); err != nil {
			return nil, fmt.Errorf("mark completed: %w", err)
		}
		log.Info("task completed", "file_name", out.FileName)
		p.publish(hermes.SubjectTaskCompleted, p.taskEvent(task, ev.TaskID, store.StatusCompleted))
	case manus.OutcomeFailed:
		if err := p.store.MarkFailed(ctx, task.ID, out.Error); err != nil {
			return nil, fmt.Errorf("mark failed: %w", err)
		}
		log.Warn("task failed", "error", out.Error)
		fe := p.taskEvent(task, ev.TaskID, store.StatusFailed)
		fe.Error = out.Error
		p.publish(hermes.SubjectTaskFailed, fe)
	default:
		log.Info("webhook event", "event_type", ev.EventType, "note", out.Note)
		return task, nil
	}

	updated, err := p.store.GetTask(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}
	return updated, nil
}

func (p *Processor) taskEvent(t *store.Task, manusTaskID string, status store.Status) hermes.TaskEvent {
	if manusTaskID == "" {
		manusTaskID = t.ManusTaskID
	}
	ev := hermes.NewTaskEvent(t.ID.String(), manusTaskID, string(status), string(t.SourcePlatform))
	ev.Company = t.Company
	return ev
}

func (p *Processor) publish(subject string, ev hermes.TaskEvent) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(subject, ev); err != nil {
		p.logger.Error("failed to publish task event", "subject", subject, "task_id", ev.TaskID, "error", err)
	}
}
