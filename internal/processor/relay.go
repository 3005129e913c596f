package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/salesbot/internal/hermes"
	"github.com/MikeSquared-Agency/salesbot/internal/manus"
	"github.com/MikeSquared-Agency/salesbot/internal/store"
)

const (
	relayTimeout    = 2 * time.Minute
	defaultFileName = "Wettbewerbsanalyse.pptx"
	msgNoFile       = "\n\nLeider konnte keine Datei heruntergeladen werden."
)

// HandleTaskCompleted is the NATS handler for salesbot.task.completed. It
// delivers the finished analysis to the chat the briefing came from.
func (p *Processor) HandleTaskCompleted(subject string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()

	_, task, ok := p.eventTask(ctx, subject, data)
	if !ok {
		return
	}
	p.deliver(ctx, task)
}

// HandleTaskFailed is the NATS handler for salesbot.task.failed. Failures
// raised during submission were already answered in the chat and are skipped.
func (p *Processor) HandleTaskFailed(subject string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()

	ev, task, ok := p.eventTask(ctx, subject, data)
	if !ok || ev.ManusTaskID == "" {
		return
	}

	reason := ev.Error
	if reason == "" {
		reason = task.ErrorMessage
	}
	text := fmt.Sprintf("Die Wettbewerbsanalyse für %s ist leider fehlgeschlagen: %s",
		Bold(task.SourcePlatform, task.Company), reason)
	p.notify(ctx, task, text, p.logger.With("task_id", task.ID))
}

func (p *Processor) eventTask(ctx context.Context, subject string, data []byte) (hermes.TaskEvent, *store.Task, bool) {
	var ev hermes.TaskEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		p.logger.Error("failed to parse task event", "subject", subject, "error", err)
		return ev, nil, false
	}
	id, err := uuid.Parse(ev.TaskID)
	if err != nil {
		p.logger.Error("invalid task id in event", "subject", subject, "task_id", ev.TaskID, "error", err)
		return ev, nil, false
	}
	task, err := p.store.GetTask(ctx, id)
	if err != nil {
		p.logger.Error("failed to load task for relay", "task_id", id, "error", err)
		return ev, nil, false
	}
	return ev, task, true
}

func (p *Processor) deliver(ctx context.Context, task *store.Task) {
	log := p.logger.With("task_id", task.ID, "platform", task.SourcePlatform)

	fileName := task.ResultFileName
	if fileName == "" {
		fileName = defaultFileName
	}
	contentType := manus.ContentType(fileName)

	var artifact []byte
	if task.ResultFileURL != "" && (task.SourcePlatform == store.PlatformTeams || p.archive != nil) {
		data, err := p.manus.DownloadArtifact(ctx, task.ResultFileURL)
		if err != nil {
			log.Error("failed to download artifact", "url", task.ResultFileURL, "error", err)
		} else {
			artifact = data
		}
	}

	if artifact != nil && p.archive != nil {
		loc, err := p.archive.Upload(ctx, task.ID.String(), fileName, contentType, artifact)
		if err != nil {
			log.Error("failed to archive artifact", "error", err)
		} else {
			log.Info("artifact archived", "location", loc, "size", len(artifact))
		}
	}

	headline := fmt.Sprintf("Die Wettbewerbsanalyse für %s ist fertig!", Bold(task.SourcePlatform, task.Company))

	switch task.SourcePlatform {
	case store.PlatformSlack:
		text := headline + msgNoFile
		if task.ResultFileURL != "" {
			text = fmt.Sprintf("%s\n\n<%s|%s>", headline, task.ResultFileURL, fileName)
		}
		p.notify(ctx, task, text, log)
	case store.PlatformTeams:
		if artifact == nil {
			p.notify(ctx, task, headline+msgNoFile, log)
			return
		}
		if p.teams == nil || task.ConversationReference == "" {
			log.Warn("no teams conversation to deliver to")
			return
		}
		if err := p.teams.SendFile(ctx, task.ConversationReference, headline, fileName, contentType, artifact); err != nil {
			log.Error("failed to send teams attachment", "error", err)
			return
		}
		log.Info("result delivered", "file_name", fileName)
	default:
		log.Info("no chat delivery for platform")
	}
}

// notify sends a plain text message to the conversation of task.
func (p *Processor) notify(ctx context.Context, task *store.Task, text string, log *slog.Logger) {
	switch task.SourcePlatform {
	case store.PlatformSlack:
		if p.slack == nil || task.ChannelID == "" {
			log.Warn("no slack channel to deliver to")
			return
		}
		if err := p.slack.PostMessage(ctx, task.ChannelID, "", text); err != nil {
			log.Error("failed to post slack message", "error", err)
			return
		}
	case store.PlatformTeams:
		if p.teams == nil || task.ConversationReference == "" {
			log.Warn("no teams conversation to deliver to")
			return
		}
		if err := p.teams.SendText(ctx, task.ConversationReference, text); err != nil {
			log.Error("failed to send teams message", "error", err)
			return
		}
	default:
		return
	}
	log.Info("chat notified")
}
