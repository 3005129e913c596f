package manus

import (
	"path"
	"strings"
)

// Webhook event types.
const (
	EventTaskCreated  = "task_created"
	EventTaskProgress = "task_progress"
	EventTaskStopped  = "task_stopped"
)

// Stop reasons reported with task_stopped.
const (
	StopFinish = "finish"
	StopAsk    = "ask"
)

const unknownStopReason = "Unbekannter Stop-Grund"

type WebhookEvent struct {
	EventID        string          `json:"event_id,omitempty"`
	EventType      string          `json:"event_type"`
	TaskID         string          `json:"task_id"`
	TaskDetail     *TaskDetail     `json:"task_detail,omitempty"`
	ProgressDetail *ProgressDetail `json:"progress_detail,omitempty"`
}

type TaskDetail struct {
	StopReason  string       `json:"stop_reason"`
	Message     string       `json:"message,omitempty"`
	TaskURL     string       `json:"task_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	FileName  string `json:"file_name"`
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

type ProgressDetail struct {
	Message string `json:"message"`
}

// OutcomeKind says how a webhook event changes the tracked task.
type OutcomeKind int

const (
	OutcomeUnchanged OutcomeKind = iota
	OutcomeCompleted
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unchanged"
	}
}

// Outcome is the task update derived from one webhook event.
type Outcome struct {
	Kind     OutcomeKind
	FileURL  string
	FileName string
	TaskURL  string
	Error    string
	// Note is a log-only message for progress and ask events.
	Note string
}

// Reconcile maps a webhook event onto a task update.
func Reconcile(ev WebhookEvent) Outcome {
	switch ev.EventType {
	case EventTaskStopped:
		if ev.TaskDetail == nil {
			return Outcome{}
		}
		d := ev.TaskDetail
		switch d.StopReason {
		case StopFinish:
			out := Outcome{Kind: OutcomeCompleted, TaskURL: d.TaskURL}
			if att, ok := PickAttachment(d.Attachments); ok {
				out.FileURL = att.URL
				out.FileName = att.FileName
			}
			return out
		case StopAsk:
			return Outcome{Note: d.Message}
		default:
			msg := d.Message
			if msg == "" {
				msg = unknownStopReason
			}
			return Outcome{Kind: OutcomeFailed, Error: msg}
		}
	case EventTaskProgress:
		if ev.ProgressDetail != nil {
			return Outcome{Note: ev.ProgressDetail.Message}
		}
	}
	return Outcome{}
}

var preferredExtensions = []string{".pdf", ".pptx", ".html", ".docx", ".xlsx"}

// PickAttachment chooses the deliverable: documents by preference, then the
// first non-JSON file, then the first file.
func PickAttachment(atts []Attachment) (Attachment, bool) {
	if len(atts) == 0 {
		return Attachment{}, false
	}
	for _, ext := range preferredExtensions {
		for _, a := range atts {
			if strings.HasSuffix(strings.ToLower(a.FileName), ext) {
				return a, true
			}
		}
	}
	for _, a := range atts {
		if !strings.HasSuffix(strings.ToLower(a.FileName), ".json") {
			return a, true
		}
	}
	return atts[0], true
}

var contentTypes = map[string]string{
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".pdf":  "application/pdf",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".zip":  "application/zip",
}

// ContentType returns the MIME type for an artifact file name.
func ContentType(fileName string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(fileName))]; ok {
		return ct
	}
	return "application/octet-stream"
}
