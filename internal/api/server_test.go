package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/salesbot/internal/manus"
	"github.com/MikeSquared-Agency/salesbot/internal/processor"
	"github.com/MikeSquared-Agency/salesbot/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBriefings struct {
	reply    processor.Reply
	got      []processor.Briefing
	task     *store.Task
	err      error
	webhooks []manus.WebhookEvent
}

func (f *fakeBriefings) HandleBriefing(_ context.Context, b processor.Briefing) processor.Reply {
	f.got = append(f.got, b)
	return f.reply
}

func (f *fakeBriefings) HandleWebhook(_ context.Context, ev manus.WebhookEvent) (*store.Task, error) {
	f.webhooks = append(f.webhooks, ev)
	return f.task, f.err
}

type fakeTasks struct {
	tasks map[uuid.UUID]*store.Task
	err   error
}

func (f *fakeTasks) GetTask(_ context.Context, id uuid.UUID) (*store.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func newTestServer(fb *fakeBriefings, ft *fakeTasks) *Server {
	if ft == nil {
		ft = &fakeTasks{}
	}
	return NewServer(Options{
		Port:        8000,
		Environment: "test",
		Briefings:   fb,
		Tasks:       ft,
		Logger:      discardLogger(),
	})
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeBriefings{}, nil)

	w := do(srv, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
	if body["environment"] != "test" {
		t.Errorf("expected environment test, got %q", body["environment"])
	}
	if body["timestamp"] == "" {
		t.Error("expected timestamp")
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(&fakeBriefings{}, nil)
	if w := do(srv, http.MethodGet, "/nonexistent", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestBriefing(t *testing.T) {
	tests := []struct {
		name       string
		reply      processor.Reply
		wantMsg    string
		wantStatus string
	}{
		{
			name:       "processing",
			reply:      processor.Reply{Messages: []string{"Unternehmen: Acme", "extra"}, Status: processor.ReplyProcessing, TaskID: "t1", ManusTaskID: "m1", Prompt: "p"},
			wantMsg:    "Unternehmen: Acme",
			wantStatus: "processing",
		},
		{
			name:       "needs input",
			reply:      processor.Reply{Messages: []string{"Welche(r) Standort?"}, Status: processor.ReplyNeedsInput},
			wantMsg:    "Welche(r) Standort?",
			wantStatus: "needs_input",
		},
		{
			name:       "needs input without message",
			reply:      processor.Reply{Status: processor.ReplyNeedsInput},
			wantMsg:    "Eingabe unvollständig.",
			wantStatus: "needs_input",
		},
		{
			name:       "manus failure",
			reply:      processor.Reply{Messages: []string{"ok", "Fehler bei der Manus-API: x"}, Status: processor.ReplyFailed, Error: "Manus API Fehler: x"},
			wantMsg:    "Manus API Fehler: x",
			wantStatus: "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBriefings{reply: tt.reply}
			srv := newTestServer(fb, nil)

			w := do(srv, http.MethodPost, "/api/briefing", `{"text":"Acme\nHEP\nBerlin","user_id":"u1","user_name":"Anna"}`)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			body := decode(t, w)
			if body["message"] != tt.wantMsg {
				t.Errorf("message: got %q, want %q", body["message"], tt.wantMsg)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status: got %q, want %q", body["status"], tt.wantStatus)
			}
			if body["task_id"] != tt.reply.TaskID || body["manus_task_id"] != tt.reply.ManusTaskID || body["manus_prompt"] != tt.reply.Prompt {
				t.Errorf("unexpected ids %+v", body)
			}

			b := fb.got[0]
			if b.Platform != store.PlatformHTTP || b.Text != "Acme\nHEP\nBerlin" || b.UserID != "u1" || b.UserName != "Anna" {
				t.Errorf("unexpected briefing %+v", b)
			}
		})
	}
}

func TestBriefing_InvalidJSON(t *testing.T) {
	srv := newTestServer(&fakeBriefings{}, nil)
	if w := do(srv, http.MethodPost, "/api/briefing", "{"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestBriefing_RateLimited(t *testing.T) {
	fb := &fakeBriefings{reply: processor.Reply{Status: processor.ReplyNeedsInput}}
	srv := NewServer(Options{
		Briefings:     fb,
		Tasks:         &fakeTasks{},
		BriefingRate:  0.001,
		BriefingBurst: 2,
		Logger:        discardLogger(),
	})

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(srv, http.MethodPost, "/api/briefing", `{"text":"x"}`).Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status codes %v", codes)
	}
	if len(fb.got) != 2 {
		t.Errorf("expected 2 processed briefings, got %d", len(fb.got))
	}
}

func TestManusWebhook(t *testing.T) {
	id := uuid.New()
	fb := &fakeBriefings{task: &store.Task{ID: id, Status: store.StatusCompleted}}
	srv := newTestServer(fb, nil)

	w := do(srv, http.MethodPost, "/api/manus/webhook", `{"event_type":"task_stopped","task_id":"m1","task_detail":{"stop_reason":"finish"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["task_id"] != id.String() || body["task_status"] != "completed" || body["status"] != "ok" {
		t.Errorf("unexpected body %+v", body)
	}
	if fb.webhooks[0].TaskDetail == nil || fb.webhooks[0].TaskDetail.StopReason != "finish" {
		t.Errorf("unexpected event %+v", fb.webhooks[0])
	}
}

func TestManusWebhook_UnknownTask(t *testing.T) {
	srv := newTestServer(&fakeBriefings{}, nil)

	w := do(srv, http.MethodPost, "/api/manus/webhook", `{"event_type":"task_created","task_id":"nope"}`)
	body := decode(t, w)
	if w.Code != http.StatusOK || body["detail"] != "Task nicht in DB (ggf. test event)" {
		t.Errorf("unexpected response %d %+v", w.Code, body)
	}
}

func TestManusWebhook_Error(t *testing.T) {
	srv := newTestServer(&fakeBriefings{err: errors.New("db down")}, nil)
	if w := do(srv, http.MethodPost, "/api/manus/webhook", `{"task_id":"m1"}`); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestGetTask(t *testing.T) {
	id := uuid.New()
	ft := &fakeTasks{tasks: map[uuid.UUID]*store.Task{
		id: {ID: id, Company: "Acme", Status: store.StatusProcessing, ConversationReference: "secret"},
	}}
	srv := newTestServer(&fakeBriefings{}, ft)

	w := do(srv, http.MethodGet, "/api/tasks/"+id.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got map[string]any
	json.NewDecoder(w.Body).Decode(&got)
	if got["company"] != "Acme" || got["status"] != "processing" {
		t.Errorf("unexpected task %+v", got)
	}
	if _, ok := got["conversation_reference"]; ok {
		t.Error("conversation reference must not be exposed")
	}
}

type fakeManus struct {
	status string
	err    error
	calls  []string
}

func (f *fakeManus) GetTask(_ context.Context, taskID string) (*manus.TaskResponse, error) {
	f.calls = append(f.calls, taskID)
	if f.err != nil {
		return nil, f.err
	}
	return &manus.TaskResponse{TaskID: taskID, Status: f.status}, nil
}

func TestGetTask_ManusStatus(t *testing.T) {
	processing, done, unsent := uuid.New(), uuid.New(), uuid.New()
	ft := &fakeTasks{tasks: map[uuid.UUID]*store.Task{
		processing: {ID: processing, Status: store.StatusProcessing, ManusTaskID: "m1"},
		done:       {ID: done, Status: store.StatusCompleted, ManusTaskID: "m2"},
		unsent:     {ID: unsent, Status: store.StatusProcessing},
	}}

	tests := []struct {
		name      string
		id        uuid.UUID
		manus     *fakeManus
		wantState string
		wantCalls int
	}{
		{"processing", processing, &fakeManus{status: "running"}, "running", 1},
		{"lookup fails", processing, &fakeManus{err: errors.New("down")}, "", 1},
		{"completed task", done, &fakeManus{status: "running"}, "", 0},
		{"no manus id", unsent, &fakeManus{status: "running"}, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(Options{Briefings: &fakeBriefings{}, Tasks: ft, Manus: tt.manus, Logger: discardLogger()})

			w := do(srv, http.MethodGet, "/api/tasks/"+tt.id.String(), "")
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			var got map[string]any
			json.NewDecoder(w.Body).Decode(&got)
			state, _ := got["manus_status"].(string)
			if state != tt.wantState {
				t.Errorf("manus_status = %q, want %q", state, tt.wantState)
			}
			if got["id"] != tt.id.String() {
				t.Errorf("task fields missing from response: %v", got)
			}
			if len(tt.manus.calls) != tt.wantCalls {
				t.Errorf("expected %d manus lookups, got %v", tt.wantCalls, tt.manus.calls)
			}
		})
	}
}

func TestGetTask_NotFound(t *testing.T) {
	srv := newTestServer(&fakeBriefings{}, &fakeTasks{})

	for _, path := range []string{"/api/tasks/" + uuid.NewString(), "/api/tasks/not-a-uuid"} {
		w := do(srv, http.MethodGet, path, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
		if body := decode(t, w); body["detail"] != "Task nicht gefunden" {
			t.Errorf("%s: unexpected body %+v", path, body)
		}
	}
}

func TestChatRoutesMounted(t *testing.T) {
	var hits []string
	mark := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, name)
			w.WriteHeader(http.StatusOK)
		})
	}
	srv := NewServer(Options{
		Briefings:     &fakeBriefings{},
		Tasks:         &fakeTasks{},
		SlackEvents:   mark("slack"),
		TeamsMessages: mark("teams"),
		Logger:        discardLogger(),
	})

	do(srv, http.MethodPost, "/api/slack/events", "{}")
	do(srv, http.MethodPost, "/api/teams/messages", "{}")
	if len(hits) != 2 || hits[0] != "slack" || hits[1] != "teams" {
		t.Errorf("unexpected hits %v", hits)
	}

	bare := newTestServer(&fakeBriefings{}, nil)
	if w := do(bare, http.MethodPost, "/api/slack/events", "{}"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 without slack handler, got %d", w.Code)
	}
}
