package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/MikeSquared-Agency/salesbot/internal/manus"
	"github.com/MikeSquared-Agency/salesbot/internal/processor"
	"github.com/MikeSquared-Agency/salesbot/internal/store"
)

const (
	msgIncomplete   = "Eingabe unvollständig."
	msgTaskNotFound = "Task nicht gefunden"
	msgUnknownTask  = "Task nicht in DB (ggf. test event)"
	briefingTimeout = 2 * time.Minute
	manusTimeout    = 15 * time.Second
)

// Briefings runs briefings and applies webhook events.
type Briefings interface {
	HandleBriefing(ctx context.Context, b processor.Briefing) processor.Reply
	HandleWebhook(ctx context.Context, ev manus.WebhookEvent) (*store.Task, error)
}

type TaskReader interface {
	GetTask(ctx context.Context, id uuid.UUID) (*store.Task, error)
}

// TaskStatus looks up a task on the Manus side.
type TaskStatus interface {
	GetTask(ctx context.Context, taskID string) (*manus.TaskResponse, error)
}

// Options configure a Server. Nil chat handlers leave their routes
// unregistered.
type Options struct {
	Port          int
	Environment   string
	Briefings     Briefings
	Tasks         TaskReader
	// Manus, when set, refreshes the remote status of processing tasks on
	// lookup.
	Manus         TaskStatus
	SlackEvents   http.Handler
	TeamsMessages http.Handler
	// BriefingRate is the sustained number of briefings per second accepted
	// on the HTTP endpoint. Zero disables the limit.
	BriefingRate  float64
	BriefingBurst int
	Logger        *slog.Logger
}

type Server struct {
	router      *chi.Mux
	environment string
	briefings   Briefings
	tasks       TaskReader
	manus       TaskStatus
	logger      *slog.Logger
	httpServer  *http.Server
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:      router,
		environment: opts.Environment,
		briefings:   opts.Briefings,
		tasks:       opts.Tasks,
		manus:       opts.Manus,
		logger:      logger,
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)

	router.Route("/api", func(r chi.Router) {
		r.With(rateLimit(opts.BriefingRate, opts.BriefingBurst)).Post("/briefing", s.briefing)
		r.Post("/manus/webhook", s.manusWebhook)
		r.Get("/tasks/{id}", s.getTask)
		if opts.SlackEvents != nil {
			r.Method(http.MethodPost, "/slack/events", opts.SlackEvents)
		}
		if opts.TeamsMessages != nil {
			r.Method(http.MethodPost, "/teams/messages", opts.TeamsMessages)
		}
	})

	return s
}

// Start serves until Shutdown is called. It returns nil after a graceful
// shutdown.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"environment": s.environment,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

type briefingRequest struct {
	Text     string `json:"text"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

type briefingResponse struct {
	Message     string `json:"message"`
	TaskID      string `json:"task_id,omitempty"`
	ManusTaskID string `json:"manus_task_id,omitempty"`
	ManusPrompt string `json:"manus_prompt,omitempty"`
	Status      string `json:"status"`
}

func (s *Server) briefing(w http.ResponseWriter, r *http.Request) {
	var req briefingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), briefingTimeout)
	defer cancel()

	reply := s.briefings.HandleBriefing(ctx, processor.Briefing{
		Platform: store.PlatformHTTP,
		Text:     req.Text,
		UserID:   req.UserID,
		UserName: req.UserName,
	})

	resp := briefingResponse{
		TaskID:      reply.TaskID,
		ManusTaskID: reply.ManusTaskID,
		ManusPrompt: reply.Prompt,
		Status:      string(reply.Status),
	}
	switch reply.Status {
	case processor.ReplyNeedsInput:
		resp.Message = reply.Text()
		if resp.Message == "" {
			resp.Message = msgIncomplete
		}
	case processor.ReplyProcessing:
		resp.Message = reply.Messages[0]
	case processor.ReplyFailed:
		resp.Message = reply.Error
		if resp.Message == "" {
			resp.Message = reply.Text()
		}
	default:
		resp.Message = reply.Text()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) manusWebhook(w http.ResponseWriter, r *http.Request) {
	var ev manus.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	task, err := s.briefings.HandleWebhook(r.Context(), ev)
	if err != nil {
		s.logger.Error("webhook processing failed", "manus_task_id", ev.TaskID, "error", err)
		writeError(w, http.StatusInternalServerError, "webhook processing failed")
		return
	}
	if task == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "detail": msgUnknownTask})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"task_id":     task.ID.String(),
		"task_status": string(task.Status),
	})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, msgTaskNotFound)
		return
	}
	task, err := s.tasks.GetTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgTaskNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to load task", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	resp := taskResponse{Task: task}
	if s.manus != nil && task.Status == store.StatusProcessing && task.ManusTaskID != "" {
		ctx, cancel := context.WithTimeout(r.Context(), manusTimeout)
		defer cancel()
		remote, err := s.manus.GetTask(ctx, task.ManusTaskID)
		if err != nil {
			s.logger.Warn("failed to refresh manus status", "task_id", id, "manus_task_id", task.ManusTaskID, "error", err)
		} else {
			resp.ManusStatus = remote.Status
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type taskResponse struct {
	*store.Task
	ManusStatus string `json:"manus_status,omitempty"`
}

// rateLimit rejects requests above limit per second with 429.
func rateLimit(limit float64, burst int) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
