package slack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/salesbot/internal/processor"
	"github.com/MikeSquared-Agency/salesbot/internal/store"
)

const (
	maxBodyBytes   = 1 << 20
	maxClockSkew   = 5 * time.Minute
	processTimeout = 3 * time.Minute
	msgFailure     = "Ein Fehler ist aufgetreten. Bitte versuche es erneut."
)

var (
	errMissingSignature = errors.New("missing signature headers")
	errStaleRequest     = errors.New("request timestamp outside allowed skew")
	errBadSignature     = errors.New("signature mismatch")
)

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+>`)

// BriefingHandler runs one chat turn.
type BriefingHandler interface {
	HandleBriefing(ctx context.Context, b processor.Briefing) processor.Reply
}

// MessagePoster sends replies back to a channel.
type MessagePoster interface {
	PostMessage(ctx context.Context, channel, threadTS, text string) error
}

// Event is the inner event of an event_callback payload.
type Event struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype,omitempty"`
	User        string `json:"user"`
	BotID       string `json:"bot_id,omitempty"`
	Text        string `json:"text"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type,omitempty"`
	TS          string `json:"ts"`
	ThreadTS    string `json:"thread_ts,omitempty"`
}

type envelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	Event     *Event `json:"event,omitempty"`
}

// EventsHandler serves the Slack Events API endpoint. Events are
// acknowledged immediately and processed in the background.
type EventsHandler struct {
	signingSecret string
	briefings     BriefingHandler
	poster        MessagePoster
	logger        *slog.Logger
	now           func() time.Time
	dispatch      func(func())
}

// NewEventsHandler returns a handler. An empty signing secret disables
// request verification.
func NewEventsHandler(signingSecret string, briefings BriefingHandler, poster MessagePoster, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		signingSecret: signingSecret,
		briefings:     briefings,
		poster:        poster,
		logger:        logger,
		now:           time.Now,
		dispatch:      func(f func()) { go f() },
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	if h.signingSecret != "" {
		if err := h.verify(r.Header, body); err != nil {
			h.logger.Warn("rejected slack request", "error", err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	switch env.Type {
	case "url_verification":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"challenge": env.Challenge})
		return
	case "event_callback":
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	// Slack retries when the first delivery was not acknowledged in time;
	// the original is already being processed.
	if r.Header.Get("X-Slack-Retry-Num") != "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if ev := env.Event; ev != nil {
		if text, ok := briefingText(ev); ok {
			b := processor.Briefing{
				Platform:  store.PlatformSlack,
				Text:      text,
				UserID:    ev.User,
				UserName:  ev.User,
				ChannelID: ev.Channel,
			}
			threadTS := ev.ThreadTS
			h.dispatch(func() { h.process(b, threadTS, env.EventID) })
		}
	}
	w.WriteHeader(http.StatusOK)
}

// briefingText returns the text to process for ev, if any. Channel messages
// that mention the bot arrive again as app_mention and are skipped here.
func briefingText(ev *Event) (string, bool) {
	switch ev.Type {
	case "message":
		if ev.Subtype != "" || ev.BotID != "" {
			return "", false
		}
		if mentionPattern.MatchString(ev.Text) && ev.ChannelType != "im" {
			return "", false
		}
		return ev.Text, true
	case "app_mention":
		if ev.BotID != "" {
			return "", false
		}
		return strings.TrimSpace(mentionPattern.ReplaceAllString(ev.Text, "")), true
	}
	return "", false
}

func (h *EventsHandler) process(b processor.Briefing, threadTS, eventID string) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	log := h.logger.With("event_id", eventID, "channel", b.ChannelID, "user", b.UserID)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("slack briefing panicked", "panic", rec)
			h.post(ctx, b.ChannelID, threadTS, msgFailure, log)
		}
	}()

	reply := h.briefings.HandleBriefing(ctx, b)
	log.Info("slack briefing handled", "status", reply.Status, "task_id", reply.TaskID)
	for _, msg := range reply.Messages {
		h.post(ctx, b.ChannelID, threadTS, msg, log)
	}
}

func (h *EventsHandler) post(ctx context.Context, channel, threadTS, text string, log *slog.Logger) {
	if err := h.poster.PostMessage(ctx, channel, threadTS, text); err != nil {
		log.Error("failed to post slack reply", "error", err)
	}
}

func (h *EventsHandler) verify(header http.Header, body []byte) error {
	ts := header.Get("X-Slack-Request-Timestamp")
	sig := header.Get("X-Slack-Signature")
	if ts == "" || sig == "" {
		return errMissingSignature
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	skew := h.now().Sub(time.Unix(sec, 0))
	if skew > maxClockSkew || skew < -maxClockSkew {
		return errStaleRequest
	}
	if !hmac.Equal([]byte(Sign(h.signingSecret, ts, body)), []byte(sig)) {
		return errBadSignature
	}
	return nil
}

// Sign computes the v0 request signature for body.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}
