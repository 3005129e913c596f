package teams

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/salesbot/internal/processor"
	"github.com/MikeSquared-Agency/salesbot/internal/store"
)

const (
	maxBodyBytes   = 1 << 20
	processTimeout = 3 * time.Minute

	msgFailure  = "Ein Fehler ist aufgetreten. Bitte versuche es erneut."
	unknownUser = "Unbekannt"
)

const msgGreeting = "Hallo! Ich bin der SalesBot.\n\n" +
	"Schicke mir ein Briefing und ich erstelle eine Wettbewerbsanalyse-Präsentation.\n\n" +
	"Schreibe \"hilfe\" für Details."

// BriefingHandler runs one chat turn.
type BriefingHandler interface {
	HandleBriefing(ctx context.Context, b processor.Briefing) processor.Reply
}

// Sender delivers activities to a conversation.
type Sender interface {
	Send(ctx context.Context, ref ConversationReference, act Activity) error
}

// Handler serves the Bot Framework messaging endpoint.
type Handler struct {
	auth      *Authenticator
	sender    Sender
	briefings BriefingHandler
	logger    *slog.Logger
	dispatch  func(func())
}

// NewHandler returns a handler. A nil auth accepts unauthenticated
// activities, as used with the local emulator.
func NewHandler(auth *Authenticator, sender Sender, briefings BriefingHandler, logger *slog.Logger) *Handler {
	return &Handler{
		auth:      auth,
		sender:    sender,
		briefings: briefings,
		logger:    logger,
		dispatch:  func(f func()) { go f() },
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}
	var act Activity
	if err := json.Unmarshal(body, &act); err != nil {
		http.Error(w, "invalid activity", http.StatusBadRequest)
		return
	}

	if h.auth != nil {
		if err := h.auth.Authenticate(r.Context(), r.Header.Get("Authorization"), act.ServiceURL); err != nil {
			h.logger.Warn("rejected teams activity", "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	switch act.Type {
	case ActivityMessage:
		h.dispatch(func() { h.onMessage(act) })
	case ActivityConversationUpdate:
		h.dispatch(func() { h.onMembersAdded(act) })
	default:
		h.logger.Debug("ignoring teams activity", "type", act.Type)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) onMessage(act Activity) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	log := h.logger.With("conversation_id", act.Conversation.ID, "user_id", act.From.ID)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("teams briefing panicked", "panic", rec)
			h.reply(ctx, act, msgFailure, log)
		}
	}()

	ref, err := EncodeReference(act.Reference())
	if err != nil {
		log.Error("failed to encode conversation reference", "error", err)
		h.reply(ctx, act, msgFailure, log)
		return
	}

	name := act.From.Name
	if name == "" {
		name = unknownUser
	}
	reply := h.briefings.HandleBriefing(ctx, processor.Briefing{
		Platform:              store.PlatformTeams,
		Text:                  StripMentions(act),
		UserID:                act.From.ID,
		UserName:              name,
		ChannelID:             act.Conversation.ID,
		ConversationReference: ref,
	})
	log.Info("teams briefing handled", "status", reply.Status, "task_id", reply.TaskID)

	for _, msg := range reply.Messages {
		h.reply(ctx, act, msg, log)
	}
}

func (h *Handler) onMembersAdded(act Activity) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	for _, m := range act.MembersAdded {
		if m.ID == act.Recipient.ID {
			continue
		}
		if err := h.sender.Send(ctx, act.Reference(), Activity{Type: ActivityMessage, Text: msgGreeting}); err != nil {
			h.logger.Error("failed to send greeting", "conversation_id", act.Conversation.ID, "error", err)
		}
	}
}

func (h *Handler) reply(ctx context.Context, in Activity, text string, log *slog.Logger) {
	err := h.sender.Send(ctx, in.Reference(), Activity{Type: ActivityMessage, Text: text, ReplyToID: in.ID})
	if err != nil {
		log.Error("failed to send teams reply", "error", err)
	}
}
