// Package frontdoor holds the public HTTP handlers: the chat endpoint the
// site widget talks to, the contact-form relay, and the health probe.
package frontdoor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/it-era/chat-gateway/internal/chat"
	"github.com/it-era/chat-gateway/internal/intent"
	"github.com/it-era/chat-gateway/internal/server"
	"github.com/it-era/chat-gateway/internal/session"
	"github.com/it-era/chat-gateway/internal/transcript"
)

// Resolver produces the reply envelope for one user message.
type Resolver interface {
	Resolve(ctx context.Context, message string, it chat.Intent, sess *chat.Session) *chat.Envelope
}

// Escalator forwards qualifying conversations to the on-call channel.
type Escalator interface {
	MaybeEscalate(sess *chat.Session, it chat.Intent, message string, env *chat.Envelope)
}

const rateLimitedMessage = "Troppe richieste. Attendi qualche minuto prima di inviare altri messaggi, " +
	"oppure chiamaci al 039 888 2041."

// ChatHandler serves POST /api/chat.
type ChatHandler struct {
	logger      *slog.Logger
	sessions    *session.Manager
	classifier  *intent.Classifier
	resolver    Resolver
	escalator   Escalator
	transcripts transcript.Recorder
}

func NewChatHandler(
	logger *slog.Logger,
	sessions *session.Manager,
	classifier *intent.Classifier,
	resolver Resolver,
	escalator Escalator,
	transcripts transcript.Recorder,
) *ChatHandler {
	if transcripts == nil {
		transcripts = transcript.Noop{}
	}
	return &ChatHandler{
		logger:      logger,
		sessions:    sessions,
		classifier:  classifier,
		resolver:    resolver,
		escalator:   escalator,
		transcripts: transcripts,
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action, err := chat.DecodeAction(r.Body)
	if err != nil {
		var bad *chat.BadRequestError
		if errors.As(err, &bad) {
			writeReply(w, http.StatusBadRequest, chat.Reply{Error: bad.Reason})
			return
		}
		writeReply(w, http.StatusBadRequest, chat.Reply{Error: "invalid request"})
		return
	}

	switch a := action.(type) {
	case chat.StartAction:
		h.handleStart(w, r, a)
	case chat.MessageAction:
		h.handleMessage(w, r, a)
	default:
		writeReply(w, http.StatusBadRequest, chat.Reply{Error: "unsupported action"})
	}
}

func (h *ChatHandler) handleStart(w http.ResponseWriter, r *http.Request, a chat.StartAction) {
	ctx := r.Context()

	// A start carrying an id may resume a live session, so it contends
	// with in-flight messages for the same transcript.
	if a.SessionID != "" {
		unlock := h.sessions.Lock(a.SessionID)
		defer unlock()
	}

	sess, err := h.sessions.Start(ctx, a.SessionID)
	if err != nil {
		server.AddError(ctx, err)
		writeReply(w, http.StatusInternalServerError, chat.Reply{Error: "session unavailable"})
		return
	}
	server.AddLogField(ctx, "session_id", sess.ID)

	env := h.resolver.Resolve(ctx, "", chat.IntentGreeting, sess)
	h.sessions.RecordMessage(sess, chat.RoleBot, env.Message, chat.IntentGreeting)
	if err := h.sessions.Save(ctx, sess); err != nil {
		server.AddError(ctx, err)
	}

	writeReply(w, http.StatusOK, chat.NewReply(sess.ID, chat.IntentGreeting, env))
}

func (h *ChatHandler) handleMessage(w http.ResponseWriter, r *http.Request, a chat.MessageAction) {
	ctx := r.Context()
	server.AddLogField(ctx, "session_id", a.SessionID)

	unlock := h.sessions.Lock(a.SessionID)
	defer unlock()

	sess, err := h.sessions.Load(ctx, a.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeReply(w, http.StatusNotFound, chat.Reply{Error: "session not found"})
			return
		}
		server.AddError(ctx, err)
		writeReply(w, http.StatusInternalServerError, chat.Reply{Error: "session unavailable"})
		return
	}

	allowed := h.sessions.CheckRateLimit(sess)
	limit := h.sessions.RateThreshold()
	remaining := limit - sess.RateCount
	if remaining < 0 {
		remaining = 0
	}
	server.SetRateLimits(ctx, &server.RateLimitInfo{
		Limit:     limit,
		Remaining: remaining,
		Reset:     sess.RateWindowStart.Add(h.sessions.RateWindow()).UTC().Format(time.RFC3339),
	})
	if !allowed {
		// Persist the incremented counter so the window keeps counting
		// rejected attempts too.
		if err := h.sessions.Save(ctx, sess); err != nil {
			server.AddError(ctx, err)
		}
		server.AddLogField(ctx, "rate_limited", "true")
		writeReply(w, http.StatusTooManyRequests, chat.Reply{
			Response:  rateLimitedMessage,
			SessionID: sess.ID,
			Error:     "rate limit exceeded",
		})
		return
	}

	it := h.classifier.Classify(a.Message)
	server.AddLogField(ctx, "intent", string(it))

	h.sessions.RecordMessage(sess, chat.RoleUser, a.Message, it)

	env := h.resolver.Resolve(ctx, a.Message, it, sess)
	server.AddLogField(ctx, "source", string(env.Source))

	h.sessions.RecordMessage(sess, chat.RoleBot, env.Message, it)
	h.escalator.MaybeEscalate(sess, it, a.Message, env)

	if err := h.transcripts.Record(ctx, &transcript.Interaction{
		SessionID:      sess.ID,
		ConversationID: sess.ConversationID,
		Intent:         string(it),
		Source:         string(env.Source),
		Fallback:       env.Fallback,
		DurationMs:     env.ProcessingTime.Milliseconds(),
		Message:        a.Message,
		Reply:          env.Message,
	}); err != nil {
		// Analytics must never fail the conversation.
		h.logger.Warn("transcript record failed", slog.String("error", err.Error()))
	}

	if err := h.sessions.Save(ctx, sess); err != nil {
		server.AddError(ctx, err)
	}

	writeReply(w, http.StatusOK, chat.NewReply(sess.ID, it, env))
}

func writeReply(w http.ResponseWriter, status int, reply chat.Reply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(reply)
}
