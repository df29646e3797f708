// Package resolver orchestrates response resolution for one inbound chat
// message: cache, then orchestration, then AI completion, then the
// rule-based fallback. Each external step runs under a strict context
// deadline and is never retried on this path — a human is waiting, so a
// useful reply now beats the best possible reply later.
package resolver

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/it-era/chat-gateway/internal/cache"
	"github.com/it-era/chat-gateway/internal/chat"
	"github.com/it-era/chat-gateway/internal/fallback"
	"github.com/it-era/chat-gateway/internal/orchestrator"
)

const (
	defaultOrchestratorTimeout = 3 * time.Second
	defaultAITimeout           = 2 * time.Second
)

// Orchestrator is the external orchestration collaborator.
// *orchestrator.Client satisfies it.
type Orchestrator interface {
	Process(ctx context.Context, req *orchestrator.Request) (*orchestrator.Response, error)
}

// Completer is the AI completion collaborator. *ai.Generator satisfies it.
type Completer interface {
	Complete(ctx context.Context, message string, sess *chat.Session) (*chat.Envelope, error)
}

// Responder is the rule-based fallback. *fallback.Responder satisfies it.
type Responder interface {
	Respond(text string, intent chat.Intent, sess *chat.Session) *chat.Envelope
}

// Config tunes the per-step deadlines.
type Config struct {
	OrchestratorTimeout time.Duration
	AITimeout           time.Duration
}

// Resolver runs the resolution pipeline. The cache is injected so tests
// and deployments never share accidental state.
type Resolver struct {
	cache        *cache.ResponseCache
	orchestrator Orchestrator
	completer    Completer
	responder    Responder
	cfg          Config
	logger       *slog.Logger
	tracer       trace.Tracer
}

// New builds a Resolver. orchestrator and completer may be nil, which
// skips their steps; responder must not be nil.
func New(c *cache.ResponseCache, orch Orchestrator, completer Completer, responder Responder, cfg Config, logger *slog.Logger) *Resolver {
	if cfg.OrchestratorTimeout <= 0 {
		cfg.OrchestratorTimeout = defaultOrchestratorTimeout
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = defaultAITimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		cache:        c,
		orchestrator: orch,
		completer:    completer,
		responder:    responder,
		cfg:          cfg,
		logger:       logger,
		tracer:       otel.Tracer("chat-gateway/resolver"),
	}
}

// Resolve produces an envelope for one message. It never returns nil and
// never lets an error or panic escape: any internal failure becomes the
// emergency fallback envelope. Every path sets ProcessingTime.
func (r *Resolver) Resolve(ctx context.Context, message string, intent chat.Intent, sess *chat.Session) (env *chat.Envelope) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("resolution panicked",
				slog.Any("panic", p),
				slog.String("session_id", sess.ID),
			)
			env = fallback.Emergency()
		}
		env.ProcessingTime = time.Since(start)
	}()

	ctx, span := r.tracer.Start(ctx, "resolver.Resolve",
		trace.WithAttributes(attribute.String("chat.intent", string(intent))))
	defer span.End()

	contextKey := sess.Get("step")

	if cached, ok := r.cache.Get(message, intent, contextKey); ok {
		span.SetAttributes(attribute.String("chat.source", string(chat.SourceCache)))
		return cached
	}

	// Emergencies go straight to the canned response: the phone number
	// must never wait on an external call.
	if intent == chat.IntentEmergency {
		span.SetAttributes(attribute.String("chat.source", string(chat.SourceFallback)))
		return r.responder.Respond(message, intent, sess)
	}

	if env := r.tryOrchestrator(ctx, message, intent, sess); env != nil {
		r.cache.Set(message, intent, env, contextKey, 0)
		span.SetAttributes(attribute.String("chat.source", string(env.Source)))
		return env
	}

	if env := r.tryCompleter(ctx, message, intent, sess); env != nil {
		r.cache.Set(message, intent, env, contextKey, 0)
		span.SetAttributes(attribute.String("chat.source", string(env.Source)))
		return env
	}

	span.SetAttributes(attribute.String("chat.source", string(chat.SourceFallback)))
	return r.responder.Respond(message, intent, sess)
}

// tryOrchestrator runs the orchestration step under its deadline. A nil
// return means the step failed or is not configured; the pipeline moves
// on without retrying.
func (r *Resolver) tryOrchestrator(ctx context.Context, message string, intent chat.Intent, sess *chat.Session) *chat.Envelope {
	if r.orchestrator == nil {
		return nil
	}

	octx, cancel := context.WithTimeout(ctx, r.cfg.OrchestratorTimeout)
	defer cancel()

	resp, err := r.orchestrator.Process(octx, &orchestrator.Request{
		SessionID: sess.ID,
		Message:   message,
		Context:   sess.Context,
	})
	if err != nil {
		r.logger.Warn("orchestration failed, falling through",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if resp.LeadScore > 0 {
		sess.Set("lead_score", strconv.Itoa(resp.LeadScore))
	}

	env := &chat.Envelope{
		Message:  chat.Branded(resp.Response),
		Options:  resp.SuggestedActions,
		Source:   chat.SourceOrchestration,
		Priority: chat.PriorityMedium,
	}
	r.fillOptions(env, message, intent, sess)
	return env
}

// tryCompleter runs the AI step under its (shorter) deadline.
func (r *Resolver) tryCompleter(ctx context.Context, message string, intent chat.Intent, sess *chat.Session) *chat.Envelope {
	if r.completer == nil {
		return nil
	}

	actx, cancel := context.WithTimeout(ctx, r.cfg.AITimeout)
	defer cancel()

	env, err := r.completer.Complete(actx, message, sess)
	if err != nil || env == nil || env.Message == "" {
		if err != nil {
			r.logger.Warn("ai completion failed, falling through",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	env.Source = chat.SourceAI
	r.fillOptions(env, message, intent, sess)
	return env
}

// fillOptions borrows the canned quick replies when a generated envelope
// has none, so the widget always renders suggestions.
func (r *Resolver) fillOptions(env *chat.Envelope, message string, intent chat.Intent, sess *chat.Session) {
	if len(env.Options) > 0 {
		return
	}
	env.Options = r.responder.Respond(message, intent, sess).Options
}
