// Package escalate notifies a human-staffed channel when a conversation
// needs attention beyond automated reply: emergencies, escalating
// intents, and high-value leads. Delivery is fire-and-forget through the
// retry executor; a failed notification never affects the chat reply.
package escalate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/it-era/chat-gateway/internal/chat"
	"github.com/it-era/chat-gateway/internal/retry"
)

const (
	// ReasonEmergency fires on emergency-classified messages.
	ReasonEmergency = "emergency"
	// ReasonIntent fires when a reply template requests escalation.
	ReasonIntent = "intent"
	// ReasonHighValueLead fires when accumulated context signals cross
	// the lead score threshold.
	ReasonHighValueLead = "high_value_lead"

	defaultScoreThreshold = 70
	deliveryTimeout       = 30 * time.Second
)

// Config tunes the notifier.
type Config struct {
	WebhookURL     string
	ScoreThreshold int
}

// Notifier posts Teams-style MessageCards to the escalation webhook.
type Notifier struct {
	cfg        Config
	httpClient *http.Client
	executor   *retry.Executor
	logger     *slog.Logger

	wg sync.WaitGroup
}

// NotifierOption configures the notifier.
type NotifierOption func(*Notifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) NotifierOption {
	return func(n *Notifier) {
		n.httpClient = httpClient
	}
}

// New builds a Notifier. executor should carry an off-hot-path preset
// (Standard by default in main); nil falls back to a fresh Standard one.
func New(cfg Config, executor *retry.Executor, logger *slog.Logger, opts ...NotifierOption) *Notifier {
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = defaultScoreThreshold
	}
	if executor == nil {
		executor = retry.New(retry.Standard, logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		cfg:        cfg,
		httpClient: http.DefaultClient,
		executor:   executor,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// MaybeEscalate checks the qualifying conditions for this turn and, when
// one holds and has not fired for this session before, posts the
// notification in the background. It never blocks the reply and never
// returns an error.
func (n *Notifier) MaybeEscalate(sess *chat.Session, intent chat.Intent, message string, env *chat.Envelope) {
	if n.cfg.WebhookURL == "" {
		return
	}

	reason := ""
	switch {
	case intent == chat.IntentEmergency:
		reason = ReasonEmergency
	case env != nil && env.Escalate:
		reason = ReasonIntent
	case LeadScore(sess) >= n.cfg.ScoreThreshold:
		reason = ReasonHighValueLead
	default:
		return
	}

	if sess.Escalated[reason] {
		return
	}
	if sess.Escalated == nil {
		sess.Escalated = make(map[string]bool)
	}
	sess.Escalated[reason] = true

	card := n.buildCard(sess, intent, message, reason)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()

		err := n.executor.Execute(ctx, func(ctx context.Context) error {
			return n.post(ctx, card)
		})
		if err != nil {
			n.logger.Error("escalation webhook delivery failed",
				slog.String("conversation_id", sess.ConversationID),
				slog.String("reason", reason),
				slog.String("error", err.Error()),
			)
			return
		}
		n.logger.Info("escalation notified",
			slog.String("conversation_id", sess.ConversationID),
			slog.String("reason", reason),
		)
	}()
}

// Flush waits for in-flight deliveries; called on shutdown and in tests.
func (n *Notifier) Flush() {
	n.wg.Wait()
}

func (n *Notifier) post(ctx context.Context, card map[string]any) error {
	body, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal escalation card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create escalation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("escalation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &retry.HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// buildCard assembles a Teams MessageCard with the conversation facts.
func (n *Notifier) buildCard(sess *chat.Session, intent chat.Intent, message string, reason string) map[string]any {
	title := "Nuovo lead dal chatbot IT-ERA"
	color := "#ff6b35"
	if reason == ReasonEmergency {
		title = "EMERGENZA IT - intervento urgente"
		color = "#ff0000"
	}

	facts := []map[string]string{
		{"name": "Conversazione", "value": sess.ConversationID},
		{"name": "Motivo", "value": reason},
		{"name": "Intento", "value": string(intent)},
		{"name": "Messaggio", "value": message},
		{"name": "Lead score", "value": strconv.Itoa(LeadScore(sess))},
	}
	for _, slot := range []struct{ key, label string }{
		{"name", "Cliente"},
		{"company", "Azienda"},
		{"email", "Email"},
		{"phone", "Telefono"},
		{"budget", "Budget"},
		{"company_size", "Dimensione azienda"},
	} {
		if v := sess.Get(slot.key); v != "" {
			facts = append(facts, map[string]string{"name": slot.label, "value": v})
		}
	}

	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": color,
		"summary":    title,
		"sections": []map[string]any{{
			"activityTitle":    title,
			"activitySubtitle": "Richiesta dal chatbot IT-ERA - " + time.Now().Format("02/01/2006 15:04"),
			"facts":            facts,
		}},
	}
}

// LeadScore derives a 0-100 score from accumulated context slots. An
// orchestrator-provided score is used when it beats the local estimate.
func LeadScore(sess *chat.Session) int {
	score := 0
	if sess.Get("company") != "" {
		score += 20
	}
	if sess.Get("email") != "" {
		score += 15
	}
	if sess.Get("phone") != "" {
		score += 15
	}
	if sess.Get("budget") != "" {
		score += 20
	}
	if sess.Get("company_size") != "" {
		score += 15
	}
	if sess.Get("timeline") != "" {
		score += 15
	}

	if v := sess.Get("lead_score"); v != "" {
		if orchScore, err := strconv.Atoi(v); err == nil && orchScore > score {
			score = orchScore
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}
