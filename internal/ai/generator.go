package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/it-era/chat-gateway/internal/chat"
)

const systemPrompt = `Sei l'assistente virtuale di IT-ERA, il brand di Bulltech specializzato in servizi IT per le aziende della Brianza. Sede: Viale Risorgimento 32, Vimercate (MB). Telefono: 039 888 2041. Email: info@it-era.it.

Personalità: professionale, competente, amichevole. Rispondi sempre in italiano, in massimo 2-3 frasi.

Obiettivo: pre-qualificare i lead e raccogliere le informazioni per un preventivo (servizio richiesto, numero postazioni, zona, dimensione azienda). Se il cliente vuole parlare con una persona o il problema è urgente, invitalo a chiamare il numero.`

// KnowledgeSource supplies grounding snippets for the prompt. It is
// satisfied by *knowledge.Base.
type KnowledgeSource interface {
	Query(ctx context.Context, text string, n int) ([]string, error)
}

// GeneratorConfig tunes the generator.
type GeneratorConfig struct {
	Model        string
	MaxTokens    int
	Temperature  float64
	CostPerToken float64

	// CostLimit is the per-conversation spend ceiling. Conversations over
	// the ceiling get a human-handoff reply instead of an API call.
	CostLimit float64

	// HistoryTurns is how many prior transcript turns to replay.
	HistoryTurns int

	// Snippets is how many knowledge snippets ground each prompt.
	Snippets int
}

// Generator produces AI replies with prompt grounding and cost control.
type Generator struct {
	client    *Client
	cfg       GeneratorConfig
	knowledge KnowledgeSource
	logger    *slog.Logger
	codec     tokenizer.Codec

	mu    sync.Mutex
	costs map[string]float64
}

// NewGenerator builds a Generator. knowledge may be nil, which disables
// prompt grounding.
func NewGenerator(client *Client, cfg GeneratorConfig, knowledge KnowledgeSource, logger *slog.Logger) (*Generator, error) {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 150
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.CostPerToken <= 0 {
		cfg.CostPerToken = 0.00015
	}
	if cfg.CostLimit <= 0 {
		cfg.CostLimit = 0.10
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 6
	}
	if cfg.Snippets <= 0 {
		cfg.Snippets = 2
	}
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	return &Generator{
		client:    client,
		cfg:       cfg,
		knowledge: knowledge,
		logger:    logger,
		codec:     codec,
		costs:     make(map[string]float64),
	}, nil
}

// Complete produces an AI envelope for one user message. When the
// conversation's cost ledger is over the ceiling it returns a handoff
// envelope without calling the API.
func (g *Generator) Complete(ctx context.Context, message string, sess *chat.Session) (*chat.Envelope, error) {
	if g.conversationCost(sess.ConversationID) >= g.cfg.CostLimit {
		g.logger.Info("conversation cost ceiling reached, handing off",
			slog.String("conversation_id", sess.ConversationID),
		)
		return &chat.Envelope{
			Message:  chat.Branded("Per continuare al meglio ti metto in contatto con un nostro esperto: chiamaci al 039 888 2041 o lascia i tuoi recapiti."),
			Options:  []string{"Chiama ora: 039 888 2041", "Lascia i tuoi recapiti"},
			Source:   chat.SourceAI,
			Escalate: true,
			Priority: chat.PriorityMedium,
		}, nil
	}

	messages := g.buildPrompt(ctx, message, sess)

	// Pre-call estimate keeps a runaway prompt from blowing the ceiling
	// before usage comes back.
	estimate := g.estimateTokens(messages) + g.cfg.MaxTokens
	g.trackCost(sess.ConversationID, float64(estimate)*g.cfg.CostPerToken)

	resp, err := g.client.CreateCompletion(ctx, &CompletionRequest{
		Model:       g.cfg.Model,
		Messages:    messages,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("completion returned no content")
	}

	// Replace the estimate with the billed usage.
	if resp.Usage.TotalTokens > 0 {
		g.trackCost(sess.ConversationID, float64(resp.Usage.TotalTokens-estimate)*g.cfg.CostPerToken)
	}

	return &chat.Envelope{
		Message:  chat.Branded(strings.TrimSpace(resp.Choices[0].Message.Content)),
		Source:   chat.SourceAI,
		Priority: chat.PriorityMedium,
	}, nil
}

// buildPrompt assembles system prompt, knowledge grounding, recent
// transcript, and the new message.
func (g *Generator) buildPrompt(ctx context.Context, message string, sess *chat.Session) []ChatMessage {
	system := systemPrompt
	if g.knowledge != nil {
		snippets, err := g.knowledge.Query(ctx, message, g.cfg.Snippets)
		if err != nil {
			g.logger.Warn("knowledge query failed", slog.String("error", err.Error()))
		} else if len(snippets) > 0 {
			system += "\n\nInformazioni sui servizi pertinenti:\n- " + strings.Join(snippets, "\n- ")
		}
	}

	messages := []ChatMessage{{Role: "system", Content: system}}

	history := sess.Messages
	if len(history) > g.cfg.HistoryTurns {
		history = history[len(history)-g.cfg.HistoryTurns:]
	}
	for _, m := range history {
		role := "user"
		if m.Role == chat.RoleBot {
			role = "assistant"
		}
		messages = append(messages, ChatMessage{Role: role, Content: m.Text})
	}

	return append(messages, ChatMessage{Role: "user", Content: message})
}

func (g *Generator) estimateTokens(messages []ChatMessage) int {
	total := 0
	for _, m := range messages {
		ids, _, err := g.codec.Encode(m.Content)
		if err != nil {
			// Rough fallback when encoding fails.
			total += len(m.Content) / 4
			continue
		}
		total += len(ids)
	}
	return total
}

func (g *Generator) conversationCost(conversationID string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.costs[conversationID]
}

func (g *Generator) trackCost(conversationID string, delta float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.costs[conversationID] + delta
	if c < 0 {
		c = 0
	}
	g.costs[conversationID] = c
}

// UsageStats summarizes the cost ledger.
type UsageStats struct {
	Conversations int
	TotalCost     float64
}

// Usage returns the current ledger totals.
func (g *Generator) Usage() UsageStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	var total float64
	for _, c := range g.costs {
		total += c
	}
	return UsageStats{Conversations: len(g.costs), TotalCost: total}
}
