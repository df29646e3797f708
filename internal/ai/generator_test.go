package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/it-era/chat-gateway/internal/chat"
)

func completionServer(t *testing.T, content string, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		var req CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad completion payload: %v", err)
		}
		resp := map[string]any{
			"id":    "chatcmpl-1",
			"model": req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 50, "completion_tokens": 30, "total_tokens": 80},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestCompleteReturnsBrandedEnvelope(t *testing.T) {
	calls := 0
	srv := completionServer(t, "Certo, possiamo aiutarti con il backup cloud.", &calls)
	defer srv.Close()

	g, err := NewGenerator(NewClient("key", WithBaseURL(srv.URL)), GeneratorConfig{}, nil, nil)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	sess := &chat.Session{ID: "s1", ConversationID: "conv-1"}
	env, err := g.Complete(context.Background(), "come funziona il backup?", sess)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !strings.HasPrefix(env.Message, chat.BrandPrefix) {
		t.Errorf("reply missing brand prefix: %q", env.Message)
	}
	if env.Source != chat.SourceAI {
		t.Errorf("source = %q, want ai", env.Source)
	}
	if calls != 1 {
		t.Errorf("expected 1 API call, got %d", calls)
	}
}

func TestCompleteCostCeilingHandsOff(t *testing.T) {
	calls := 0
	srv := completionServer(t, "risposta", &calls)
	defer srv.Close()

	g, err := NewGenerator(NewClient("key", WithBaseURL(srv.URL)), GeneratorConfig{
		CostLimit:    0.002,
		CostPerToken: 0.001, // one call of estimate blows the ceiling
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	sess := &chat.Session{ID: "s1", ConversationID: "conv-1"}
	if _, err := g.Complete(context.Background(), "prima domanda", sess); err != nil {
		t.Fatalf("first Complete failed: %v", err)
	}

	env, err := g.Complete(context.Background(), "seconda domanda", sess)
	if err != nil {
		t.Fatalf("second Complete failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("over-ceiling conversation must not call the API, calls = %d", calls)
	}
	if !env.Escalate {
		t.Error("handoff envelope must escalate")
	}
	if !strings.Contains(env.Message, "039 888 2041") {
		t.Error("handoff must surface the phone number")
	}
}

func TestCompleteEmptyChoicesIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "x", "choices": []any{}})
	}))
	defer srv.Close()

	g, _ := NewGenerator(NewClient("key", WithBaseURL(srv.URL)), GeneratorConfig{}, nil, nil)
	sess := &chat.Session{ID: "s1", ConversationID: "conv-1"}

	if _, err := g.Complete(context.Background(), "ciao", sess); err == nil {
		t.Fatal("empty choices must error so the pipeline falls through")
	}
}

type stubKnowledge struct {
	snippets []string
	queries  []string
}

func (s *stubKnowledge) Query(ctx context.Context, text string, n int) ([]string, error) {
	s.queries = append(s.queries, text)
	return s.snippets, nil
}

func TestBuildPrompt(t *testing.T) {
	kb := &stubKnowledge{snippets: []string{"Backup cloud da 50 euro/mese"}}
	g, err := NewGenerator(NewClient("key"), GeneratorConfig{HistoryTurns: 2}, kb, nil)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	sess := &chat.Session{ID: "s1", ConversationID: "conv-1", Messages: []chat.Message{
		{Role: chat.RoleUser, Text: "uno"},
		{Role: chat.RoleBot, Text: "due"},
		{Role: chat.RoleUser, Text: "tre"},
		{Role: chat.RoleBot, Text: "quattro"},
	}}

	messages := g.buildPrompt(context.Background(), "il backup è cifrato?", sess)

	// system + 2 history turns + new message
	if len(messages) != 4 {
		t.Fatalf("prompt length = %d, want 4", len(messages))
	}
	if messages[0].Role != "system" || !strings.Contains(messages[0].Content, "Backup cloud da 50 euro/mese") {
		t.Error("system prompt must include the knowledge snippet")
	}
	if messages[1].Content != "tre" || messages[1].Role != "user" {
		t.Errorf("history truncation kept the wrong turns: %+v", messages[1])
	}
	if messages[2].Content != "quattro" || messages[2].Role != "assistant" {
		t.Errorf("bot turns must map to the assistant role: %+v", messages[2])
	}
	if messages[3].Content != "il backup è cifrato?" {
		t.Errorf("last message must be the new user turn: %+v", messages[3])
	}
	if len(kb.queries) != 1 || kb.queries[0] != "il backup è cifrato?" {
		t.Errorf("knowledge queried with %v", kb.queries)
	}
}

func TestUsageLedger(t *testing.T) {
	calls := 0
	srv := completionServer(t, "ok", &calls)
	defer srv.Close()

	g, _ := NewGenerator(NewClient("key", WithBaseURL(srv.URL)), GeneratorConfig{}, nil, nil)

	g.Complete(context.Background(), "ciao", &chat.Session{ID: "a", ConversationID: "conv-a"})
	g.Complete(context.Background(), "ciao", &chat.Session{ID: "b", ConversationID: "conv-b"})

	u := g.Usage()
	if u.Conversations != 2 {
		t.Errorf("Conversations = %d, want 2", u.Conversations)
	}
	if u.TotalCost <= 0 {
		t.Error("TotalCost must accumulate")
	}
}
