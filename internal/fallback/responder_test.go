package fallback

import (
	"strings"
	"testing"

	"github.com/it-era/chat-gateway/internal/chat"
)

var allIntents = []chat.Intent{
	chat.IntentGreeting,
	chat.IntentPricing,
	chat.IntentEmergency,
	chat.IntentSecurity,
	chat.IntentSupport,
	chat.IntentBackup,
	chat.IntentRepair,
	chat.IntentContact,
	chat.IntentGeneric,
}

func TestRespondIsTotal(t *testing.T) {
	r := New()

	for _, it := range allIntents {
		env := r.Respond("qualsiasi testo", it, &chat.Session{})
		if env == nil {
			t.Fatalf("nil envelope for intent %q", it)
		}
		if env.Message == "" {
			t.Errorf("empty message for intent %q", it)
		}
		if !strings.HasPrefix(env.Message, chat.BrandPrefix) {
			t.Errorf("reply for %q missing brand prefix: %q", it, env.Message)
		}
		if len(env.Options) == 0 {
			t.Errorf("no quick replies for intent %q", it)
		}
		if env.Source != chat.SourceFallback {
			t.Errorf("intent %q: source = %q, want %q", it, env.Source, chat.SourceFallback)
		}
		if !env.Fallback {
			t.Errorf("intent %q: Fallback flag not set", it)
		}
	}
}

func TestRespondUnknownIntent(t *testing.T) {
	env := New().Respond("testo", chat.Intent("mystery"), &chat.Session{})
	if env == nil || env.Message == "" {
		t.Fatal("unknown intent must still produce a reply")
	}
}

func TestEmergencyTemplate(t *testing.T) {
	env := New().Respond("server down", chat.IntentEmergency, &chat.Session{})

	if !env.Escalate {
		t.Error("emergency reply must escalate")
	}
	if env.Priority != chat.PriorityHigh {
		t.Errorf("emergency priority = %q, want high", env.Priority)
	}
	if !strings.Contains(env.Message, Phone) {
		t.Error("emergency reply must surface the phone number")
	}
	found := false
	for _, opt := range env.Options {
		if strings.Contains(opt, Phone) {
			found = true
		}
	}
	if !found {
		t.Error("emergency quick replies must include the phone number")
	}
}

func TestEmergencyEnvelope(t *testing.T) {
	env := Emergency()

	if env.Source != chat.SourceEmergencyFallback {
		t.Errorf("source = %q, want %q", env.Source, chat.SourceEmergencyFallback)
	}
	if !env.Escalate || env.Priority != chat.PriorityHigh {
		t.Error("emergency envelope must escalate with high priority")
	}
	if !strings.Contains(env.Message, Phone) {
		t.Error("emergency envelope must carry the phone number")
	}
}
