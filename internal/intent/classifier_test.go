package intent

import (
	"testing"

	"github.com/it-era/chat-gateway/internal/chat"
)

func TestClassifyKeywords(t *testing.T) {
	c := New(nil)

	tests := []struct {
		text string
		want chat.Intent
	}{
		{"Vorrei un preventivo per 10 postazioni", chat.IntentPricing},
		{"quanto costa l'assistenza?", chat.IntentPricing},
		{"EMERGENZA: server down da stamattina", chat.IntentEmergency},
		{"il gestionale non funziona", chat.IntentEmergency},
		{"abbiamo preso un ransomware", chat.IntentEmergency},
		{"mi serve un firewall WatchGuard", chat.IntentSecurity},
		{"ho un problema con la stampante", chat.IntentSupport},
		{"come gestite il backup dei dati?", chat.IntentBackup},
		{"riparazione laptop", chat.IntentRepair},
		{"dove siete?", chat.IntentContact},
		{"buongiorno", chat.IntentGreeting},
		{"xyz qwerty", chat.IntentGeneric},
		{"", chat.IntentGeneric},
	}

	for _, tt := range tests {
		if got := c.Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

// "preventivo firewall" must quote, not describe firewalls: pricing is
// checked before the service intents.
func TestClassifyRuleOrder(t *testing.T) {
	c := New(nil)

	if got := c.Classify("preventivo firewall"); got != chat.IntentPricing {
		t.Errorf("expected pricing for mixed keywords, got %q", got)
	}
	if got := c.Classify("urgente: problema firewall"); got != chat.IntentEmergency {
		t.Errorf("expected emergency before security/support, got %q", got)
	}
}

func TestClassifyFoldsAccents(t *testing.T) {
	c := New(nil)

	if got := c.Classify("È un'emergènza!"); got != chat.IntentEmergency {
		t.Errorf("accented text should still classify, got %q", got)
	}
}

func TestFold(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Città", "citta"},
		{"PERCHÉ", "perche"},
		{"ciao", "ciao"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCustomRules(t *testing.T) {
	c := New([]Rule{{chat.IntentContact, []string{"sede"}}})

	if got := c.Classify("dove si trova la sede"); got != chat.IntentContact {
		t.Errorf("custom rule not applied, got %q", got)
	}
	// Default rules are not consulted when a custom table is supplied.
	if got := c.Classify("preventivo"); got != chat.IntentGeneric {
		t.Errorf("expected generic with custom table, got %q", got)
	}
}
