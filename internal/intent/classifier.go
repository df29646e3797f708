// Package intent maps raw user text to a chat intent using an ordered
// keyword rule table. Matching is case-insensitive and tolerant of accents
// in Italian text; the first matching rule wins.
package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/it-era/chat-gateway/internal/chat"
)

// Rule binds a set of keywords to an intent. Keywords are matched as
// substrings of the folded message text.
type Rule struct {
	Intent   chat.Intent
	Keywords []string
}

// DefaultRules is the production rule table. Order matters: pricing and
// emergency are checked before the broader service intents so that
// "preventivo firewall" quotes rather than lectures.
var DefaultRules = []Rule{
	{chat.IntentPricing, []string{"preventivo", "prezzo", "costo", "quanto costa", "quotazione"}},
	{chat.IntentEmergency, []string{"emergenza", "urgente", "server down", "malware", "ransomware", "non funziona"}},
	{chat.IntentSecurity, []string{"sicurezza", "firewall", "watchguard", "antivirus"}},
	{chat.IntentSupport, []string{"assistenza", "supporto", "aiuto", "problema"}},
	{chat.IntentBackup, []string{"backup", "recovery", "dati"}},
	{chat.IntentRepair, []string{"riparazione", "riparare", "pc", "mac", "laptop"}},
	{chat.IntentContact, []string{"contatti", "telefono", "email", "dove siete", "orari"}},
	{chat.IntentGreeting, []string{"ciao", "salve", "buongiorno", "buonasera"}},
}

// Classifier performs rule-table classification.
type Classifier struct {
	rules []Rule
}

// New builds a classifier over the given rules; nil means DefaultRules.
func New(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify returns the intent for text. It is total: empty or unmatched
// text classifies as generic.
func (c *Classifier) Classify(text string) chat.Intent {
	msg := Fold(text)
	if msg == "" {
		return chat.IntentGeneric
	}

	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(msg, kw) {
				return rule.Intent
			}
		}
	}
	return chat.IntentGeneric
}

// foldTransformer strips combining marks so "urgentissimo" and
// "urgentìssimo" fold to the same text.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases and removes diacritics. Keyword tables are written in
// folded form.
func Fold(text string) string {
	folded, _, err := transform.String(foldTransformer, text)
	if err != nil {
		// Fall back to plain lowercasing on malformed input.
		folded = text
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
