// Package fallback is the rule-based responder: one canned, branded reply
// template per intent. It is pure and total — every input string yields a
// complete envelope without touching the network or the clock.
package fallback

import (
	"github.com/it-era/chat-gateway/internal/chat"
)

// Phone is the human contact surfaced on emergency and apology paths.
const Phone = "039 888 2041"

// template is the static reply material for one intent.
type template struct {
	message  string
	options  []string
	escalate bool
	priority chat.Priority
}

var templates = map[chat.Intent]template{
	chat.IntentGreeting: {
		message: "Ciao! Sono l'assistente virtuale IT-ERA. Siamo a Vimercate (MB) con oltre 10 anni di esperienza nei servizi IT per le aziende della Brianza. Come posso aiutarti oggi?",
		options: []string{
			"Sicurezza informatica",
			"Assistenza IT",
			"Backup e recovery",
			"Riparazione hardware",
			"Preventivo gratuito",
			"Contatti",
		},
		priority: chat.PriorityLow,
	},
	chat.IntentPricing: {
		message: "Preventivo personalizzato GRATUITO. Per una stima precisa dicci: che servizio ti serve, quante postazioni hai e in che zona sei. Chiamaci al " + Phone + " o scrivi a info@it-era.it — sopralluogo sempre gratuito e senza impegno, ti ricontattiamo entro 24 ore.",
		options: []string{
			"Compila richiesta",
			"Chiama ora: " + Phone,
			"Invia email",
			"Sopralluogo gratuito",
		},
		escalate: true,
		priority: chat.PriorityMedium,
	},
	chat.IntentEmergency: {
		message: "EMERGENZA IT — intervento immediato. Chiama subito il " + Phone + ": interveniamo per server down, attacchi malware/ransomware, perdita dati e problemi di rete. Zona Vimercate/Monza: 2-4 ore, clienti con contratto in priorità assoluta.",
		options: []string{
			"Chiama ora: " + Phone,
			"Server down",
			"Attacco malware",
			"Perdita dati",
			"Rete non funziona",
		},
		escalate: true,
		priority: chat.PriorityHigh,
	},
	chat.IntentSecurity: {
		message: "Sicurezza informatica è la nostra specializzazione: partner WatchGuard certificato, firewall next-generation per PMI da 2.500 euro, antivirus enterprise da 8 euro/postazione/mese, security assessment completi. Per un preventivo preciso il sopralluogo è gratuito.",
		options: []string{
			"Firewall WatchGuard",
			"Antivirus aziendale",
			"Audit sicurezza",
			"Preventivo gratuito",
		},
		priority: chat.PriorityMedium,
	},
	chat.IntentSupport: {
		message: "Assistenza IT professionale con 10+ anni di esperienza: supporto remoto (80-100 euro/ora), interventi on-site in giornata in Brianza (120-150 euro/ora) e contratti di manutenzione da 200 euro/mese. La prima consulenza è sempre gratuita.",
		options: []string{
			"Assistenza remota",
			"Intervento in sede",
			"Contratto manutenzione",
			"Consulenza gratuita",
		},
		priority: chat.PriorityMedium,
	},
	chat.IntentBackup: {
		message: "Backup e disaster recovery: backup cloud automatizzato con crittografia end-to-end da 50 euro/mese per 100GB, piani di continuità operativa con RTO/RPO definiti e assessment dati gratuito. Non rischiare di perdere anni di lavoro.",
		options: []string{
			"Backup cloud",
			"Disaster recovery",
			"Assessment gratuito",
			"Preventivo backup",
		},
		priority: chat.PriorityMedium,
	},
	chat.IntentRepair: {
		message: "Riparazione hardware certificata: PC e laptop di tutte le marche con diagnosi gratuita, assistenza Mac, server e storage NAS/SAN. Interventi rapidi: Vimercate/Monza in 2-4 ore, Brianza in giornata.",
		options: []string{
			"Riparazione PC",
			"Assistenza Mac",
			"Server hardware",
			"Diagnosi gratuita",
		},
		priority: chat.PriorityMedium,
	},
	chat.IntentContact: {
		message: "Contatti IT-ERA — Viale Risorgimento 32, 20871 Vimercate (MB). Telefono: " + Phone + ", email: info@it-era.it, sito: www.it-era.it. Orari: lun-ven 8:30-18:00, reperibilità per emergenze dei clienti. Zona di servizio: Vimercate, Monza e Brianza, Milano Est, Bergamo Ovest; assistenza remota in tutta Italia.",
		options: []string{
			"Chiama: " + Phone,
			"Email: info@it-era.it",
			"Come raggiungerci",
			"Preventivo gratuito",
		},
		priority: chat.PriorityLow,
	},
	chat.IntentGeneric: {
		message: "Sono l'assistente virtuale IT-ERA, il brand di Bulltech specializzato in servizi IT per le aziende della Brianza. Posso aiutarti con sicurezza informatica, assistenza, backup, riparazioni e preventivi. Cosa ti serve?",
		options: []string{
			"Servizi IT-ERA",
			"Sicurezza",
			"Assistenza",
			"Preventivo",
		},
		priority: chat.PriorityLow,
	},
}

// Responder synthesizes canned replies.
type Responder struct{}

// New returns a Responder.
func New() *Responder { return &Responder{} }

// Respond returns the canned envelope for intent. Unknown intents get the
// generic template, so the responder is total.
func (r *Responder) Respond(text string, intent chat.Intent, sess *chat.Session) *chat.Envelope {
	t, ok := templates[intent]
	if !ok {
		t = templates[chat.IntentGeneric]
	}
	return &chat.Envelope{
		Message:  chat.Branded(t.message),
		Options:  append([]string(nil), t.options...),
		Source:   chat.SourceFallback,
		Fallback: true,
		Escalate: t.escalate,
		Priority: t.priority,
	}
}

// Emergency is the envelope of last resort, produced when the resolution
// pipeline itself fails. It is the one reply that must always be
// constructible.
func Emergency() *chat.Envelope {
	return &chat.Envelope{
		Message: chat.Branded("Ci scusiamo, si è verificato un problema tecnico. " +
			"Un nostro esperto è comunque a tua disposizione: chiamaci al " + Phone + "."),
		Options: []string{
			"Chiama ora: " + Phone,
			"Riprova tra poco",
		},
		Source:   chat.SourceEmergencyFallback,
		Fallback: true,
		Escalate: true,
		Priority: chat.PriorityHigh,
	}
}
