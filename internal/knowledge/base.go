// Package knowledge holds the IT-ERA service knowledge base as an
// in-process chromem collection. The resolver queries it to ground AI
// prompts with the snippets most relevant to the user's message.
package knowledge

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

const collectionName = "it-era-services"

// Snippet is one knowledge base document.
type Snippet struct {
	ID      string
	Topic   string
	Content string
}

// DefaultSnippets is the production service catalogue.
func DefaultSnippets() []Snippet {
	return []Snippet{
		{ID: "firewall", Topic: "sicurezza", Content: "IT-ERA è partner WatchGuard certificato: firewall next-generation per PMI da 2.500 euro, VPN aziendali, web filtering e monitoraggio sicurezza 24/7."},
		{ID: "antivirus", Topic: "sicurezza", Content: "Protezione antivirus enterprise con gestione centralizzata multi-postazione, protezione email e server, da 8 euro per postazione al mese."},
		{ID: "assessment", Topic: "sicurezza", Content: "Security assessment: audit vulnerabilità completo e penetration test di base, da 1.200 a 3.000 euro, con sopralluogo gratuito."},
		{ID: "backup-cloud", Topic: "backup", Content: "Backup cloud automatizzato con backup incrementale, crittografia end-to-end e test di recovery mensili, da 50 euro al mese per 100GB."},
		{ID: "disaster-recovery", Topic: "backup", Content: "Disaster recovery plan con piano di continuità operativa, RTO/RPO definiti e procedure documentate, preventivo su progetto."},
		{ID: "assistenza-remota", Topic: "assistenza", Content: "Assistenza remota sicura per problemi software, 80-100 euro l'ora, lun-ven 8:30-18:00. Prima consulenza sempre gratuita."},
		{ID: "assistenza-onsite", Topic: "assistenza", Content: "Interventi on-site presso la sede del cliente, installazione hardware e software, 120-150 euro l'ora più trasferta, stesso giorno in zona Brianza."},
		{ID: "manutenzione", Topic: "assistenza", Content: "Contratti di manutenzione preventiva con priorità negli interventi, da 200 euro al mese per 5 PC."},
		{ID: "riparazione", Topic: "riparazione", Content: "Riparazione hardware certificata per PC, laptop e Mac di tutte le marche, diagnosi gratuita, ricambi originali, da 50 euro più ricambi."},
		{ID: "sede", Topic: "contatti", Content: "Sede IT-ERA: Viale Risorgimento 32, 20871 Vimercate (MB). Telefono 039 888 2041, email info@it-era.it. Zona primaria: Vimercate, Monza, Agrate, Concorezzo."},
	}
}

// Base wraps a chromem collection of snippets.
type Base struct {
	collection *chromem.Collection
	count      int
}

// New builds the collection and indexes the snippets. With an OpenAI API
// key the collection uses hosted embeddings; otherwise chromem's default
// embedding function applies.
func New(ctx context.Context, snippets []Snippet, openAIKey string) (*Base, error) {
	db := chromem.NewDB()

	var embed chromem.EmbeddingFunc
	if openAIKey != "" {
		embed = chromem.NewEmbeddingFuncOpenAI(openAIKey, chromem.EmbeddingModelOpenAI3Small)
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create knowledge collection: %w", err)
	}

	for _, s := range snippets {
		doc := chromem.Document{
			ID:       s.ID,
			Content:  s.Content,
			Metadata: map[string]string{"topic": s.Topic},
		}
		if err := collection.AddDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("index snippet %s: %w", s.ID, err)
		}
	}

	return &Base{collection: collection, count: len(snippets)}, nil
}

// Query returns the contents of the n snippets most similar to text.
func (b *Base) Query(ctx context.Context, text string, n int) ([]string, error) {
	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := b.collection.Query(ctx, text, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query knowledge collection: %w", err)
	}

	contents := make([]string, 0, len(results))
	for _, r := range results {
		contents = append(contents, r.Content)
	}
	return contents, nil
}
