package mail

import (
	"fmt"
	"html"
	"strings"
)

// Submission carries the contact-form fields used to build the two
// notification emails.
type Submission struct {
	Name    string
	Email   string
	Phone   string
	Company string
	Service string
	Message string
}

// AdminNotification builds the internal alert email for a new contact
// submission.
func AdminNotification(from, to string, s Submission) *Message {
	var b strings.Builder
	b.WriteString("<h2>Nuova richiesta di contatto</h2>")
	b.WriteString("<table>")
	writeRow(&b, "Nome", s.Name)
	writeRow(&b, "Email", s.Email)
	writeRow(&b, "Telefono", s.Phone)
	writeRow(&b, "Azienda", s.Company)
	writeRow(&b, "Servizio", s.Service)
	b.WriteString("</table>")
	if s.Message != "" {
		b.WriteString("<h3>Messaggio</h3><p>")
		b.WriteString(html.EscapeString(s.Message))
		b.WriteString("</p>")
	}

	return &Message{
		From:    from,
		To:      []string{to},
		Subject: fmt.Sprintf("[IT-ERA] Nuovo contatto: %s", s.Name),
		HTML:    b.String(),
	}
}

// Courtesy builds the confirmation email sent back to the requester.
func Courtesy(from string, s Submission) *Message {
	var b strings.Builder
	b.WriteString("<p>Ciao ")
	b.WriteString(html.EscapeString(s.Name))
	b.WriteString(",</p>")
	b.WriteString("<p>Grazie per averci contattato. Il team IT-ERA ti rispondera entro 24 ore lavorative.</p>")
	b.WriteString("<p>Per urgenze chiamaci al 039 888 2041.</p>")
	b.WriteString("<p>IT-ERA - Assistenza Informatica</p>")

	return &Message{
		From:    from,
		To:      []string{s.Email},
		Subject: "[IT-ERA] Abbiamo ricevuto la tua richiesta",
		HTML:    b.String(),
	}
}

func writeRow(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "<tr><td><b>%s</b></td><td>%s</td></tr>", label, html.EscapeString(value))
}
