package frontdoor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/it-era/chat-gateway/internal/retry"
	"github.com/it-era/chat-gateway/internal/server"

	relay "github.com/it-era/chat-gateway/internal/mail"
)

// Mailer sends one relay message; satisfied by *mail.Client.
type Mailer interface {
	Send(ctx context.Context, msg *relay.Message) (string, error)
}

// ContactConfig wires the relay addresses and the per-IP submission cap.
type ContactConfig struct {
	FromAddress  string
	AdminAddress string
	MaxPerWindow int
	Window       time.Duration
}

// ContactHandler serves POST /api/contact: validate, relay the admin
// notification, and send the courtesy reply to the requester.
type ContactHandler struct {
	logger   *slog.Logger
	mailer   Mailer
	executor *retry.Executor
	cfg      ContactConfig

	mu      sync.Mutex
	windows map[string]*submissionWindow
	now     func() time.Time
}

type submissionWindow struct {
	start time.Time
	count int
}

func NewContactHandler(logger *slog.Logger, mailer Mailer, executor *retry.Executor, cfg ContactConfig) *ContactHandler {
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &ContactHandler{
		logger:   logger,
		mailer:   mailer,
		executor: executor,
		cfg:      cfg,
		windows:  make(map[string]*submissionWindow),
		now:      time.Now,
	}
}

type contactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Service string `json:"service"`
	Message string `json:"message"`
	// Honeypot field rendered invisibly in the form; bots fill it in.
	Website string `json:"website"`
}

type contactReply struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *ContactHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var form contactForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeContactReply(w, http.StatusBadRequest, contactReply{Error: "invalid JSON payload"})
		return
	}

	// Honeypot tripped: pretend success so scrapers learn nothing.
	if form.Website != "" {
		server.AddLogField(ctx, "honeypot", "true")
		writeContactReply(w, http.StatusOK, contactReply{Success: true, Message: "Richiesta ricevuta."})
		return
	}

	if reason := validateForm(&form); reason != "" {
		writeContactReply(w, http.StatusBadRequest, contactReply{Error: reason})
		return
	}

	if !h.allowSubmission(clientIP(r)) {
		writeContactReply(w, http.StatusTooManyRequests, contactReply{
			Error: "Troppe richieste da questo indirizzo. Riprova piu tardi o chiamaci al 039 888 2041.",
		})
		return
	}

	sub := relay.Submission{
		Name:    form.Name,
		Email:   form.Email,
		Phone:   form.Phone,
		Company: form.Company,
		Service: form.Service,
		Message: form.Message,
	}

	err := h.executor.Execute(ctx, func(ctx context.Context) error {
		_, err := h.mailer.Send(ctx, relay.AdminNotification(h.cfg.FromAddress, h.cfg.AdminAddress, sub))
		return err
	})
	if err != nil {
		server.AddError(ctx, err)
		writeContactReply(w, http.StatusBadGateway, contactReply{Error: "invio non riuscito, riprova tra poco"})
		return
	}

	// The courtesy copy is best-effort; the admin alert already landed.
	if err := h.executor.Execute(ctx, func(ctx context.Context) error {
		_, err := h.mailer.Send(ctx, relay.Courtesy(h.cfg.FromAddress, sub))
		return err
	}); err != nil {
		h.logger.Warn("courtesy email failed", slog.String("error", err.Error()))
	}

	writeContactReply(w, http.StatusOK, contactReply{
		Success: true,
		Message: "Grazie! Ti ricontatteremo entro 24 ore lavorative.",
	})
}

func validateForm(form *contactForm) string {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	form.Message = strings.TrimSpace(form.Message)

	switch {
	case form.Name == "":
		return "il nome è obbligatorio"
	case form.Email == "":
		return "l'email è obbligatoria"
	case form.Message == "":
		return "il messaggio è obbligatorio"
	case len(form.Message) > 5000:
		return "il messaggio è troppo lungo"
	}
	if _, err := mail.ParseAddress(form.Email); err != nil {
		return "email non valida"
	}
	return ""
}

func (h *ContactHandler) allowSubmission(ip string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	win, ok := h.windows[ip]
	if !ok || now.Sub(win.start) > h.cfg.Window {
		win = &submissionWindow{start: now}
		h.windows[ip] = win
	}
	win.count++
	return win.count <= h.cfg.MaxPerWindow
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeContactReply(w http.ResponseWriter, status int, reply contactReply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(reply)
}
