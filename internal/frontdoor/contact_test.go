package frontdoor

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	relay "github.com/it-era/chat-gateway/internal/mail"
	"github.com/it-era/chat-gateway/internal/retry"
)

type stubMailer struct {
	sent []*relay.Message
	err  error
}

func (m *stubMailer) Send(ctx context.Context, msg *relay.Message) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return "msg-1", nil
}

func newTestContactHandler(mailer Mailer) *ContactHandler {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return NewContactHandler(logger, mailer, retry.New(retry.Preset{Name: "once", MaxAttempts: 1}, nil), ContactConfig{
		FromAddress:  "noreply@it-era.it",
		AdminAddress: "info@it-era.it",
	})
}

func postContact(t *testing.T, h *ContactHandler, payload string, remoteAddr string) (*httptest.ResponseRecorder, contactReply) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(payload))
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var reply contactReply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("invalid reply JSON: %v", err)
	}
	return rec, reply
}

const validForm = `{"name":"Mario Rossi","email":"mario@acme.it","message":"Vorrei un preventivo per 10 postazioni"}`

func TestContactSubmission(t *testing.T) {
	mailer := &stubMailer{}
	h := newTestContactHandler(mailer)

	rec, reply := postContact(t, h, validForm, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !reply.Success {
		t.Error("valid submission must succeed")
	}
	if len(mailer.sent) != 2 {
		t.Fatalf("expected admin + courtesy emails, got %d", len(mailer.sent))
	}
	if mailer.sent[0].To[0] != "info@it-era.it" {
		t.Errorf("first email must go to the admin, went to %v", mailer.sent[0].To)
	}
	if mailer.sent[1].To[0] != "mario@acme.it" {
		t.Errorf("second email must go to the requester, went to %v", mailer.sent[1].To)
	}
}

func TestContactValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"missing name", `{"email":"a@b.it","message":"ciao"}`},
		{"missing email", `{"name":"Mario","message":"ciao"}`},
		{"missing message", `{"name":"Mario","email":"a@b.it"}`},
		{"bad email", `{"name":"Mario","email":"not-an-email","message":"ciao"}`},
		{"not json", `{{{`},
	}

	for _, tt := range tests {
		mailer := &stubMailer{}
		h := newTestContactHandler(mailer)

		rec, reply := postContact(t, h, tt.payload, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, rec.Code)
		}
		if reply.Success {
			t.Errorf("%s: success must be false", tt.name)
		}
		if len(mailer.sent) != 0 {
			t.Errorf("%s: no email must be sent", tt.name)
		}
	}
}

func TestContactHoneypot(t *testing.T) {
	mailer := &stubMailer{}
	h := newTestContactHandler(mailer)

	rec, reply := postContact(t, h,
		`{"name":"Bot","email":"bot@spam.it","message":"spam","website":"http://spam.example"}`, "")

	// Bots get a fake success and nothing is relayed.
	if rec.Code != http.StatusOK || !reply.Success {
		t.Errorf("honeypot must return a plausible success, got %d", rec.Code)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("honeypot submission must not be relayed, sent %d", len(mailer.sent))
	}
}

func TestContactRelayFailure(t *testing.T) {
	h := newTestContactHandler(&stubMailer{err: &retry.HTTPError{StatusCode: 403, Body: "bad key"}})

	rec, reply := postContact(t, h, validForm, "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if reply.Success {
		t.Error("relay failure must not report success")
	}
}

func TestContactPerIPWindowCap(t *testing.T) {
	mailer := &stubMailer{}
	h := newTestContactHandler(mailer)

	for i := 0; i < 5; i++ {
		rec, _ := postContact(t, h, validForm, "10.1.2.3:5555")
		if rec.Code != http.StatusOK {
			t.Fatalf("submission %d: status = %d", i+1, rec.Code)
		}
	}
	rec, _ := postContact(t, h, validForm, "10.1.2.3:5555")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("sixth submission: status = %d, want 429", rec.Code)
	}

	// A different address gets its own window.
	rec, _ = postContact(t, h, validForm, "10.9.9.9:5555")
	if rec.Code != http.StatusOK {
		t.Errorf("other address: status = %d, want 200", rec.Code)
	}
}
