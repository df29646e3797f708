package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// StartAction opens (or resumes) a session and asks for the greeting.
type StartAction struct {
	SessionID string
}

// MessageAction submits one user message to an existing session.
type MessageAction struct {
	SessionID string
	Message   string
}

// BadRequestError covers every malformed inbound payload: unknown action,
// invalid JSON, or missing required fields.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("bad request: %s", e.Reason)
}

// actionPayload is the raw wire shape; DecodeAction narrows it to one of
// the typed actions so the rest of the gateway never touches optional
// fields.
type actionPayload struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// DecodeAction reads and validates an inbound chat payload. It returns
// either a StartAction or a MessageAction; every failure is a
// *BadRequestError.
func DecodeAction(r io.Reader) (any, error) {
	var p actionPayload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, &BadRequestError{Reason: "invalid JSON payload"}
	}

	switch p.Action {
	case "start":
		return StartAction{SessionID: p.SessionID}, nil
	case "message":
		if strings.TrimSpace(p.Message) == "" {
			return nil, &BadRequestError{Reason: "message action requires a non-empty message"}
		}
		if p.SessionID == "" {
			return nil, &BadRequestError{Reason: "message action requires a sessionId"}
		}
		return MessageAction{SessionID: p.SessionID, Message: p.Message}, nil
	case "":
		return nil, &BadRequestError{Reason: "missing action"}
	default:
		return nil, &BadRequestError{Reason: "unknown action: " + p.Action}
	}
}

// Reply is the outbound wire envelope for the chat endpoint.
type Reply struct {
	Success      bool     `json:"success"`
	Response     string   `json:"response,omitempty"`
	Options      []string `json:"options,omitempty"`
	Source       string   `json:"source,omitempty"`
	Fallback     bool     `json:"fallback"`
	SessionID    string   `json:"sessionId,omitempty"`
	Intent       string   `json:"intent,omitempty"`
	Priority     string   `json:"priority,omitempty"`
	Escalate     bool     `json:"escalate,omitempty"`
	ResponseTime int64    `json:"responseTime,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// NewReply flattens an envelope into the wire shape.
func NewReply(sessionID string, intent Intent, env *Envelope) Reply {
	return Reply{
		Success:      true,
		Response:     env.Message,
		Options:      env.Options,
		Source:       string(env.Source),
		Fallback:     env.Fallback,
		SessionID:    sessionID,
		Intent:       string(intent),
		Priority:     string(env.Priority),
		Escalate:     env.Escalate,
		ResponseTime: env.ProcessingTime.Milliseconds(),
	}
}
