package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracerExportsToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	shutdown, err := InitTracer("chat-gateway-test", &buf, logger)
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}

	_, span := otel.Tracer("frontdoor").Start(context.Background(), "resolve")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "resolve") {
		t.Errorf("span name missing from export: %s", out)
	}
	if !strings.Contains(out, "chat-gateway-test") {
		t.Errorf("service name missing from export: %s", out)
	}
}
