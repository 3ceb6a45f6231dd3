package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"saccochain/observability/logging"
)

func TestStartupLogRedactsSecrets(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{}))

	secret := "hook-signing-secret-123"
	logger.Info("Webhook dispatcher enabled",
		slog.String("endpoint", "https://hooks.example/sacco"),
		logging.MaskField("secret", secret))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log payload: %v", err)
	}

	if logging.IsAllowlisted("secret") {
		t.Fatalf("secret should not be allowlisted for logging: %v", logging.RedactionAllowlist())
	}

	raw := buf.Bytes()
	if bytes.Contains(raw, []byte(secret)) {
		t.Fatalf("log output leaked signing secret: %s", raw)
	}

	value, ok := entry["secret"].(string)
	if !ok {
		t.Fatalf("expected string secret attribute, got %T", entry["secret"])
	}
	if value != logging.RedactedValue {
		t.Fatalf("expected redacted secret, got %q", value)
	}

	if got, ok := entry["endpoint"].(string); !ok || got != "https://hooks.example/sacco" {
		t.Fatalf("endpoint should pass through unmasked, got %v", entry["endpoint"])
	}
}
