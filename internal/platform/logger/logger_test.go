package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsAndHashes(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"api_key", "sk-123",
		"reviewer_id", "b6f1c9d2",
		"lesson_id", "l-1",
		"dangling",
	})
	if len(out) != 7 {
		t.Fatalf("expected 7 items, got %d: %v", len(out), out)
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key not redacted: %v", out[1])
	}
	hashed, _ := out[3].(string)
	if !strings.HasPrefix(hashed, "hash:") || len(hashed) != len("hash:")+12 {
		t.Fatalf("reviewer_id not hashed: %v", out[3])
	}
	if out[5] != "l-1" {
		t.Fatalf("lesson_id should pass through: %v", out[5])
	}
	if out[6] != "dangling" {
		t.Fatalf("dangling key dropped: %v", out)
	}
}

func TestSanitizeValueRedactsJWTLikeStrings(t *testing.T) {
	jwt := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig"
	if got := sanitizeValue("header", jwt); got != "[REDACTED]" {
		t.Fatalf("expected jwt redaction, got %v", got)
	}
	nested := sanitizeValue("payload", map[string]interface{}{"password": "x", "ok": 1})
	m := nested.(map[string]interface{})
	if m["password"] != "[REDACTED]" || m["ok"] != 1 {
		t.Fatalf("unexpected nested sanitize: %v", m)
	}
}

func TestNewWritesRotatingFileWhenConfigured(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_LEVEL", "info")

	log, err := New("production")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Info("indexed lesson", "lesson_id", "l-9")
	log.Debug("below level", "lesson_id", "l-10")
	log.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	got := string(raw)
	if !strings.Contains(got, "indexed lesson") || !strings.Contains(got, `"lesson_id":"l-9"`) {
		t.Fatalf("file sink missing entry: %s", got)
	}
	if strings.Contains(got, "below level") {
		t.Fatalf("debug entry written at info level: %s", got)
	}
}
