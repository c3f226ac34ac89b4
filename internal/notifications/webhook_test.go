package notifications

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kjannette/brent-backend/internal/httputil"
)

func quietSender(url, name string) (*Sender, *bytes.Buffer) {
	var buf bytes.Buffer
	s := NewSender(url, name)
	s.out = &buf
	s.retry = httputil.RetryConfig{MaxAttempts: 2, BaseDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond}
	return s, &buf
}

func TestSend_NoWebhook(t *testing.T) {
	s, out := quietSender("", "TestExtractor")
	if s.Enabled() {
		t.Fatal("should not be enabled with empty URL")
	}
	s.Send("Saved 3 new daily entries")
	if !strings.Contains(out.String(), "[TestExtractor] Saved 3 new daily entries") {
		t.Fatalf("unexpected stdout line: %q", out.String())
	}
}

func TestSend_SlackFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, _ := quietSender(srv.URL, "TestExtractor")
	if !s.Enabled() {
		t.Fatal("should be enabled")
	}

	s.Send("No new daily data to save")

	if received["username"] != "TestExtractor" {
		t.Fatalf("username: got %s", received["username"])
	}
	if received["text"] != "`[TestExtractor] No new daily data to save`" {
		t.Fatalf("text: got %q", received["text"])
	}
}

func TestSend_DiscordFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s, _ := quietSender(srv.URL+"/discord/webhook", "BrentBot")
	s.Send("Failed to retrieve daily prices")

	if received["content"] == "" {
		t.Fatal("content should not be empty for Discord")
	}
	if _, hasText := received["text"]; hasText {
		t.Fatal("Discord payload should not have 'text' field")
	}
}

func TestSend_WebhookError(t *testing.T) {
	s, out := quietSender("http://127.0.0.1:1/bogus", "TestExtractor")
	s.Send("this will fail gracefully")
	if !strings.Contains(out.String(), "[NOTIFY] webhook failed") {
		t.Fatalf("expected failure line, got %q", out.String())
	}
}

func TestSend_WebhookRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s, out := quietSender(srv.URL, "TestExtractor")
	s.Send("hello")
	if !strings.Contains(out.String(), "HTTP 403") {
		t.Fatalf("expected 403 line, got %q", out.String())
	}
}

func TestDefaultName(t *testing.T) {
	s := NewSender("", "")
	if s.name != defaultName {
		t.Fatalf("expected default name, got %s", s.name)
	}
}
