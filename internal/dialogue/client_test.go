package dialogue

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GrupoSinergia/voip-agent/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.DialogueConfig{
		WebhookURL: server.URL + "/webhook",
		Timeout:    5,
	}, discardLogger())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	return client, server
}

func TestReply(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}

		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"text":"hola"}` {
			t.Errorf("Unexpected request body: %s", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"buenos días"}`))
	})

	reply, err := client.Reply(context.Background(), "hola")
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if reply != "buenos días" {
		t.Errorf("Expected %q, got %q", "buenos días", reply)
	}
}

func TestReplyTrimsWhitespace(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"  hola  "}`))
	})

	reply, err := client.Reply(context.Background(), "hola")
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if reply != "hola" {
		t.Errorf("Expected trimmed reply, got %q", reply)
	}
}

func TestReplyWebhookError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	// Webhook errors yield an empty reply, not a failure
	reply, err := client.Reply(context.Background(), "hola")
	if err != nil {
		t.Fatalf("Expected no error for webhook 500, got %v", err)
	}
	if reply != "" {
		t.Errorf("Expected empty reply, got %q", reply)
	}
}

func TestReplyMalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	reply, err := client.Reply(context.Background(), "hola")
	if err != nil {
		t.Fatalf("Expected no error for malformed body, got %v", err)
	}
	if reply != "" {
		t.Errorf("Expected empty reply, got %q", reply)
	}
}

func TestReplyTransportError(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	if _, err := client.Reply(context.Background(), "hola"); err == nil {
		t.Error("Expected error for unreachable webhook")
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(config.DialogueConfig{Timeout: 5}, discardLogger()); err == nil {
		t.Error("Expected error for empty webhook url")
	}
}
