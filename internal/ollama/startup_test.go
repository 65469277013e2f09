package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEnsureReady_OllamaDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	err := EnsureReady(context.Background(), New(srv.URL), "llama3", io.Discard)
	if err == nil {
		t.Fatal("expected error when Ollama is down")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention reachability", err)
	}
}

func TestEnsureReady_PullsMissingModel(t *testing.T) {
	var pulled, chatted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write(tagsJSON("mistral:latest"))
		case "/api/pull":
			pulled = true
			json.NewEncoder(w).Encode(PullProgress{Status: "success"})
		case "/api/chat":
			chatted = true
			json.NewEncoder(w).Encode(chatResponse{Message: Message{Role: "assistant", Content: "pong"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var out bytes.Buffer
	if err := EnsureReady(context.Background(), New(srv.URL), "llama3", &out); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if !pulled {
		t.Error("missing model was not pulled")
	}
	if !chatted {
		t.Error("model was not warmed up")
	}
	if !strings.Contains(out.String(), "model llama3: warm") {
		t.Errorf("output = %q, want warm-up confirmation", out.String())
	}
}

func TestEnsureReady_WarmupFailureNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.Write(tagsJSON("llama3:latest"))
			return
		}
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var out bytes.Buffer
	if err := EnsureReady(context.Background(), New(srv.URL), "llama3", &out); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if !strings.Contains(out.String(), "warm-up failed (non-fatal)") {
		t.Errorf("output = %q, want non-fatal warm-up note", out.String())
	}
}
