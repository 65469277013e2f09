package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// tagsJSON builds a /api/tags response with the given model names.
func tagsJSON(names ...string) []byte {
	type entry struct {
		Name string `json:"name"`
	}
	type resp struct {
		Models []entry `json:"models"`
	}
	r := resp{}
	for _, n := range names {
		r.Models = append(r.Models, entry{Name: n})
	}
	b, _ := json.Marshal(r)
	return b
}

func TestNew_NormalizesBaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:11434", "http://localhost:11434"},
		{"http://localhost:11434/", "http://localhost:11434"},
		{"http://localhost:11434/api/chat", "http://localhost:11434"},
		{"http://gpu-box:11434/api/generate/", "http://gpu-box:11434"},
	}
	for _, tt := range tests {
		if got := New(tt.in).BaseURL(); got != tt.want {
			t.Errorf("New(%q).BaseURL() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsRunning_Up(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tagsJSON("llama3:latest"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if !c.IsRunning(context.Background()) {
		t.Error("IsRunning() = false, want true")
	}
}

func TestIsRunning_Down(t *testing.T) {
	// Point at a closed server to simulate connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL)
	if c.IsRunning(context.Background()) {
		t.Error("IsRunning() = true, want false")
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tagsJSON("llama3:latest", "mistral:latest"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}

	want := []string{"llama3:latest", "mistral:latest"}
	if len(models) != len(want) {
		t.Fatalf("got %d models, want %d", len(models), len(want))
	}
	for i, w := range want {
		if models[i] != w {
			t.Errorf("models[%d] = %q, want %q", i, models[i], w)
		}
	}
}

func TestHasModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tagsJSON("llama3:latest", "mistral:latest"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if !c.HasModel(context.Background(), "llama3") {
		t.Error("HasModel(llama3) = false, want true")
	}
	if c.HasModel(context.Background(), "llama3.1") {
		t.Error("HasModel(llama3.1) = true, want false")
	}
}

func TestChat(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: "assistant", Content: "Day 1: Math"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL + "/api/chat")
	result, err := c.Chat(context.Background(), "llama3", []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "week 1?"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result != "Day 1: Math" {
		t.Errorf("result = %q, want %q", result, "Day 1: Math")
	}
	if captured.Model != "llama3" {
		t.Errorf("model = %q, want llama3", captured.Model)
	}
	if captured.Stream {
		t.Error("stream = true, want false")
	}
	if len(captured.Messages) != 2 || captured.Messages[1].Content != "week 1?" {
		t.Errorf("messages = %+v", captured.Messages)
	}
}

func TestChat_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model \"llama3\" not found"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Chat(context.Background(), "llama3", nil)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("error %v does not wrap ErrUnexpectedStatus", err)
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error %T is not *StatusError", err)
	}
	if se.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", se.Status)
	}
	if !strings.Contains(se.Body, "not found") {
		t.Errorf("Body = %q, want upstream message", se.Body)
	}
}

func TestChat_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if _, err := New(srv.URL).Chat(context.Background(), "llama3", nil); err == nil {
		t.Fatal("expected error when server is down")
	}
}

func TestChat_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithTimeout(50*time.Millisecond))
	if _, err := c.Chat(context.Background(), "llama3", nil); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestTimeout_OptionOrder(t *testing.T) {
	shared := &http.Client{}
	orders := map[string][]Option{
		"timeout first": {WithTimeout(3 * time.Second), WithHTTPClient(shared)},
		"client first":  {WithHTTPClient(shared), WithTimeout(3 * time.Second)},
	}
	for name, opts := range orders {
		c := New("http://localhost:11434", opts...)
		if c.httpClient.Timeout != 3*time.Second {
			t.Errorf("%s: timeout = %v, want 3s", name, c.httpClient.Timeout)
		}
	}
	if shared.Timeout != 0 {
		t.Errorf("caller's client mutated: timeout = %v", shared.Timeout)
	}
}

func TestGenerate_ReturnsBodyVerbatim(t *testing.T) {
	const body = `{"model":"llama3","response":"Hello there","done":true}`
	var captured generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	defer srv.Close()

	raw, err := New(srv.URL).Generate(context.Background(), "llama3", "Say hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bytes.Equal(raw, []byte(body)) {
		t.Errorf("raw = %s, want %s", raw, body)
	}
	if captured.Prompt != "Say hello" || captured.Model != "llama3" || captured.Stream {
		t.Errorf("request = %+v", captured)
	}
}

func TestGenerate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Generate(context.Background(), "llama3", "x")
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("err = %v, want ErrUnexpectedStatus", err)
	}
}

func TestGenerate_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Generate(context.Background(), "llama3", "x"); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}

func TestPullModel_Progress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pull" {
			http.NotFound(w, r)
			return
		}

		var reqBody pullRequest
		json.NewDecoder(r.Body).Decode(&reqBody)
		if reqBody.Name != "llama3" {
			t.Errorf("pull model = %q, want %q", reqBody.Name, "llama3")
		}

		// Stream progress lines as newline-delimited JSON.
		enc := json.NewEncoder(w)
		enc.Encode(PullProgress{Status: "downloading", Total: 1000, Completed: 500})
		enc.Encode(PullProgress{Status: "downloading", Total: 1000, Completed: 1000})
		enc.Encode(PullProgress{Status: "success"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	var progressCount int
	err := c.PullModel(context.Background(), "llama3", func(p PullProgress) {
		progressCount++
	})
	if err != nil {
		t.Fatalf("PullModel: %v", err)
	}
	if progressCount != 3 {
		t.Errorf("received %d progress updates, want 3", progressCount)
	}
}
