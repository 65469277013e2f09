package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestSetup_RequiresAPIKey(t *testing.T) {
	if _, err := Setup(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestSetup_ExportsWithAPIKeyHeader(t *testing.T) {
	var (
		mu    sync.Mutex
		keys  []string
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get(APIKeyHeader))
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	shutdown, err := Setup(ctx, Config{
		APIKey:   "trace-key",
		Endpoint: srv.URL + "/v1/traces",
		Project:  "test",
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	_, span := Tracer("tracing_test").Start(ctx, "unit")
	span.End()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(keys) == 0 {
		t.Fatal("collector received no export request")
	}
	if keys[0] != "trace-key" {
		t.Errorf("%s = %q, want %q", APIKeyHeader, keys[0], "trace-key")
	}
	if paths[0] != "/v1/traces" {
		t.Errorf("path = %q, want /v1/traces", paths[0])
	}
}
