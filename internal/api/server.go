// Package api serves the schedule chat page, the raw generate endpoint, the
// interaction history routes and the MCP tool surface.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/schedchat/schedchat/internal/assistant"
	"github.com/schedchat/schedchat/internal/schedule"
	"github.com/schedchat/schedchat/internal/storage"
)

// Assistant answers questions for the HTTP and MCP layers.
type Assistant interface {
	Answer(ctx context.Context, question string, uploads []schedule.Upload) (assistant.Result, error)
	Generate(ctx context.Context, prompt string) (json.RawMessage, error)
	Schedules() (schedule.Collection, error)
}

// HistoryStore exposes stored interactions.
type HistoryStore interface {
	ListInteractions(limit, offset int) ([]storage.Interaction, error)
	GetInteraction(id string) (storage.Interaction, error)
	DeleteInteraction(id string) error
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Assistant Assistant
	History   HistoryStore // optional; nil leaves /interactions unmounted
	Token     string       // optional; protects /interactions when set
	Logger    *slog.Logger
}

// NewHandler returns the application router.
func NewHandler(deps Deps) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	page, err := newPage()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/", handleIndex(page))
	r.Post("/", handleAsk(page, deps))
	r.Post("/generate", handleGenerate(deps))
	r.Get("/health", handleHealth)
	r.Get("/schedules", handleListSchedules(deps))

	if deps.History != nil {
		r.Route("/interactions", func(r chi.Router) {
			if deps.Token != "" {
				r.Use(requireToken(deps.Token))
			}
			r.Get("/", handleListInteractions(deps))
			r.Get("/{id}", handleGetInteraction(deps))
			r.Delete("/{id}", handleDeleteInteraction(deps))
		})
	}

	return r, nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleListSchedules(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := deps.Assistant.Schedules()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load schedules: %v", err)
			return
		}
		writeJSON(w, c.Names())
	}
}
