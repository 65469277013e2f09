package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/schedchat/schedchat/internal/assistant"
	"github.com/schedchat/schedchat/internal/config"
	"github.com/schedchat/schedchat/internal/ollama"
	"github.com/schedchat/schedchat/internal/schedule"
	"github.com/schedchat/schedchat/internal/storage"
	"github.com/schedchat/schedchat/internal/tracing"
)

// app holds the components built once per process from Config.
type app struct {
	cfg       config.Config
	ollama    *ollama.Client
	store     *schedule.Store
	history   *storage.Store // nil unless history is enabled
	assistant *assistant.Assistant

	shutdownTracing func(context.Context) error
}

// newSelector returns the built-in rules followed by any configured extras.
func newSelector(triggers string) (*schedule.Selector, error) {
	extra, err := schedule.ParseRules(triggers)
	if err != nil {
		return nil, fmt.Errorf("schedules.triggers: %w", err)
	}
	return schedule.NewSelector(append(schedule.DefaultRules(), extra...)...), nil
}

func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	shutdown, err := tracing.Setup(ctx, tracing.Config{
		APIKey:   cfg.Tracing.APIKey,
		Endpoint: cfg.Tracing.Endpoint,
		Project:  cfg.Tracing.Project,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	a := &app{
		cfg:             cfg,
		ollama:          ollama.New(cfg.Ollama.BaseURL, ollama.WithTimeout(cfg.Ollama.Timeout)),
		store:           schedule.NewStore(cfg.Schedules.Dir, schedule.WithPDF(cfg.Schedules.ExtractPDF)),
		shutdownTracing: shutdown,
	}

	selector, err := newSelector(cfg.Schedules.Triggers)
	if err != nil {
		a.close()
		return nil, err
	}

	deps := assistant.Deps{
		Store:    a.store,
		Selector: selector,
		Client:   a.ollama,
		Model:    cfg.Ollama.Model,
	}
	if cfg.History.Enabled {
		a.history, err = storage.Open(cfg.Storage.DataDir)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		deps.Recorder = a.history
	}
	a.assistant = assistant.New(deps)

	slog.Debug("application ready",
		"ollama", a.ollama.BaseURL(),
		"model", cfg.Ollama.Model,
		"schedules_dir", cfg.Schedules.Dir,
		"history", cfg.History.Enabled,
	)
	return a, nil
}

func (a *app) close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.shutdownTracing(ctx); err != nil {
			slog.Warn("flushing traces", "error", err)
		}
	}
}

// fileUpload adapts a local file to schedule.Upload.
type fileUpload struct {
	path string
}

func (f fileUpload) Filename() string { return filepath.Base(f.path) }

func (f fileUpload) Open() (io.ReadCloser, error) { return os.Open(f.path) }

func fileUploads(paths []string) []schedule.Upload {
	uploads := make([]schedule.Upload, 0, len(paths))
	for _, p := range paths {
		uploads = append(uploads, fileUpload{path: p})
	}
	return uploads
}
