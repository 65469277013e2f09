package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

const (
	envTracingAPIKey    = "SCHEDCHAT_TRACING_API_KEY"
	legacyTracingAPIKey = "LANGCHAIN_API_KEY"
)

type keySpec struct {
	key       string
	typ       keyType
	env       string
	legacyEnv string
	secret    bool
	apply     func(cfg *Config, v any)
	extract   func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "SCHEDCHAT_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "SCHEDCHAT_SERVER_PORT", legacyEnv: "PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "SCHEDCHAT_SERVER_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "ollama.base_url", typ: kString, env: "SCHEDCHAT_OLLAMA_BASE_URL", legacyEnv: "OLLAMA_API_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "SCHEDCHAT_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "ollama.timeout", typ: kDuration, env: "SCHEDCHAT_OLLAMA_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Ollama.Timeout },
	},
	{
		key: "schedules.dir", typ: kString, env: "SCHEDCHAT_SCHEDULES_DIR",
		apply:   func(cfg *Config, v any) { cfg.Schedules.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedules.Dir },
	},
	{
		key: "schedules.triggers", typ: kString, env: "SCHEDCHAT_SCHEDULES_TRIGGERS",
		apply:   func(cfg *Config, v any) { cfg.Schedules.Triggers = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedules.Triggers },
	},
	{
		key: "schedules.extract_pdf", typ: kBool, env: "SCHEDCHAT_SCHEDULES_EXTRACT_PDF",
		apply:   func(cfg *Config, v any) { cfg.Schedules.ExtractPDF = v.(bool) },
		extract: func(cfg Config) any { return cfg.Schedules.ExtractPDF },
	},
	{
		key: "tracing.api_key", typ: kString, env: envTracingAPIKey, legacyEnv: legacyTracingAPIKey,
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Tracing.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Tracing.APIKey },
	},
	{
		key: "tracing.endpoint", typ: kString, env: "SCHEDCHAT_TRACING_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Tracing.Endpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Tracing.Endpoint },
	},
	{
		key: "tracing.project", typ: kString, env: "SCHEDCHAT_TRACING_PROJECT",
		apply:   func(cfg *Config, v any) { cfg.Tracing.Project = v.(string) },
		extract: func(cfg Config) any { return cfg.Tracing.Project },
	},
	{
		key: "history.enabled", typ: kBool, env: "SCHEDCHAT_HISTORY_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.History.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.History.Enabled },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SCHEDCHAT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "SCHEDCHAT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parseValue converts a raw string into the Go type of a key.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			slog.Warn("invalid config value, using default", "key", s.key, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

// envValue returns the primary variable, falling back to the legacy name.
func envValue(s keySpec) (name, raw string) {
	if raw := os.Getenv(s.env); raw != "" {
		return s.env, raw
	}
	if s.legacyEnv != "" {
		if raw := os.Getenv(s.legacyEnv); raw != "" {
			return s.legacyEnv, raw
		}
	}
	return "", ""
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		name, raw := envValue(s)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			slog.Warn("invalid environment value, using default", "env", name, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}

func applySecrets(cfg *Config, secrets secretStore) {
	if secrets == nil {
		return
	}
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		if v, err := secrets.Get(s.key); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
