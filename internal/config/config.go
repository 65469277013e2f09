// Package config builds the process configuration once at startup from
// defaults, the YAML config file, environment variables and the secrets file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingTracingKey is returned by Load when no tracing API key is
// configured anywhere.
var ErrMissingTracingKey = errors.New("missing required config: tracing API key")

type Config struct {
	Server    ServerConfig
	Ollama    OllamaConfig
	Schedules SchedulesConfig
	Tracing   TracingConfig
	History   HistoryConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host     string
	Port     int
	APIToken string
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type SchedulesConfig struct {
	Dir        string
	Triggers   string
	ExtractPDF bool
}

type TracingConfig struct {
	APIKey   string
	Endpoint string
	Project  string
}

type HistoryConfig struct {
	Enabled bool
}

// StorageConfig locates the history database and the PID file.
type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3",
		},
		Schedules: SchedulesConfig{
			Dir: filepath.Join(dataDir, "preloaded_schedules"),
		},
		Tracing: TracingConfig{
			Project: "schedchat",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the YAML file backend, environment
// variables, and the secrets file.
//
// The backend is a YAML file at $XDG_CONFIG_HOME/schedchat/config.yaml.
// Environment variables (SCHEDCHAT_*, plus the legacy PORT, OLLAMA_API_URL
// and LANGCHAIN_API_KEY) override file values. Secrets are never read from
// the config file; when not set in the environment they are looked up in
// $XDG_DATA_HOME/schedchat/secrets.json.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), fileSecrets{path: secretsFilePath()})
}

// secretStore abstracts the secrets file for testing.
type secretStore interface {
	Get(key string) (string, error)
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, secrets)

	if cfg.Tracing.APIKey == "" {
		return Config{}, fmt.Errorf("%w. Set it via environment variable %s or %s",
			ErrMissingTracingKey, envTracingAPIKey, legacyTracingAPIKey)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env") into
// the process environment without overriding variables that are already
// set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "schedchat-data"
		}
	}
	return filepath.Join(dir, "schedchat")
}
