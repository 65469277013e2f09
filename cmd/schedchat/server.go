package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/schedchat/schedchat/internal/api"
	"github.com/schedchat/schedchat/internal/config"
	"github.com/schedchat/schedchat/internal/ollama"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the schedchat web server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		pull, _ := cmd.Flags().GetBool("pull")
		return runServer(pull)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running schedchat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show schedchat system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("pull", false, "check Ollama and pull the configured model before serving")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "schedchat.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(pull bool) error {
	fmt.Fprintf(os.Stderr, "schedchat version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.Log.Level); err != nil {
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(serverURL(cfg.Server) + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("schedchat is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("schedchat is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if pull {
		if err := ollama.EnsureReady(ctx, a.ollama, cfg.Ollama.Model, os.Stderr); err != nil {
			return err
		}
	} else if !a.ollama.IsRunning(ctx) {
		slog.Warn("Ollama not reachable; questions will fail until it is up", "url", a.ollama.BaseURL())
	}

	deps := api.Deps{
		Assistant: a.assistant,
		Token:     cfg.Server.APIToken,
		Logger:    slog.Default(),
	}
	if a.history != nil {
		deps.History = a.history
	}
	handler, err := api.NewHandler(deps)
	if err != nil {
		return fmt.Errorf("building handler: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Server.Addr(), err)
	}

	if err := writePIDFile(pidPath); err != nil {
		ln.Close()
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serveUntilDone(ctx, srv, ln)
}

// serveUntilDone serves on ln until ctx is cancelled, then shuts srv down.
// Request contexts are detached from ctx and cancelled only once Shutdown
// returns, so in-flight questions get the full drain window.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener) error {
	base, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBase()
	srv.BaseContext = func(_ net.Listener) context.Context {
		return base
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printSuccess("schedchat listening on http://%s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		cancelBase()
		return err
	})
	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("schedchat is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop schedchat (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to schedchat (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	base := serverURL(cfg.Server)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(base + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on %s", base)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	oc := ollama.New(cfg.Ollama.BaseURL, ollama.WithHTTPClient(client))
	if oc.IsRunning(ctx) {
		printStatus("Ollama", "running at %s", oc.BaseURL())
		if oc.HasModel(ctx, cfg.Ollama.Model) {
			printStatus("Model", "%s", cfg.Ollama.Model)
		} else {
			printStatus("Model", "%s (not pulled, run: schedchat serve --pull)", cfg.Ollama.Model)
		}
	} else {
		printStatus("Ollama", "not running at %s", oc.BaseURL())
		printStatus("Model", "%s", cfg.Ollama.Model)
	}

	printStatus("Schedules", "%s", cfg.Schedules.Dir)

	if running && cfg.History.Enabled {
		ac := &apiClient{baseURL: base, token: cfg.Server.APIToken, httpClient: client}
		if r, err := ac.get(ctx, "/interactions?limit=100"); err == nil {
			var interactions []json.RawMessage
			if decodeJSON(r, &interactions) == nil {
				printStatus("Interactions", "%s", countLabel(len(interactions), 100))
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
