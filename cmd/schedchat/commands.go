package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/schedchat/schedchat/internal/api"
	"github.com/schedchat/schedchat/internal/config"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question locally without a running server",
	Long: `Answer one question locally without a running server.

Examples:
  schedchat ask "What is on the week 1 schedule?"
  schedchat ask --file ./week_1_schedule.txt "Summarize week 1"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		files, _ := cmd.Flags().GetStringSlice("file")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := setupLogging(cfg.Log.Level); err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		printStep("Asking %s...", cfg.Ollama.Model)
		res, err := a.assistant.Answer(ctx, question, fileUploads(files))
		if err != nil {
			return err
		}
		if len(res.ScheduleNames) > 0 {
			printStatus("Schedules", "%s", strings.Join(res.ScheduleNames, ", "))
		}
		printLines(cmd.OutOrStdout(), res.Lines)
		return nil
	},
}

func init() {
	askCmd.Flags().StringSlice("file", nil, "schedule file to attach (repeatable); replaces a preloaded schedule with the same name")
}

// --- generate ---

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Send a raw prompt through the running server's /generate endpoint",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runGenerate(cmd.Context(), client, strings.Join(args, " "), cmd.OutOrStdout())
	},
}

func runGenerate(ctx context.Context, client *apiClient, prompt string, w io.Writer) error {
	resp, err := client.post(ctx, "/generate", map[string]string{"prompt": prompt})
	if err != nil {
		return err
	}

	var raw json.RawMessage
	if err := decodeJSON(resp, &raw); err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(w)
	return err
}

// --- schedules ---

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Inspect preloaded schedules",
}

var schedulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List preloaded schedules and the triggers that select them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		selector, err := newSelector(cfg.Schedules.Triggers)
		if err != nil {
			return err
		}
		triggers := make(map[string][]string)
		for _, r := range selector.Rules() {
			triggers[r.Key] = append(triggers[r.Key], fmt.Sprintf("%q", r.Trigger))
		}

		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		c, err := a.assistant.Schedules()
		if err != nil {
			return err
		}
		if len(c) == 0 {
			fmt.Printf("No schedules in %s\n", cfg.Schedules.Dir)
			return nil
		}

		for _, name := range c.Names() {
			line := fmt.Sprintf("%s  %d chars", colorize(colorCyan, name), utf8.RuneCountInString(c[name].Content))
			if t, ok := triggers[name]; ok {
				line += "  triggers: " + strings.Join(t, ", ")
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	schedulesCmd.AddCommand(schedulesListCmd)
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "Browse question history (requires history.enabled)",
}

var interactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/interactions?limit=%d", limit))
		if err != nil {
			return err
		}

		var interactions []struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Question  string `json:"question"`
			Status    string `json:"status"`
		}
		if err := decodeJSON(resp, &interactions); err != nil {
			return err
		}

		if len(interactions) == 0 {
			fmt.Println("No interactions found.")
			return nil
		}

		for _, ix := range interactions {
			question := ix.Question
			if utf8.RuneCountInString(question) > 80 {
				question = string([]rune(question)[:80]) + "..."
			}
			id := ix.ID
			if len(id) > 8 {
				id = id[:8]
			}
			status := ix.Status
			if status != "completed" {
				status = colorize(colorRed, status)
			}
			fmt.Printf("%s  %s  %s  %s\n", colorize(colorCyan, id), ix.CreatedAt, status, question)
		}
		return nil
	},
}

var interactionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/interactions/"+args[0])
		if err != nil {
			return err
		}

		var interaction any
		if err := decodeJSON(resp, &interaction); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(interaction)
	},
}

func init() {
	interactionsListCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	interactionsCmd.AddCommand(interactionsListCmd)
	interactionsCmd.AddCommand(interactionsShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		fmt.Printf("  %s\n", colorize(colorBold, config.FilePath()))
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Valid keys: ` + strings.Join(config.ValidKeys(), ", ") + `

Secret keys (tracing.api_key, server.api_token) are stored in the secrets
file instead of the config file.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the schedule tools over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		// stdout carries the MCP protocol; logs stay on stderr.
		if err := setupLogging(cfg.Log.Level); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		deps := api.MCPDeps{Assistant: a.assistant}
		if a.history != nil {
			deps.History = a.history
		}
		stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
		slog.Info("MCP server started (stdio transport)")
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP stdio server: %w", err)
		}
		return nil
	},
}
