package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/crace/crace/internal/config"
	"github.com/crace/crace/internal/daemon"
	"github.com/crace/crace/internal/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [flags]",
	Short: "Start the CRACE daemon in the foreground",
	Long: `serve constructs every CRACE component (symbol index,
embedding index, file watcher, memory store, orchestrator) and serves the
HTTP control plane and WebSocket voice channel on --http-addr until
SIGINT/SIGTERM or the process is otherwise stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		projectRoot, _ := cmd.Flags().GetString("project")
		httpAddr, _ := cmd.Flags().GetString("http-addr")
		verbose, _ := cmd.Flags().GetBool("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		return runServe(configPath, projectRoot, httpAddr, verbose, jsonLogs)
	},
}

func init() {
	serveCmd.Flags().String("config", "", "Config file path (default ~/.crace/config.yaml)")
	serveCmd.Flags().String("project", "", "Project root to index and watch")
	serveCmd.Flags().String("http-addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().Bool("verbose", false, "Debug-level logging")
	serveCmd.Flags().Bool("json-logs", false, "Emit logs as JSON")
}

func runServe(configPath, projectRoot, httpAddr string, verbose, jsonLogs bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if projectRoot != "" {
		cfg.ProjectRoot = projectRoot
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if verbose {
		cfg.Verbose = true
	}
	if jsonLogs {
		cfg.JSONLogs = true
	}

	level := log.InfoLevel
	if cfg.Verbose {
		level = log.DebugLevel
	}
	logger := log.New(log.LoggerConfig{Level: level, JSONOutput: cfg.JSONLogs})

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("constructing daemon: %w", err)
	}

	if cfg.ProjectRoot == "" {
		fmt.Fprintln(os.Stderr, "cracectl: no project root configured; use project/set-root before indexing")
	}

	return d.Start(context.Background())
}

// loadConfig loads from an explicit path when given, else the default
// location, matching config.Load/config.LoadFromFile's precedence.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromFile(path)
}
