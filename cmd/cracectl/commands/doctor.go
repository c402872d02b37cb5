package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crace/crace/internal/config"
	"github.com/spf13/cobra"
)

// doctorCmd runs the two readiness checks that matter before indexing —
// is each embedding endpoint reachable — plus, when --addr is given, a
// probe of a running daemon's /health route.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the configured embedding providers are reachable",
	Long: `doctor pings the warm and search embedding providers' endpoints
(Ollama's root URL, or the HuggingFace local model cache) without
downloading or pulling anything. Pass --addr to also probe a running
daemon's /health endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		addr, _ := cmd.Flags().GetString("addr")
		return runDoctor(configPath, addr)
	},
}

func init() {
	doctorCmd.Flags().String("config", "", "Config file path (default ~/.crace/config.yaml)")
	doctorCmd.Flags().String("addr", "", "Base URL of a running daemon to probe (e.g. http://localhost:8085)")
}

func runDoctor(configPath, addr string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	fmt.Println("=== Embedding Providers ===")
	warm := checkProvider("warm", cfg.Warm)
	printProviderStatus(warm)
	search := checkProvider("search", cfg.Search)
	printProviderStatus(search)

	if addr != "" {
		fmt.Println("\n=== Daemon ===")
		if err := probeDaemon(addr); err != nil {
			fmt.Printf("  status: unreachable (%v)\n", err)
		}
	}

	if warm.err != "" || search.err != "" {
		return fmt.Errorf("one or more embedding providers are not ready")
	}
	return nil
}

type providerStatus struct {
	label    string
	provider string
	model    string
	url      string
	status   string
	err      string
}

func printProviderStatus(s providerStatus) {
	fmt.Printf("%s (%s / %s): %s\n", s.label, s.provider, s.model, s.status)
	if s.url != "" {
		fmt.Printf("  url: %s\n", s.url)
	}
	if s.err != "" {
		fmt.Printf("  error: %s\n", s.err)
	}
}

func checkProvider(label string, pc config.ProviderConfig) providerStatus {
	switch pc.Provider {
	case config.ProviderOllama:
		return checkOllamaEndpoint(label, pc)
	case config.ProviderHuggingFace:
		return checkHuggingFaceCache(label, pc)
	default:
		return providerStatus{label: label, provider: string(pc.Provider), status: "error", err: "unknown provider"}
	}
}

// checkOllamaEndpoint pings Ollama's root URL; it does not pull models.
func checkOllamaEndpoint(label string, pc config.ProviderConfig) providerStatus {
	st := providerStatus{label: label, provider: string(pc.Provider), model: pc.Model, url: pc.BaseURL}
	if pc.BaseURL == "" {
		st.status, st.err = "error", "base_url is not configured"
		return st
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pc.BaseURL, nil)
	if err != nil {
		st.status, st.err = "error", fmt.Sprintf("invalid url: %v", err)
		return st
	}
	if pc.Token != "" {
		req.Header.Set("Authorization", "Bearer "+pc.Token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		st.status, st.err = "error", fmt.Sprintf("cannot reach %s: %v", pc.BaseURL, err)
		return st
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		st.status = "ready"
	} else {
		st.status, st.err = "error", fmt.Sprintf("ollama returned status %d", resp.StatusCode)
	}
	return st
}

// checkHuggingFaceCache looks for a cached model snapshot locally; it
// makes no network call and needs no API key.
func checkHuggingFaceCache(label string, pc config.ProviderConfig) providerStatus {
	st := providerStatus{label: label, provider: string(pc.Provider), model: pc.Model}
	if pc.Model == "" {
		st.status, st.err = "error", "model is not configured"
		return st
	}

	cacheDir := huggingFaceCacheDir(pc.Model)
	if cacheDir == "" {
		st.status = "ready"
		return st
	}

	if info, err := os.Stat(cacheDir); err == nil && info.IsDir() {
		snapshots := filepath.Join(cacheDir, "snapshots")
		if entries, err := os.ReadDir(snapshots); err == nil && len(entries) > 0 {
			st.status = "ready"
		} else {
			st.status = "downloading"
		}
	} else {
		st.status = "ready"
	}
	return st
}

func huggingFaceCacheDir(model string) string {
	cacheBase := os.Getenv("HF_HUB_CACHE")
	if cacheBase == "" {
		if hfHome := os.Getenv("HF_HOME"); hfHome != "" {
			cacheBase = filepath.Join(hfHome, "hub")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return ""
			}
			cacheBase = filepath.Join(home, ".cache", "huggingface", "hub")
		}
	}
	safeName := "models--" + strings.ReplaceAll(model, "/", "--")
	return filepath.Join(cacheBase, safeName)
}

func probeDaemon(addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(addr, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	for k, v := range body {
		fmt.Printf("  %s: %v\n", k, v)
	}
	return nil
}
