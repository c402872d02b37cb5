package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/crace/crace/internal/config"
	"github.com/spf13/cobra"
)

// configCmd groups the config subcommands alongside
// provider wizard, but as its own verb since CRACE's config already holds
// more than embedding providers (HTTP address, watcher debounce, etc).
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CRACE configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively configure the warm/search embedding providers",
	Long: `init walks through choosing an embedding provider for indexing
(warm) and queries (search) and writes the result to --out (default
~/.crace/config.yaml). Pass --warm-provider to skip the interactive form.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		warmProvider, _ := cmd.Flags().GetString("warm-provider")
		warmModel, _ := cmd.Flags().GetString("warm-model")
		warmBaseURL, _ := cmd.Flags().GetString("warm-base-url")
		searchProvider, _ := cmd.Flags().GetString("search-provider")
		searchModel, _ := cmd.Flags().GetString("search-model")
		searchBaseURL, _ := cmd.Flags().GetString("search-base-url")
		yes, _ := cmd.Flags().GetBool("yes")

		if warmProvider != "" {
			return runConfigInitNonInteractive(out, warmProvider, warmModel, warmBaseURL,
				searchProvider, searchModel, searchBaseURL, yes)
		}
		return runConfigInitInteractive(out, yes)
	},
}

func init() {
	configInitCmd.Flags().String("out", "", "Config file path (default ~/.crace/config.yaml)")
	configInitCmd.Flags().String("warm-provider", "", "Warm provider: ollama or huggingface (enables non-interactive mode)")
	configInitCmd.Flags().String("warm-model", "", "Warm model name")
	configInitCmd.Flags().String("warm-base-url", "", "Ollama base URL for warm")
	configInitCmd.Flags().String("search-provider", "", "Search provider: ollama or huggingface (defaults to warm)")
	configInitCmd.Flags().String("search-model", "", "Search model name (defaults to warm)")
	configInitCmd.Flags().String("search-base-url", "", "Ollama base URL for search (defaults to warm)")
	configInitCmd.Flags().BoolP("yes", "y", false, "Overwrite an existing config without confirmation")
	configCmd.AddCommand(configInitCmd)
}

func configOutPath(out string) string {
	if out != "" {
		return out
	}
	return config.DefaultConfigPath()
}

func runConfigInitInteractive(out string, yes bool) error {
	outPath := configOutPath(out)

	if _, err := os.Stat(outPath); err == nil && !yes {
		var overwrite bool
		confirm := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title("Config file exists").
				Description(fmt.Sprintf("Overwrite %s?", outPath)).
				Affirmative("Overwrite").
				Negative("Cancel").
				Value(&overwrite),
		))
		if err := confirm.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	var warmProvider string
	providerForm := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Warm provider - used to index your codebase").
			Options(
				huh.NewOption("Ollama", "ollama"),
				huh.NewOption("HuggingFace", "huggingface"),
			).
			Value(&warmProvider),
	))
	if err := providerForm.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.Warm.Provider = config.ProviderType(warmProvider)

	if warmProvider == string(config.ProviderOllama) {
		cfg.Warm.BaseURL = "http://localhost:11434"
		cfg.Warm.Model = "nomic-embed-text"
		urlForm := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Ollama base URL").Value(&cfg.Warm.BaseURL),
			huh.NewInput().Title("Ollama model for indexing").Value(&cfg.Warm.Model),
		))
		if err := urlForm.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
	} else {
		cfg.Warm.Model = "google/embeddinggemma-300m"
		modelForm := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("HuggingFace model for indexing").Value(&cfg.Warm.Model),
		))
		if err := modelForm.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
	}

	var sameAsWarm bool
	sameForm := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Search provider - used for live queries").
			Description("Use the same provider/model as warm?").
			Affirmative("Yes").
			Negative("No, configure separately").
			Value(&sameAsWarm),
	))
	if err := sameForm.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	if sameAsWarm {
		cfg.Search = cfg.Warm
	} else {
		var searchProvider string
		spForm := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("Search provider").
				Options(
					huh.NewOption("Ollama", "ollama"),
					huh.NewOption("HuggingFace", "huggingface"),
				).
				Value(&searchProvider),
		))
		if err := spForm.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		cfg.Search.Provider = config.ProviderType(searchProvider)
		if searchProvider == string(config.ProviderOllama) {
			cfg.Search.BaseURL = cfg.Warm.BaseURL
			cfg.Search.Model = cfg.Warm.Model
			smForm := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Ollama base URL for search").Value(&cfg.Search.BaseURL),
				huh.NewInput().Title("Ollama model for search").Value(&cfg.Search.Model),
			))
			if err := smForm.Run(); err != nil {
				return fmt.Errorf("interactive prompt failed: %w", err)
			}
		} else {
			cfg.Search.Model = cfg.Warm.Model
			smForm := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("HuggingFace model for search").Value(&cfg.Search.Model),
			))
			if err := smForm.Run(); err != nil {
				return fmt.Errorf("interactive prompt failed: %w", err)
			}
		}
	}

	return saveAndReportConfig(cfg, outPath)
}

func runConfigInitNonInteractive(out, warmProvider, warmModel, warmBaseURL,
	searchProvider, searchModel, searchBaseURL string, yes bool) error {
	outPath := configOutPath(out)

	if _, err := os.Stat(outPath); err == nil && !yes {
		return fmt.Errorf("config file already exists at %s; pass --yes to overwrite", outPath)
	}

	if warmProvider != string(config.ProviderOllama) && warmProvider != string(config.ProviderHuggingFace) {
		return fmt.Errorf("--warm-provider must be 'ollama' or 'huggingface', got %q", warmProvider)
	}

	cfg := config.DefaultConfig()
	cfg.Warm.Provider = config.ProviderType(warmProvider)
	if warmModel != "" {
		cfg.Warm.Model = warmModel
	}
	if warmBaseURL != "" {
		cfg.Warm.BaseURL = warmBaseURL
	}

	if searchProvider == "" {
		cfg.Search = cfg.Warm
		if searchModel != "" {
			cfg.Search.Model = searchModel
		}
		if searchBaseURL != "" {
			cfg.Search.BaseURL = searchBaseURL
		}
	} else {
		if searchProvider != string(config.ProviderOllama) && searchProvider != string(config.ProviderHuggingFace) {
			return fmt.Errorf("--search-provider must be 'ollama' or 'huggingface', got %q", searchProvider)
		}
		cfg.Search.Provider = config.ProviderType(searchProvider)
		cfg.Search.Model = cfg.Warm.Model
		cfg.Search.BaseURL = cfg.Warm.BaseURL
		if searchModel != "" {
			cfg.Search.Model = searchModel
		}
		if searchBaseURL != "" {
			cfg.Search.BaseURL = searchBaseURL
		}
	}

	return saveAndReportConfig(cfg, outPath)
}

func saveAndReportConfig(cfg *config.Config, outPath string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := cfg.Save(outPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println("\n=== Configuration ===")
	fmt.Printf("Path: %s\n", outPath)
	fmt.Printf("Warm: %s / %s\n", cfg.Warm.Provider, cfg.Warm.Model)
	fmt.Printf("Search: %s / %s\n", cfg.Search.Provider, cfg.Search.Model)
	fmt.Println("======================")
	fmt.Printf("Configuration saved to %s\n", outPath)
	return nil
}
