// Package config loads CRACE's configuration from a YAML file, then layers
// environment-variable overrides on top, then validates the result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProviderType selects which embedding backend a ProviderConfig talks to.
type ProviderType string

const (
	ProviderHuggingFace ProviderType = "huggingface"
	ProviderOllama      ProviderType = "ollama"
)

// ProviderConfig is one embedding-provider binding. CRACE keeps two of
// these (Warm, for indexing; Search, for queries) so a cheaper/faster model
// can back live queries while a heavier one backs the background indexer.
type ProviderConfig struct {
	Provider ProviderType `yaml:"provider" env:"PROVIDER"`
	Model    string       `yaml:"model" env:"MODEL"`
	BaseURL  string       `yaml:"base_url" env:"BASE_URL"`
	Token    string       `yaml:"token" env:"TOKEN"`
}

// Config holds all process configuration.
type Config struct {
	ProjectRoot string `yaml:"project_root" env:"PROJECT_ROOT"`

	HTTPAddr string `yaml:"http_addr" env:"HTTP_ADDR"`
	WSPath   string `yaml:"ws_path" env:"WS_PATH"`

	StorageDir string `yaml:"storage_dir" env:"STORAGE_DIR"`

	Warm   ProviderConfig `yaml:"warm" envPrefix:"WARM_"`
	Search ProviderConfig `yaml:"search" envPrefix:"SEARCH_"`

	EmbeddingDimension int `yaml:"embedding_dimension" env:"EMBEDDING_DIMENSION"`

	ThresholdSimilarity float64 `yaml:"threshold_similarity" env:"THRESHOLD_SIMILARITY"`
	ThresholdMinScore   float64 `yaml:"threshold_min_score" env:"THRESHOLD_MIN_SCORE"`

	HybridKeywordWeight  float64 `yaml:"hybrid_keyword_weight" env:"HYBRID_KEYWORD_WEIGHT"`
	HybridSemanticWeight float64 `yaml:"hybrid_semantic_weight" env:"HYBRID_SEMANTIC_WEIGHT"`

	MaxIndexFiles     int           `yaml:"max_index_files" env:"MAX_INDEX_FILES"`
	WatcherDebounce   time.Duration `yaml:"watcher_debounce" env:"WATCHER_DEBOUNCE"`
	IndexerPoolSize   int           `yaml:"indexer_pool_size" env:"INDEXER_POOL_SIZE"`
	IndexerQueueDepth int           `yaml:"indexer_queue_depth" env:"INDEXER_QUEUE_DEPTH"`

	LLMTimeout  time.Duration `yaml:"llm_timeout" env:"LLM_TIMEOUT"`
	STTTimeout  time.Duration `yaml:"stt_timeout" env:"STT_TIMEOUT"`
	TTSTimeout  time.Duration `yaml:"tts_timeout" env:"TTS_TIMEOUT"`
	WalkTimeout time.Duration `yaml:"walk_timeout" env:"WALK_TIMEOUT"`

	Verbose  bool `yaml:"verbose" env:"VERBOSE"`
	JSONLogs bool `yaml:"json_logs" env:"JSON_LOGS"`
}

// EnvPrefix is the shared prefix for every CRACE environment variable.
const EnvPrefix = "CRACE_"

// DefaultConfig returns a Config with the fixed operational values
// (debounce 500ms, timeouts 30s/20s/20s/60s) plus sensible defaults for
// everything else.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:   ":8085",
		WSPath:     "/ws/voice",
		StorageDir: defaultStorageDir(),
		Warm: ProviderConfig{
			Provider: ProviderOllama,
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		Search: ProviderConfig{
			Provider: ProviderOllama,
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDimension:   384,
		ThresholdSimilarity:  0.7,
		ThresholdMinScore:    0.25,
		HybridKeywordWeight:  0.5,
		HybridSemanticWeight: 0.5,
		MaxIndexFiles:        0, // 0 = unbounded
		WatcherDebounce:      500 * time.Millisecond,
		IndexerPoolSize:      4,
		IndexerQueueDepth:    256,
		LLMTimeout:           30 * time.Second,
		STTTimeout:           20 * time.Second,
		TTSTimeout:           20 * time.Second,
		WalkTimeout:          60 * time.Second,
	}
}

func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crace"
	}
	return filepath.Join(home, ".crace")
}

// DefaultConfigPath returns the config file path Load uses when no
// explicit path is given: ~/.crace/config.yaml.
func DefaultConfigPath() string {
	return configFilePath()
}

func configFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crace/config.yaml"
	}
	return filepath.Join(home, ".crace", "config.yaml")
}

// Load reads the default config file (if present), then .env (if present),
// then process environment variables, in that precedence order, then
// validates. Missing config/env files are not errors.
func Load() (*Config, error) {
	return LoadFromFile(configFilePath())
}

// LoadFromFile reads a specific YAML file, applies .env + process env
// overrides, and validates.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	// .env is loaded before process-env resolution; explicit process env
	// still wins since godotenv.Load does not overwrite already-set vars.
	_ = godotenv.Load()

	if v := os.Getenv(EnvPrefix + "PROJECT_ROOT"); v != "" {
		cfg.ProjectRoot = v
	} else if v := os.Getenv("SENORITA_PROJECT_ROOT"); v != "" {
		// Legacy bootstrap variable honored for editor integrations that
		// still export it.
		if st, err := os.Stat(v); err == nil && st.IsDir() {
			cfg.ProjectRoot = v
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EffectiveWarmProvider returns the provider type to use for indexing,
// falling back to Search's provider if Warm's is unset.
func (c *Config) EffectiveWarmProvider() ProviderType {
	if c.Warm.Provider != "" {
		return c.Warm.Provider
	}
	return c.Search.Provider
}

// EffectiveSearchProvider returns the provider type to use for queries,
// falling back to Warm's provider if Search's is unset.
func (c *Config) EffectiveSearchProvider() ProviderType {
	if c.Search.Provider != "" {
		return c.Search.Provider
	}
	return c.Warm.Provider
}

// Validate checks required fields and numeric ranges.
func (c *Config) Validate() error {
	for _, pc := range []struct {
		name string
		cfg  ProviderConfig
	}{{"warm", c.Warm}, {"search", c.Search}} {
		switch pc.cfg.Provider {
		case ProviderHuggingFace, ProviderOllama:
		default:
			return fmt.Errorf("%s.provider: invalid provider %q", pc.name, pc.cfg.Provider)
		}
		if pc.cfg.Model == "" {
			return fmt.Errorf("%s.model is required", pc.name)
		}
		if pc.cfg.Provider == ProviderOllama && pc.cfg.BaseURL == "" {
			return fmt.Errorf("%s.base_url is required for ollama", pc.name)
		}
	}

	if c.ThresholdSimilarity < 0 || c.ThresholdSimilarity > 1 {
		return fmt.Errorf("threshold_similarity must be between 0 and 1")
	}
	if c.ThresholdMinScore < 0 || c.ThresholdMinScore > 1 {
		return fmt.Errorf("threshold_min_score must be between 0 and 1")
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding_dimension must be positive")
	}
	if w := c.HybridKeywordWeight + c.HybridSemanticWeight; w < 0.999 || w > 1.001 {
		return fmt.Errorf("hybrid_keyword_weight + hybrid_semantic_weight must sum to 1, got %f", w)
	}
	if c.IndexerPoolSize <= 0 {
		return fmt.Errorf("indexer_pool_size must be positive")
	}
	return nil
}

// Save writes c as YAML to path, creating parent directories as needed.
// Used by `cracectl config init` to persist the wizard's answers.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}
