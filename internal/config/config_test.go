package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8085", cfg.HTTPAddr)
	assert.Equal(t, "/ws/voice", cfg.WSPath)
	assert.Equal(t, 384, cfg.EmbeddingDimension)
	assert.Equal(t, 0.25, cfg.ThresholdMinScore)
	assert.Equal(t, 0.5, cfg.HybridKeywordWeight)
	assert.Equal(t, 0.5, cfg.HybridSemanticWeight)

	// The fixed timing defaults.
	assert.Equal(t, 500*time.Millisecond, cfg.WatcherDebounce)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 20*time.Second, cfg.STTTimeout)
	assert.Equal(t, 20*time.Second, cfg.TTSTimeout)
	assert.Equal(t, 60*time.Second, cfg.WalkTimeout)

	assert.Equal(t, ProviderOllama, cfg.Warm.Provider)
	assert.Equal(t, ProviderOllama, cfg.Search.Provider)

	require.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name: "valid huggingface search provider",
			mutate: func(c *Config) {
				c.Search = ProviderConfig{Provider: ProviderHuggingFace, Model: "sentence-transformers/all-MiniLM-L6-v2"}
			},
		},
		{
			name:        "invalid provider",
			mutate:      func(c *Config) { c.Warm.Provider = "openvino" },
			errContains: "invalid provider",
		},
		{
			name:        "missing model",
			mutate:      func(c *Config) { c.Search.Model = "" },
			errContains: "search.model is required",
		},
		{
			name:        "ollama without base url",
			mutate:      func(c *Config) { c.Warm.BaseURL = "" },
			errContains: "base_url is required",
		},
		{
			name:        "similarity out of range",
			mutate:      func(c *Config) { c.ThresholdSimilarity = 1.5 },
			errContains: "threshold_similarity",
		},
		{
			name:        "non-positive dimension",
			mutate:      func(c *Config) { c.EmbeddingDimension = 0 },
			errContains: "embedding_dimension",
		},
		{
			name: "hybrid weights must sum to one",
			mutate: func(c *Config) {
				c.HybridKeywordWeight = 0.7
				c.HybridSemanticWeight = 0.7
			},
			errContains: "sum to 1",
		},
		{
			name:        "non-positive pool size",
			mutate:      func(c *Config) { c.IndexerPoolSize = 0 },
			errContains: "indexer_pool_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
http_addr: ":9000"
embedding_dimension: 768
watcher_debounce: 250ms
warm:
  provider: huggingface
  model: some/model
search:
  provider: ollama
  model: nomic-embed-text
  base_url: http://localhost:11434
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 768, cfg.EmbeddingDimension)
	assert.Equal(t, 250*time.Millisecond, cfg.WatcherDebounce)
	assert.Equal(t, ProviderHuggingFace, cfg.Warm.Provider)
	assert.Equal(t, "some/model", cfg.Warm.Model)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
}

func TestLoadFromFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8085", cfg.HTTPAddr)
}

func TestLoadFromFile_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: \":9000\"\n"), 0o644))

	t.Setenv("CRACE_HTTP_ADDR", ":7777")
	t.Setenv("CRACE_SEARCH_MODEL", "env-model")
	t.Setenv("CRACE_LLM_TIMEOUT", "45s")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.HTTPAddr)
	assert.Equal(t, "env-model", cfg.Search.Model)
	assert.Equal(t, 45*time.Second, cfg.LLMTimeout)
}

func TestLoadFromFile_ProjectRootBootstrap(t *testing.T) {
	root := t.TempDir()
	t.Setenv("SENORITA_PROJECT_ROOT", root)

	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, root, cfg.ProjectRoot)

	// CRACE's own variable wins over the bootstrap one.
	other := t.TempDir()
	t.Setenv("CRACE_PROJECT_ROOT", other)
	cfg, err = LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, other, cfg.ProjectRoot)
}

func TestLoadFromFile_NonDirectoryBootstrapIgnored(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	t.Setenv("SENORITA_PROJECT_ROOT", file)

	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.ProjectRoot)
}

func TestEffectiveProviders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Warm.Provider = ""
	cfg.Search.Provider = ProviderHuggingFace

	assert.Equal(t, ProviderHuggingFace, cfg.EffectiveWarmProvider())
	assert.Equal(t, ProviderHuggingFace, cfg.EffectiveSearchProvider())

	cfg.Warm.Provider = ProviderOllama
	assert.Equal(t, ProviderOllama, cfg.EffectiveWarmProvider())
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPAddr = ":6060"
	cfg.Search.Model = "saved-model"

	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":6060", loaded.HTTPAddr)
	assert.Equal(t, "saved-model", loaded.Search.Model)
}
