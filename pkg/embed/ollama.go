package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama defaults. The /api/embeddings route takes one prompt per request,
// so the effective batch size is pinned to 1 regardless of configuration.
const (
	DefaultOllamaModel    = "nomic-embed-text"
	DefaultOllamaEndpoint = "http://localhost:11434"
	ollamaRequestTimeout  = 30 * time.Second
)

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// OllamaProvider embeds through a local or remote Ollama server.
type OllamaProvider struct {
	config     *Config
	httpClient *http.Client
}

// NewOllamaProvider builds a provider over cfg, filling in the Ollama
// defaults for endpoint and model. No API key is required for a local
// server; a configured key is sent as a bearer token for remote ones.
func NewOllamaProvider(cfg *Config) (*OllamaProvider, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOllamaEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &OllamaProvider{
		config:     cfg,
		httpClient: &http.Client{Timeout: ollamaRequestTimeout},
	}, nil
}

// Config returns the provider configuration.
func (p *OllamaProvider) Config() *Config { return p.config }

// Embed returns one vector per text, in order.
func (p *OllamaProvider) Embed(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}

	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := p.embedOne(text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out = append(out, vec)
	}
	return out, nil
}

// EmbedBatch satisfies BatchProvider. Ollama's embeddings route is
// single-prompt, so batching degenerates to the sequential loop in Embed;
// the batchSize argument is accepted for interface symmetry and ignored.
func (p *OllamaProvider) EmbedBatch(texts []string, batchSize int) ([][]float32, error) {
	return p.Embed(texts)
}

func (p *OllamaProvider) embedOne(text string) ([]float32, error) {
	reqBody, err := json.Marshal(ollamaRequest{Model: p.config.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		p.config.Endpoint+"/api/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, string(body))
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", ErrProviderUnavailable)
	}
	return result.Embedding, nil
}

var (
	_ Provider      = (*OllamaProvider)(nil)
	_ BatchProvider = (*OllamaProvider)(nil)
)
