package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// HuggingFace defaults. Responses are L2-normalized before being returned
// so downstream cosine similarity reduces to a dot product.
const (
	DefaultHFModel      = "sentence-transformers/all-MiniLM-L6-v2"
	HuggingFaceEndpoint = "https://router.huggingface.co/hf-inference/models"
	DefaultHFBatchSize  = 32
	hfRequestTimeout    = 2 * time.Minute // large batches are slow on cold models
)

type hfRequest struct {
	Inputs interface{} `json:"inputs"`
}

type hfResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// HuggingFaceProvider embeds through the HuggingFace Inference API.
type HuggingFaceProvider struct {
	config     *Config
	httpClient *http.Client
}

// NewHuggingFaceProvider builds a provider over cfg. An API key is
// mandatory: the inference router rejects anonymous requests.
func NewHuggingFaceProvider(cfg *Config) (*HuggingFaceProvider, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = HuggingFaceEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultHFModel
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultHFBatchSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}

	return &HuggingFaceProvider{
		config:     cfg,
		httpClient: &http.Client{Timeout: hfRequestTimeout},
	}, nil
}

// Config returns the provider configuration.
func (p *HuggingFaceProvider) Config() *Config { return p.config }

// Embed returns one L2-normalized vector per text, in order.
func (p *HuggingFaceProvider) Embed(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return p.EmbedBatch(texts, p.config.BatchSize)
}

// EmbedBatch splits texts into batchSize-sized requests and concatenates
// the results.
func (p *HuggingFaceProvider) EmbedBatch(texts []string, batchSize int) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultHFBatchSize
	}

	var all [][]float32
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := p.embedBatchRequest(texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, vecs...)
	}

	for i, v := range all {
		all[i] = l2Normalize(v)
	}
	return all, nil
}

func (p *HuggingFaceProvider) embedBatchRequest(texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(hfRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		p.config.Endpoint+"/"+p.config.Model, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, string(body))
	}

	var result hfResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderUnavailable, len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}

// l2Normalize scales a vector to unit length; the zero vector passes
// through untouched.
func l2Normalize(vector []float32) []float32 {
	var sumSq float64
	for _, v := range vector {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return vector
	}

	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

var (
	_ Provider      = (*HuggingFaceProvider)(nil)
	_ BatchProvider = (*HuggingFaceProvider)(nil)
)
