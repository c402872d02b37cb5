package embed

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crace/crace/internal/config"
)

func TestConfigValidate(t *testing.T) {
	valid := &Config{Endpoint: "http://localhost:11434", Model: "nomic-embed-text"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&Config{Model: "m"}).Validate())
	assert.Error(t, (&Config{Endpoint: "http://x"}).Validate())
}

func TestEmbeddingError(t *testing.T) {
	inner := errors.New("boom")
	err := &EmbeddingError{Provider: "ollama", Message: "embed failed", Err: inner}

	assert.Contains(t, err.Error(), "ollama")
	assert.Contains(t, err.Error(), "embed failed")
	assert.True(t, errors.Is(err, inner))

	bare := &EmbeddingError{Provider: "hf", Message: "no key"}
	assert.Contains(t, bare.Error(), "no key")
	assert.Nil(t, bare.Unwrap())
}

func ollamaStub(t *testing.T, vec []float32, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Prompt)
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: vec})
	}))
}

func TestOllamaProvider_Embed(t *testing.T) {
	var calls int32
	srv := ollamaStub(t, []float32{1, 2, 3}, &calls)
	defer srv.Close()

	p, err := NewOllamaProvider(&Config{Endpoint: srv.URL, Model: "nomic-embed-text"})
	require.NoError(t, err)

	vecs, err := p.Embed([]string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 2, 3}, vecs[0])
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "one request per prompt")
}

func TestOllamaProvider_RejectsEmptyText(t *testing.T) {
	p, err := NewOllamaProvider(&Config{Endpoint: "http://localhost:11434", Model: "m"})
	require.NoError(t, err)

	_, err = p.Embed([]string{"ok", "   "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestOllamaProvider_ServerErrorIsProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(&Config{Endpoint: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = p.Embed([]string{"text"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
}

func TestHuggingFaceProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewHuggingFaceProvider(&Config{Model: "some/model"})
	assert.True(t, errors.Is(err, ErrAPIKeyMissing))
}

func TestHuggingFaceProvider_EmbedNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req hfRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		inputs := req.Inputs.([]interface{})
		out := make([][]float32, len(inputs))
		for i := range inputs {
			out[i] = []float32{3, 4} // norm 5
		}
		_ = json.NewEncoder(w).Encode(hfResponse{Embeddings: out})
	}))
	defer srv.Close()

	p, err := NewHuggingFaceProvider(&Config{Endpoint: srv.URL, Model: "m", APIKey: "secret"})
	require.NoError(t, err)

	vecs, err := p.Embed([]string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		var sumSq float64
		for _, x := range v {
			sumSq += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, sumSq, 1e-6, "vectors must be L2-normalized")
	}
	assert.InDelta(t, 0.6, float64(vecs[0][0]), 1e-6)
	assert.InDelta(t, 0.8, float64(vecs[0][1]), 1e-6)
}

func TestL2Normalize_ZeroVectorPassesThrough(t *testing.T) {
	zero := []float32{0, 0, 0}
	assert.Equal(t, zero, l2Normalize(zero))

	v := l2Normalize([]float32{2, 0})
	assert.InDelta(t, 1.0, float64(v[0]), 1e-9)
	assert.False(t, math.IsNaN(float64(v[0])))
}

func TestNewProvider_Factory(t *testing.T) {
	p, err := NewProvider(config.ProviderOllama, &Config{Endpoint: "http://localhost:11434", Model: "m"})
	require.NoError(t, err)
	_, ok := p.(*OllamaProvider)
	assert.True(t, ok)

	p, err = NewProvider(config.ProviderHuggingFace, &Config{Model: "m", APIKey: "k", Endpoint: "http://x"})
	require.NoError(t, err)
	_, ok = p.(*HuggingFaceProvider)
	assert.True(t, ok)

	_, err = NewProvider(config.ProviderType("tenstorrent"), &Config{})
	assert.Error(t, err)
}

func serviceForTest(t *testing.T, endpoint string) *EmbeddingService {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Warm = config.ProviderConfig{Provider: config.ProviderOllama, Model: "m", BaseURL: endpoint}
	cfg.Search = cfg.Warm

	svc, err := NewEmbeddingService(cfg)
	require.NoError(t, err)
	return svc
}

func TestEmbeddingService_CachesByText(t *testing.T) {
	var calls int32
	srv := ollamaStub(t, []float32{0.5, 0.5}, &calls)
	defer srv.Close()

	svc := serviceForTest(t, srv.URL)
	ctx := context.Background()

	first, err := svc.Embed(ctx, "warm", []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 2, svc.CacheSize())

	// Same texts again: served from cache, no new provider calls.
	second, err := svc.Embed(ctx, "warm", []string{"hello", "world"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	svc.ClearCache()
	assert.Equal(t, 0, svc.CacheSize())
}

func TestEmbeddingService_UnknownPurpose(t *testing.T) {
	srv := ollamaStub(t, []float32{1}, nil)
	defer srv.Close()

	svc := serviceForTest(t, srv.URL)
	_, err := svc.Embed(context.Background(), "tepid", []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown purpose")
}

func TestEmbeddingService_RetriesTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{1}})
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Warm = config.ProviderConfig{Provider: config.ProviderOllama, Model: "m", BaseURL: srv.URL}
	cfg.Search = cfg.Warm

	svc, err := NewEmbeddingServiceWithRetry(cfg, RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		BackoffMultiplier: 2,
		MaxBackoff:        5 * time.Millisecond,
	})
	require.NoError(t, err)

	vecs, err := svc.Embed(context.Background(), "warm", []string{"x"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "first attempt fails, retry succeeds")
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(ErrInvalidInput))
	assert.False(t, isRetryableError(ErrAPIKeyMissing))
	assert.False(t, isRetryableError(ErrInvalidModel))
	assert.True(t, isRetryableError(ErrProviderUnavailable))
	assert.True(t, isRetryableError(errors.New("status 503: unavailable")))
	assert.True(t, isRetryableError(errors.New("status 429: rate limited")))
	assert.True(t, isRetryableError(errors.New("dial tcp: connection refused")))
	assert.False(t, isRetryableError(errors.New("status 401: unauthorized")))
}
