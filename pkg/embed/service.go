package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/crace/crace/internal/config"
	"github.com/crace/crace/pkg/cache"
)

// maxCachedEmbeddings bounds the embedding cache's entry count: warm/search
// traffic over a large project can otherwise grow the cache unbounded.
const maxCachedEmbeddings = 50_000

// RetryConfig shapes the exponential backoff around provider calls.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// DefaultRetryConfig returns the standard 3-retry (4-attempt), 100ms-to-2s backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        2 * time.Second,
	}
}

// permanentErrors never benefit from a retry: the request itself is wrong.
var permanentErrors = []error{ErrInvalidInput, ErrAPIKeyMissing, ErrInvalidModel}

// transientMarkers are substrings of error text that indicate the backend
// (not the request) failed, so a retry may succeed.
var transientMarkers = []string{
	"status 5",
	"status 429",
	"connection refused",
	"connection reset",
	"no such host",
	"i/o timeout",
	"request failed",
}

// isRetryableError classifies err: permanent sentinel errors and anything
// unrecognized are not retried; network errors, 5xx/429 statuses, and
// provider-unavailable errors are.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	for _, perm := range permanentErrors {
		if errors.Is(err, perm) {
			return false
		}
	}
	if errors.Is(err, ErrProviderUnavailable) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// embedWithRetry drives provider.Embed under the retry policy, honoring ctx
// between attempts and during backoff sleeps.
func (s *EmbeddingService) embedWithRetry(ctx context.Context, provider Provider, texts []string) ([][]float32, error) {
	backoff := s.retryCfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= s.retryCfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled: %w", err)
		}

		vecs, err := provider.Embed(texts)
		if err == nil {
			return vecs, nil
		}
		if !isRetryableError(err) {
			return nil, err
		}
		lastErr = err

		if attempt == s.retryCfg.MaxRetries {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-timer.C:
		}
		backoff = time.Duration(float64(backoff) * s.retryCfg.BackoffMultiplier)
		if backoff > s.retryCfg.MaxBackoff {
			backoff = s.retryCfg.MaxBackoff
		}
	}

	return nil, fmt.Errorf("all %d retries exhausted: %w", s.retryCfg.MaxRetries, lastErr)
}

// EmbeddingService fronts the two provider bindings CRACE's config names —
// warm for background indexing, search for live queries — with an LRU cache
// keyed by text hash and retry-with-backoff around every provider call.
type EmbeddingService struct {
	warmProvider   Provider
	searchProvider Provider
	cache          *cache.LRU[[]float32]
	retryCfg       RetryConfig
}

// NewEmbeddingService builds a service from cfg with the default retry
// policy.
func NewEmbeddingService(cfg *config.Config) (*EmbeddingService, error) {
	return NewEmbeddingServiceWithRetry(cfg, DefaultRetryConfig())
}

// NewEmbeddingServiceWithRetry builds a service from cfg with a custom
// retry policy.
func NewEmbeddingServiceWithRetry(cfg *config.Config, retryCfg RetryConfig) (*EmbeddingService, error) {
	warm, err := providerFor(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create warm provider: %w", err)
	}
	search, err := providerFor(cfg, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create search provider: %w", err)
	}

	return &EmbeddingService{
		warmProvider:   warm,
		searchProvider: search,
		cache: cache.New(cache.Options[[]float32]{
			MaxEntries: maxCachedEmbeddings,
			SizeOf:     cache.Float32SliceBytes,
		}),
		retryCfg: retryCfg,
	}, nil
}

// providerFor resolves one of the config's two provider bindings, applying
// the Warm/Search fallback rules.
func providerFor(cfg *config.Config, warm bool) (Provider, error) {
	pc := cfg.Search
	providerType := cfg.EffectiveSearchProvider()
	if warm {
		pc = cfg.Warm
		providerType = cfg.EffectiveWarmProvider()
	}

	return NewProvider(providerType, &Config{
		Endpoint: pc.BaseURL,
		APIKey:   pc.Token,
		Model:    pc.Model,
	})
}

// Embed returns one vector per text for the given purpose ("warm" or
// "search"), serving repeats from the cache and batching only the misses
// through the provider.
func (s *EmbeddingService) Embed(ctx context.Context, purpose string, texts []string) ([][]float32, error) {
	var provider Provider
	switch purpose {
	case "warm":
		provider = s.warmProvider
	case "search":
		provider = s.searchProvider
	default:
		return nil, fmt.Errorf("unknown purpose: %s (must be 'warm' or 'search')", purpose)
	}
	if provider == nil {
		return nil, errors.New("provider not initialized")
	}
	if len(texts) == 0 {
		return nil, ErrInvalidInput
	}

	results := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if cached, ok := s.cache.Get(hashText(text)); ok {
			results[i] = cached
		} else {
			missing = append(missing, text)
			missingIdx = append(missingIdx, i)
		}
	}
	if len(missing) == 0 {
		return results, nil
	}

	vecs, err := s.embedWithRetry(ctx, provider, missing)
	if err != nil {
		return nil, fmt.Errorf("embedding failed after %d retries: %w", s.retryCfg.MaxRetries, err)
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(missing), len(vecs))
	}

	for i, vec := range vecs {
		s.cache.Set(hashText(missing[i]), vec)
		results[missingIdx[i]] = vec
	}
	return results, nil
}

// hashText derives the cache key for one input text.
func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ClearCache drops every cached embedding.
func (s *EmbeddingService) ClearCache() { s.cache.Clear() }

// CacheSize returns the number of cached embeddings.
func (s *EmbeddingService) CacheSize() int { return s.cache.Len() }

// WarmProvider exposes the warm binding for callers that need the raw
// Provider interface.
func (s *EmbeddingService) WarmProvider() Provider { return s.warmProvider }

// SearchProvider exposes the search binding.
func (s *EmbeddingService) SearchProvider() Provider { return s.searchProvider }
