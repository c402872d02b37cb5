package embed

import (
	"fmt"

	"github.com/crace/crace/internal/config"
)

// NewProvider dispatches a config.ProviderType to its Provider
// implementation.
func NewProvider(providerType config.ProviderType, cfg *Config) (Provider, error) {
	switch providerType {
	case config.ProviderOllama:
		return NewOllamaProvider(cfg)
	case config.ProviderHuggingFace:
		return NewHuggingFaceProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
}
