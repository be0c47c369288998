// Package llm provides the resilient text generation client and its
// backend plumbing.
package llm

import (
	"context"
	"fmt"
	"sync"

	"sermon-search-api/internal/config"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// EinoFactory lazily builds and caches one eino ChatModel per provider.
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory creates the factory.
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Get returns the ChatModel for a provider name, building it on first use.
// An empty name resolves to the default provider.
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      providerCfg.APIKey,
		BaseURL:     providerCfg.BaseURL,
		Model:       providerCfg.Model,
		MaxTokens:   &providerCfg.MaxTokens,
		Temperature: ptrFloat32(float32(providerCfg.Temperature)),
		Timeout:     providerCfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

// Chain resolves the configured fallback chain into named backends, the
// primary first.
func (f *EinoFactory) Chain(ctx context.Context) ([]NamedBackend, error) {
	names := f.config.FallbackChain
	if len(names) == 0 {
		names = []string{f.config.DefaultProvider}
	}

	backends := make([]NamedBackend, 0, len(names))
	for _, name := range names {
		m, err := f.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		backends = append(backends, NamedBackend{Name: name, Model: m})
	}
	return backends, nil
}

// ModelName returns the configured model identifier for a provider.
func (f *EinoFactory) ModelName(name string) string {
	if cfg, ok := f.config.Providers[name]; ok {
		return cfg.Model
	}
	return ""
}

func ptrFloat32(f float32) *float32 {
	return &f
}
