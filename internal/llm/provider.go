package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ProviderType represents the vendor behind a model identifier
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
)

const (
	DefaultTemperature float32 = 0.7
	DefaultMaxTokens           = 1000
)

// ErrUnknownModel is returned when no provider claims a model identifier
var ErrUnknownModel = errors.New("unknown model")

// Request is a single companion-chat completion request
type Request struct {
	Model       string
	Prompt      string
	Context     string // optional relationship context
	MaxTokens   int
	Temperature float32
}

// NewRequest fills in the fixed sampling parameters
func NewRequest(model, prompt, relationshipContext string) Request {
	return Request{
		Model:       model,
		Prompt:      prompt,
		Context:     relationshipContext,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
}

// Provider interface for any LLM vendor
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	Close() error
	GetModelInfo() map[string]interface{}
}

type route struct {
	prefix   string
	typ      ProviderType
	provider Provider
}

// Registry selects a provider by model-identifier prefix
type Registry struct {
	routes []route
	logger *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register binds a model prefix to a provider. Earlier registrations win on overlap.
func (r *Registry) Register(prefix string, typ ProviderType, provider Provider) {
	r.routes = append(r.routes, route{prefix: prefix, typ: typ, provider: provider})
	r.logger.Info("Provider registered",
		zap.String("prefix", prefix),
		zap.String("type", string(typ)))
}

// Resolve returns the provider for a model identifier
func (r *Registry) Resolve(model string) (Provider, error) {
	for _, rt := range r.routes {
		if strings.HasPrefix(model, rt.prefix) {
			return rt.provider, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
}

// Complete resolves the provider for req.Model and runs the request
func (r *Registry) Complete(ctx context.Context, req Request) (string, error) {
	provider, err := r.Resolve(req.Model)
	if err != nil {
		return "", err
	}
	return provider.Complete(ctx, req)
}

// Close closes all providers
func (r *Registry) Close() error {
	var lastErr error
	for i, rt := range r.routes {
		if err := rt.provider.Close(); err != nil {
			r.logger.Error("Failed to close provider",
				zap.Int("index", i),
				zap.String("type", string(rt.typ)),
				zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// GetProvidersInfo returns information about all registered providers
func (r *Registry) GetProvidersInfo() []map[string]interface{} {
	info := make([]map[string]interface{}, len(r.routes))
	for i, rt := range r.routes {
		providerInfo := rt.provider.GetModelInfo()
		providerInfo["prefix"] = rt.prefix
		info[i] = providerInfo
	}
	return info
}
