package services

import (
	"context"
	"fmt"

	"gemini-relay/internal/models"
)

const (
	BackendGenAI        = "genai"
	BackendGenerativeAI = "generativeai"
)

// Provider is the external text-generation service. It is called exactly
// once per relay request.
type Provider interface {
	// Generate sends message as the newest user turn after history and
	// returns the generated text, which may be empty.
	Generate(ctx context.Context, history []models.Turn, message string) (string, error)
	Name() string
	Close() error
}

// ProviderConfig is bound to a provider at construction and applies to every
// call it makes.
type ProviderConfig struct {
	Backend           string
	APIKey            string
	Model             string
	BaseURL           string
	SystemInstruction string
	EnableSearch      bool
}

// NewProvider builds the configured backend.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch cfg.Backend {
	case "", BackendGenAI:
		return NewGenAIProvider(ctx, cfg)
	case BackendGenerativeAI:
		return NewGenerativeAIProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown provider backend %q", cfg.Backend)
	}
}
