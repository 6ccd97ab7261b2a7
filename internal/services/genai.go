package services

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"gemini-relay/internal/models"
)

// GenAIProvider calls the Gemini API through google.golang.org/genai.
type GenAIProvider struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func NewGenAIProvider(ctx context.Context, cfg ProviderConfig) (*GenAIProvider, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GenAIProvider{
		client: client,
		model:  cfg.Model,
		config: buildGenAIConfig(cfg),
	}, nil
}

func buildGenAIConfig(cfg ProviderConfig) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{}
	if cfg.SystemInstruction != "" {
		gc.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		}
	}
	if cfg.EnableSearch {
		gc.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return gc
}

func (p *GenAIProvider) Name() string { return BackendGenAI }

func (p *GenAIProvider) Close() error { return nil }

func (p *GenAIProvider) Generate(ctx context.Context, history []models.Turn, message string) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, &genai.Content{
			Role:  turn.Role,
			Parts: []*genai.Part{{Text: turn.Text}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  models.RoleUser,
		Parts: []*genai.Part{{Text: message}},
	})

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, p.config)
	if err != nil {
		return "", err
	}
	return extractGenAIText(resp), nil
}

// extractGenAIText joins the text parts of the first candidate, skipping
// thought summaries.
func extractGenAIText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		text.WriteString(part.Text)
	}
	return text.String()
}
