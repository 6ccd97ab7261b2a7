package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"gemini-relay/internal/models"
)

// GenerativeAIProvider calls Gemini through the github.com/google/generative-ai-go
// client. It does not support the search tool.
type GenerativeAIProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGenerativeAIProvider(ctx context.Context, cfg ProviderConfig) (*GenerativeAIProvider, error) {
	if cfg.EnableSearch {
		return nil, errors.New("the generativeai backend does not support the search tool; use the genai backend")
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		endpoint, err := endpointFromBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	if cfg.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(cfg.SystemInstruction)},
		}
	}

	return &GenerativeAIProvider{client: client, model: model}, nil
}

// endpointFromBaseURL turns GEMINI_BASE_URL into the host:port form the
// generative-ai-go client expects. Bare host:port values pass through.
func endpointFromBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return strings.TrimRight(raw, "/"), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid GEMINI_BASE_URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid GEMINI_BASE_URL %q: missing host", raw)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	if u.Scheme == "http" {
		return u.Host + ":80", nil
	}
	return u.Host + ":443", nil
}

func (p *GenerativeAIProvider) Name() string { return BackendGenerativeAI }

func (p *GenerativeAIProvider) Close() error { return p.client.Close() }

func (p *GenerativeAIProvider) Generate(ctx context.Context, history []models.Turn, message string) (string, error) {
	cs := p.model.StartChat()
	cs.History = toChatHistory(history)

	resp, err := cs.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", err
	}
	return extractText(resp), nil
}

func toChatHistory(history []models.Turn) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		out = append(out, &genai.Content{
			Role:  turn.Role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}
	return out
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
