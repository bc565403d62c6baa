package advisory

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/rhymeas/tripweaver/internal/types"
)

const defaultModel = "gemini-2.0-flash"

// Generator produces a JSON document for a prompt. Satisfied by AIClient;
// tests substitute their own.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

var _ Generator = (*AIClient)(nil)

// AIClient wraps the Gemini API for advisory calls. Responses are requested
// as JSON; callers still validate the payload before trusting it.
type AIClient struct {
	client *genai.Client
	model  string
}

func NewAIClient(ctx context.Context, apiKey, model string) (*AIClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &AIClient{client: client, model: model}, nil
}

func (ai *AIClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.3),
		ResponseMIMEType: "application/json",
	}
	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrAdvisoryUnavailable, err)
	}
	txt := result.Text()
	if txt == "" {
		return "", fmt.Errorf("%w: empty response", types.ErrAdvisoryUnavailable)
	}
	return txt, nil
}
