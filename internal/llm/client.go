package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client is an abstraction over the multimodal model provider
type Client interface {
	// AnalyzeMedia answers instructions about several inline files at once
	AnalyzeMedia(ctx context.Context, instructions string, media []Media, tier ModelTier) (string, error)
	// DescribeImage answers instructions about one inline image
	DescribeImage(ctx context.Context, instructions string, image []byte, mimeType string, tier ModelTier) (string, error)
	// Close releases any resources held by the client
	Close() error
}

// Media is one inline file sent alongside a prompt.
type Media struct {
	Data     []byte
	MIMEType string
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

func (c *GeminiClient) model(tier ModelTier) (*genai.GenerativeModel, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for tier %s", tier)
	}
	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(c.config.GetTemperature(tier))
	return model, nil
}

// AnalyzeMedia sends the instructions followed by each file as inline data,
// in order, and returns the raw text answer.
func (c *GeminiClient) AnalyzeMedia(ctx context.Context, instructions string, media []Media, tier ModelTier) (string, error) {
	parts, err := mediaParts(instructions, media)
	if err != nil {
		return "", err
	}
	model, err := c.model(tier)
	if err != nil {
		return "", err
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to analyze media: %w", err)
	}
	return extractTextFromResponse(resp)
}

func mediaParts(instructions string, media []Media) ([]genai.Part, error) {
	if len(media) == 0 {
		return nil, fmt.Errorf("no media provided")
	}
	parts := make([]genai.Part, 0, len(media)+1)
	parts = append(parts, genai.Text(instructions))
	for i, m := range media {
		if len(m.Data) == 0 {
			return nil, fmt.Errorf("media %d is empty", i)
		}
		if m.MIMEType == "" {
			return nil, fmt.Errorf("media %d has no MIME type", i)
		}
		parts = append(parts, genai.Blob{MIMEType: m.MIMEType, Data: m.Data})
	}
	return parts, nil
}

// DescribeImage sends instructions as the system instruction and the image
// as inline data, and returns the model's text answer.
func (c *GeminiClient) DescribeImage(ctx context.Context, instructions string, image []byte, mimeType string, tier ModelTier) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("image is empty")
	}
	model, err := c.model(tier)
	if err != nil {
		return "", err
	}
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instructions)}}

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: image},
		genai.Text("Describe this image as a generation prompt."),
	)
	if err != nil {
		return "", fmt.Errorf("failed to describe image: %w", err)
	}
	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", err
	}
	return StripCodeFences(text), nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
