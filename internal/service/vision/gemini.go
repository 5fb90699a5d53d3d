package vision

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"birdwatch/internal/config"
)

type Gemini struct {
	client    *genai.Client
	modelName string
	maxTokens int32
	prompt    string
}

func NewGemini(config *config.Config, prompt string) (*Gemini, error) {
	if config.GeminiAPIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(config.GeminiAPIKey)}
	if config.VisionBaseURL != "" {
		opts = append(opts, option.WithEndpoint(config.VisionBaseURL))
	}

	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	return &Gemini{
		client:    client,
		modelName: config.VisionModel,
		maxTokens: int32(config.MaxTokens),
		prompt:    prompt,
	}, nil
}

func (g *Gemini) Analyze(ctx context.Context, jpeg []byte) (string, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SetMaxOutputTokens(g.maxTokens)

	res, err := model.GenerateContent(ctx, genai.ImageData("jpeg", jpeg), genai.Text(g.prompt))
	if err != nil {
		return "", serviceError("gemini", err)
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", serviceError("gemini", errors.New("no response candidates"))
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}
